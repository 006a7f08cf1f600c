package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

// timeFormat is how visit timestamps are stored. RFC3339 in UTC keeps
// range comparisons lexicographic and strftime-compatible.
const timeFormat = time.RFC3339

// schema is applied statement by statement on open. Every statement is
// idempotent, so reopening an existing database is safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		visitor_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		ip_hash TEXT NOT NULL,
		browser TEXT NOT NULL,
		os TEXT NOT NULL,
		device TEXT NOT NULL,
		path TEXT NOT NULL,
		referrer TEXT,
		screen_size TEXT,
		timestamp TEXT NOT NULL,
		duration_sec INTEGER DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_visitor_id ON visits(visitor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_path ON visits(path)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_browser ON visits(browser)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_os ON visits(os)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_device ON visits(device)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// schemaVersion is stamped into the settings table so later releases
// can step old databases forward.
const schemaVersion = 1

// Store holds the analytics database: visit rows plus a small settings
// table carrying the hash salt and schema version.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the analytics database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	raw, err := s.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	have := 0
	if raw != "" {
		if have, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("parse schema version %q: %w", raw, err)
		}
	}
	if have >= schemaVersion {
		return nil
	}
	// No incremental steps exist yet; just stamp the current version.
	return s.SetSetting("schema_version", strconv.Itoa(schemaVersion))
}

// GetSetting reads one settings row. A missing key is an empty string,
// not an error.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetSetting upserts one settings row.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SaveVisit appends one visit row.
func (s *Store) SaveVisit(v *Visit) error {
	_, err := s.db.Exec(`
		INSERT INTO visits (visitor_id, session_id, ip_hash, browser, os, device, path, referrer, screen_size, timestamp, duration_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VisitorID, v.SessionID, v.IPHash, v.Browser, v.OS, v.Device,
		v.Path, v.Referrer, v.ScreenSize, v.Timestamp.UTC().Format(timeFormat), v.DurationSec)
	return err
}

// UpdateVisitDuration sets the dwell time on the visitor's most recent
// view of path. The beacon fires it when the reader leaves the page.
func (s *Store) UpdateVisitDuration(visitorID, path string, durationSec int) error {
	_, err := s.db.Exec(`
		UPDATE visits SET duration_sec = ?
		WHERE id = (
			SELECT id FROM visits
			WHERE visitor_id = ? AND path = ?
			ORDER BY timestamp DESC LIMIT 1
		)`, durationSec, visitorID, path)
	return err
}

// rowsOf runs query and decodes every row through scan. The slice is
// non-nil even when empty so the stats endpoint serializes [] not null.
func rowsOf[T any](ctx context.Context, db *sql.DB, scan func(*sql.Rows) (T, error), query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanPage(rows *sql.Rows) (PageStat, error) {
	var p PageStat
	err := rows.Scan(&p.Path, &p.Views)
	return p, err
}

func scanDimension(rows *sql.Rows) (DimensionStat, error) {
	var d DimensionStat
	err := rows.Scan(&d.Name, &d.Count)
	return d, err
}

func scanBucket(rows *sql.Rows) (DailyView, error) {
	var v DailyView
	err := rows.Scan(&v.Date, &v.Views)
	return v, err
}

func scanLatest(rows *sql.Rows) (LatestPageVisit, error) {
	var v LatestPageVisit
	var ts string
	if err := rows.Scan(&v.Path, &ts, &v.Browser); err != nil {
		return LatestPageVisit{}, err
	}
	if t, err := time.Parse(timeFormat, ts); err == nil {
		v.Timestamp = t.Format("2006-01-02 15:04:05")
	} else {
		v.Timestamp = ts
	}
	return v, nil
}

// bucketFormat picks the strftime pattern for the views series.
func bucketFormat(hourly, monthly bool) string {
	switch {
	case hourly:
		return "%H:00"
	case monthly:
		return "%Y-%m"
	default:
		return "%Y-%m-%d"
	}
}

// GetStats aggregates the visits between from and to. The views series
// is bucketed daily unless hourly or monthly asks otherwise.
func (s *Store) GetStats(from, to time.Time, hourly, monthly bool) (*Stats, error) {
	lo := from.UTC().Format(timeFormat)
	hi := to.UTC().Format(timeFormat)

	stats := &Stats{
		Period: from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
	}

	// Each goroutine fills a distinct field and nothing reads stats
	// before Wait returns, so the struct needs no lock.
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM visits
			WHERE timestamp >= ? AND timestamp < ?`, lo, hi).Scan(&stats.TotalViews)
		if err != nil {
			return fmt.Errorf("count views: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(DISTINCT visitor_id) FROM visits
			WHERE timestamp >= ? AND timestamp < ?`, lo, hi).Scan(&stats.UniqueVisitors)
		if err != nil {
			return fmt.Errorf("count visitors: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var avg sql.NullFloat64
		err := s.db.QueryRowContext(ctx, `
			SELECT AVG(duration_sec) FROM visits
			WHERE timestamp >= ? AND timestamp < ? AND duration_sec > 0`, lo, hi).Scan(&avg)
		if err != nil {
			return fmt.Errorf("average duration: %w", err)
		}
		if avg.Valid {
			stats.AvgDuration = int(avg.Float64)
		}
		return nil
	})

	g.Go(func() error {
		pages, err := rowsOf(ctx, s.db, scanPage, `
			SELECT path, COUNT(*) AS views FROM visits
			WHERE timestamp >= ? AND timestamp < ?
			GROUP BY path ORDER BY views DESC LIMIT 10`, lo, hi)
		if err != nil {
			return fmt.Errorf("top pages: %w", err)
		}
		stats.TopPages = pages
		return nil
	})

	g.Go(func() error {
		latest, err := rowsOf(ctx, s.db, scanLatest, `
			SELECT path, timestamp, browser FROM visits
			WHERE timestamp >= ? AND timestamp < ?
			ORDER BY timestamp DESC LIMIT 10`, lo, hi)
		if err != nil {
			return fmt.Errorf("latest pages: %w", err)
		}
		stats.LatestPages = latest
		return nil
	})

	for _, dim := range []struct {
		column string
		dest   *[]DimensionStat
	}{
		{"browser", &stats.BrowserStats},
		{"os", &stats.OSStats},
		{"device", &stats.DeviceStats},
		{"referrer", &stats.ReferrerStats},
	} {
		g.Go(func() error {
			q := fmt.Sprintf(`
				SELECT %s, COUNT(*) AS n FROM visits
				WHERE timestamp >= ? AND timestamp < ?
				GROUP BY %s ORDER BY n DESC LIMIT 10`, dim.column, dim.column)
			breakdown, err := rowsOf(ctx, s.db, scanDimension, q, lo, hi)
			if err != nil {
				return fmt.Errorf("%s breakdown: %w", dim.column, err)
			}
			*dim.dest = breakdown
			return nil
		})
	}

	g.Go(func() error {
		series, err := rowsOf(ctx, s.db, scanBucket, fmt.Sprintf(`
			SELECT strftime('%s', timestamp) AS bucket, COUNT(*) AS views FROM visits
			WHERE timestamp >= ? AND timestamp < ?
			GROUP BY bucket ORDER BY bucket`, bucketFormat(hourly, monthly)), lo, hi)
		if err != nil {
			return fmt.Errorf("view series: %w", err)
		}
		stats.DailyViews = series
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// CleanupOldVisits deletes visits older than retentionDays days.
func (s *Store) CleanupOldVisits(retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(timeFormat)
	if _, err := s.db.Exec(`DELETE FROM visits WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("delete expired visits: %w", err)
	}
	return nil
}

// StartCleanupScheduler deletes expired visits on the given interval
// until the returned stop function is called.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := s.CleanupOldVisits(retentionDays); err != nil {
					fmt.Fprintf(os.Stderr, "analytics: cleanup: %v\n", err)
				}
			}
		}
	}()

	return func() { close(done) }
}

// GetRealtimeVisitors counts distinct visitors seen in the last five
// minutes.
func (s *Store) GetRealtimeVisitors() (int, error) {
	cutoff := time.Now().UTC().Add(-5 * time.Minute).Format(timeFormat)
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(DISTINCT visitor_id) FROM visits
		WHERE timestamp > ?`, cutoff).Scan(&n)
	return n, err
}
