package updates

import (
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store wraps a SQLite database and provides CRUD operations for posts,
// uploaded images, and ingest bookkeeping.
type Store struct {
	db *sql.DB
}

// WAL keeps readers unblocked during writes, and synchronous=NORMAL skips
// the per-transaction fsync that WAL makes redundant. The busy timeout
// parks writers instead of surfacing SQLITE_BUSY; the cache and mmap sizes
// cut disk round-trips on list queries.
const sqlitePragmas = `
	PRAGMA journal_mode=WAL;
	PRAGMA busy_timeout=5000;
	PRAGMA synchronous=NORMAL;
	PRAGMA cache_size=-8000;
	PRAGMA mmap_size=268435456;
`

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqlitePragmas); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the posts database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    slug TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    date TEXT NOT NULL,
    tags TEXT NOT NULL,
    summary TEXT NOT NULL,
    authors TEXT NOT NULL DEFAULT ',,',
    images TEXT NOT NULL DEFAULT ',,',
    layout TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    published INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS images (
    filename TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL
);
`)
	if err != nil {
		return err
	}
	// Databases created before a column existed pick it up here; SQLite
	// has no ADD COLUMN IF NOT EXISTS, so the duplicate error is the
	// "already migrated" signal.
	for _, ddl := range []string{
		`ALTER TABLE posts ADD COLUMN authors TEXT NOT NULL DEFAULT ',,';`,
		`ALTER TABLE posts ADD COLUMN images TEXT NOT NULL DEFAULT ',,';`,
		`ALTER TABLE posts ADD COLUMN layout TEXT NOT NULL DEFAULT '';`,
		`ALTER TABLE posts ADD COLUMN published INTEGER NOT NULL DEFAULT 1;`,
	} {
		if _, err := s.db.Exec(ddl); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
				continue
			}
			return err
		}
	}
	return nil
}

const postColumns = `slug, title, date, tags, summary, authors, images, layout, content, published`

func scanPost(sc interface{ Scan(...any) error }) (Post, error) {
	var p Post
	var tags, authors, images string
	var published int
	if err := sc.Scan(&p.Slug, &p.Title, &p.Date, &tags, &p.Summary, &authors, &images, &p.Layout, &p.Content, &published); err != nil {
		return Post{}, err
	}
	p.Tags = ParseList(tags)
	p.Authors = ParseList(authors)
	p.Images = ParseList(images)
	p.Link = "/blog/" + p.Slug
	p.Published = published == 1
	return p, nil
}

// ListPosts returns all published posts ordered by date descending.
// If tag is non-empty, results are filtered to posts containing that tag.
func (s *Store) ListPosts(tag string) ([]Post, error) {
	if tag == "" {
		return s.queryPosts(`SELECT ` + postColumns + ` FROM posts WHERE published = 1 ORDER BY date DESC`)
	}
	normalized := strings.ToLower(strings.TrimSpace(tag))
	return s.queryPosts(`SELECT `+postColumns+` FROM posts WHERE published = 1 AND instr(lower(tags), ',' || ? || ',') > 0 ORDER BY date DESC`, normalized)
}

func (s *Store) queryPosts(query string, args ...any) ([]Post, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListTags returns every tag used by a published post, lowercased,
// deduplicated, and sorted. Rows written before tags were normalized may
// still carry mixed case, hence the ToLower on read.
func (s *Store) ListTags() ([]string, error) {
	rows, err := s.db.Query(`SELECT tags FROM posts WHERE published = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[string]bool{}
	var tags []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		for _, t := range ParseList(raw) {
			t = strings.ToLower(t)
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(tags)
	return tags, nil
}

// GetPost returns a single published post by slug.
func (s *Store) GetPost(slug string) (Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE slug = ? AND published = 1`, slug)
	return scanPost(row)
}

// GetPostAny returns a post by slug regardless of published status (for admin).
func (s *Store) GetPostAny(slug string) (Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	return scanPost(row)
}

// ListAllPosts returns every post, drafts included, newest first.
func (s *Store) ListAllPosts() ([]Post, error) {
	return s.queryPosts(`SELECT ` + postColumns + ` FROM posts ORDER BY date DESC`)
}

// SavePost upserts a post. Tags are normalized to lowercase; authors and
// images keep their case since ids and paths are case-sensitive.
func (s *Store) SavePost(p Post) error {
	published := 0
	if p.Published {
		published = 1
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Slug, p.Title, p.Date, wrapList(p.Tags, true), p.Summary,
		wrapList(p.Authors, false), wrapList(p.Images, false), p.Layout,
		p.Content, published)
	return err
}

// DeletePost removes a post by slug.
func (s *Store) DeletePost(slug string) error {
	_, err := s.db.Exec(`DELETE FROM posts WHERE slug = ?`, slug)
	return err
}

// SaveImage upserts the metadata row for an uploaded image.
func (s *Store) SaveImage(img Image) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO images (filename, original_name, width, height, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, img.UploadedAt)
	return err
}

// ListImages returns uploaded images, newest first.
func (s *Store) ListImages() ([]Image, error) {
	rows, err := s.db.Query(`SELECT filename, original_name, width, height, size, uploaded_at FROM images ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &img.UploadedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// DeleteImage removes the metadata row for filename.
func (s *Store) DeleteImage(filename string) error {
	_, err := s.db.Exec(`DELETE FROM images WHERE filename = ?`, filename)
	return err
}

// wrapList encodes a slice as a comma-wrapped column value (",go,web,")
// so a single instr() can match whole entries.
func wrapList(vals []string, lower bool) string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		out = append(out, v)
	}
	return "," + strings.Join(out, ",") + ","
}

// ParseList splits a comma-wrapped column value back into a slice.
func ParseList(raw string) []string {
	raw = strings.Trim(raw, ",")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
