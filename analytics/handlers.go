package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler serves the beacon collect endpoint and the admin stats API.
type Handler struct {
	store          *Store
	collectLimiter *rateLimiter
}

// NewHandler wraps a Store. Collect is limited to 60 requests per IP per
// minute to keep beacon floods out of the visits table.
func NewHandler(store *Store) *Handler {
	return &Handler{
		store:          store,
		collectLimiter: newRateLimiter(60, time.Minute),
	}
}

// CollectRequest is the beacon's JSON body.
type CollectRequest struct {
	Path        string `json:"path"`
	Referrer    string `json:"referrer"`
	ScreenSize  string `json:"screen_size"`
	UserAgent   string `json:"user_agent"`
	DurationSec int    `json:"duration_sec"`
}

const (
	maxPathLen       = 2048
	maxReferrerLen   = 2048
	maxScreenSizeLen = 32
	maxUserAgentLen  = 512
	maxDurationSec   = 86400 // 24 hours
)

func (r *CollectRequest) validate() error {
	limits := []struct {
		field string
		got   int
		max   int
	}{
		{"path", len(r.Path), maxPathLen},
		{"referrer", len(r.Referrer), maxReferrerLen},
		{"screen_size", len(r.ScreenSize), maxScreenSizeLen},
		{"user_agent", len(r.UserAgent), maxUserAgentLen},
	}
	for _, l := range limits {
		if l.got > l.max {
			return fmt.Errorf("%s exceeds %d bytes", l.field, l.max)
		}
	}
	if r.DurationSec < 0 || r.DurationSec > maxDurationSec {
		return fmt.Errorf("duration_sec out of range")
	}
	return nil
}

// Collect records one page view. Bots and Do-Not-Track clients get a 204
// and nothing is stored. A body with duration_sec > 0 is the unload
// beacon: it closes out the existing visit rather than opening a new one.
func (h *Handler) Collect(c echo.Context) error {
	ip := c.RealIP()
	if !h.collectLimiter.allow(ip) {
		return c.NoContent(http.StatusTooManyRequests)
	}
	if c.Request().Header.Get("DNT") == "1" {
		return c.NoContent(http.StatusNoContent)
	}

	var req CollectRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request")
	}
	if err := req.validate(); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request")
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = c.Request().UserAgent()
	}
	if IsBot(userAgent) {
		return c.NoContent(http.StatusNoContent)
	}

	visitorID := GenerateVisitorID(ip, userAgent)
	if req.DurationSec > 0 {
		if err := h.store.UpdateVisitDuration(visitorID, req.Path, req.DurationSec); err != nil {
			c.Logger().Errorf("update visit duration: %v", err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	browser, os, device := ParseUserAgent(userAgent)
	visit := &Visit{
		VisitorID:   visitorID,
		SessionID:   sessionID(visitorID),
		IPHash:      HashIP(ip),
		Browser:     browser,
		OS:          os,
		Device:      device,
		Path:        req.Path,
		Referrer:    CleanReferrer(req.Referrer),
		ScreenSize:  req.ScreenSize,
		Timestamp:   time.Now().UTC(),
		DurationSec: req.DurationSec,
	}
	if err := h.store.SaveVisit(visit); err != nil {
		c.Logger().Errorf("save visit: %v", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// StatsResponse is the admin stats API payload.
type StatsResponse struct {
	Stats      *Stats `json:"stats"`
	Realtime   int    `json:"realtime_visitors"`
	PeriodDays int    `json:"period_days"`
	Hourly     bool   `json:"hourly"`
	Monthly    bool   `json:"monthly"`
}

// GetStats answers the dashboard's stats query for a named period.
func (h *Handler) GetStats(c echo.Context) error {
	_, days, hourly, monthly := parsePeriod(c.QueryParam("period"))

	from, to := calcTimeRange(time.Now().UTC(), days, hourly)
	stats, err := h.store.GetStats(from, to, hourly, monthly)
	if err != nil {
		c.Logger().Errorf("get stats: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if hourly {
		stats.DailyViews = fillHourlyData(stats.DailyViews, from)
	}

	realtime, _ := h.store.GetRealtimeVisitors()
	return c.JSON(http.StatusOK, StatsResponse{
		Stats:      stats,
		Realtime:   realtime,
		PeriodDays: days,
		Hourly:     hourly,
		Monthly:    monthly,
	})
}

// parsePeriod maps a period name to its day span and bucketing. Unknown
// names fall back to a week.
func parsePeriod(period string) (string, int, bool, bool) {
	switch period {
	case "today":
		return period, 1, true, false
	case "week":
		return period, 7, false, false
	case "month":
		return period, 30, false, false
	case "year":
		return period, 365, false, true
	}
	return "week", 7, false, false
}

// calcTimeRange returns the query window: the trailing 24 hours for hourly
// stats, otherwise whole days from midnight.
func calcTimeRange(now time.Time, days int, hourly bool) (time.Time, time.Time) {
	if hourly {
		return now.Truncate(time.Hour).Add(-23 * time.Hour), now
	}
	from := now.AddDate(0, 0, -days).Truncate(24 * time.Hour)
	to := now.Add(24 * time.Hour).Truncate(24 * time.Hour)
	return from, to
}

// fillHourlyData expands a sparse hourly series to all 24 slots, zero-filling
// the hours with no views.
func fillHourlyData(sparse []DailyView, from time.Time) []DailyView {
	byLabel := make(map[string]int, len(sparse))
	for _, v := range sparse {
		byLabel[v.Date] = v.Views
	}

	full := make([]DailyView, 24)
	for i := range full {
		label := fmt.Sprintf("%02d:00", from.Add(time.Duration(i)*time.Hour).Hour())
		full[i] = DailyView{Date: label, Views: byLabel[label]}
	}
	return full
}

// sessionID derives a day-scoped session from the visitor identity, so a
// returning visitor starts a fresh session at midnight UTC.
func sessionID(visitorID string) string {
	day := time.Now().UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(visitorID + "|" + day))
	return hex.EncodeToString(sum[:])[:16]
}

// RegisterRoutes mounts the beacon endpoint on the CSRF-exempt public group
// and the stats API behind the caller's auth middleware.
func (h *Handler) RegisterRoutes(e *echo.Echo, publicGroup *echo.Group, authMiddleware echo.MiddlewareFunc) {
	publicGroup.POST("/api/analytics/collect", h.Collect)

	admin := e.Group("/admin/analytics")
	admin.Use(authMiddleware)
	admin.GET("/api/stats", h.GetStats)
}
