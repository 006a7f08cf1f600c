// Package analytics provides privacy-first visit tracking: no cookies,
// no raw IPs, salted hashes only.
package analytics

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// hashSalt is the per-installation salt for visitor hashing. It is loaded
// once per process; rotating it resets all visitor identities.
var hashSalt struct {
	once  sync.Once
	value string
}

// InitSalt loads the persistent salt from the settings table, generating
// and storing one on first run. Call it at startup, before any requests.
func InitSalt(store *Store) error {
	var initErr error
	hashSalt.once.Do(func() {
		hashSalt.value, initErr = loadOrCreateSalt(store)
	})
	return initErr
}

func loadOrCreateSalt(store *Store) (string, error) {
	s, err := store.GetSetting("hash_salt")
	if err != nil {
		return "", fmt.Errorf("read hash salt: %w", err)
	}
	if s != "" {
		return s, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	s = hex.EncodeToString(b)
	if err := store.SetSetting("hash_salt", s); err != nil {
		return "", fmt.Errorf("store hash salt: %w", err)
	}
	return s, nil
}

func getSalt() string {
	return hashSalt.value
}

// Visit is a single page view.
type Visit struct {
	ID          int64     `json:"-"`
	VisitorID   string    `json:"visitor_id"` // salted fingerprint, never the IP
	SessionID   string    `json:"session_id"`
	IPHash      string    `json:"-"`
	Browser     string    `json:"browser"`
	OS          string    `json:"os"`
	Device      string    `json:"device"` // Desktop, Mobile, Tablet
	Path        string    `json:"path"`
	Referrer    string    `json:"referrer"`
	ScreenSize  string    `json:"screen_size"`
	Timestamp   time.Time `json:"timestamp"`
	DurationSec int       `json:"duration_sec"` // 0 until the unload beacon reports
}

// Stats holds aggregated analytics for one period.
type Stats struct {
	Period         string            `json:"period"`
	UniqueVisitors int               `json:"unique_visitors"`
	TotalViews     int               `json:"total_views"`
	AvgDuration    int               `json:"avg_duration_sec"`
	TopPages       []PageStat        `json:"top_pages"`
	LatestPages    []LatestPageVisit `json:"latest_pages"`
	BrowserStats   []DimensionStat   `json:"browsers"`
	OSStats        []DimensionStat   `json:"os"`
	DeviceStats    []DimensionStat   `json:"devices"`
	ReferrerStats  []DimensionStat   `json:"referrers"`
	DailyViews     []DailyView       `json:"daily_views"`
}

// PageStat counts views for one path.
type PageStat struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// LatestPageVisit is one entry in the recent-visits feed.
type LatestPageVisit struct {
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
	Browser   string `json:"browser"`
}

// DimensionStat is one row of a breakdown (browser, OS, device, referrer).
type DimensionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyView counts views in one day or hour bucket.
type DailyView struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// saltedHash joins the salt with the given parts and returns a truncated
// hex digest, short enough to index and useless to reverse.
func saltedHash(parts ...string) string {
	sum := sha256.Sum256([]byte(getSalt() + "|" + strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// HashIP hashes an IP with the installation salt.
func HashIP(ip string) string {
	return saltedHash(ip)
}

// GenerateVisitorID derives the anonymous visitor fingerprint from IP and
// User-Agent.
func GenerateVisitorID(ip, userAgent string) string {
	return saltedHash(ip, userAgent)
}

// uaRule maps lowercase UA substrings to a label. Rules are ordered:
// earlier entries win.
type uaRule struct {
	label  string
	tokens []string
}

var browserRules = []uaRule{
	{"Firefox", []string{"firefox"}},
	{"Opera", []string{"opera", "opr"}},
	{"Edge", []string{"edg"}},
	{"Chrome", []string{"chrome"}},
	{"Safari", []string{"safari"}},
}

// Android UAs contain "linux", so Android must come first.
var osRules = []uaRule{
	{"Windows", []string{"windows"}},
	{"Android", []string{"android"}},
	{"iOS", []string{"iphone", "ipad"}},
	{"macOS", []string{"macintosh", "mac os"}},
	{"Linux", []string{"linux"}},
}

// iPad UAs contain "mobile", so Tablet must come first.
var deviceRules = []uaRule{
	{"Tablet", []string{"tablet", "ipad"}},
	{"Mobile", []string{"mobile"}},
}

func classify(ua string, rules []uaRule, fallback string) string {
	for _, r := range rules {
		for _, tok := range r.tokens {
			if strings.Contains(ua, tok) {
				return r.label
			}
		}
	}
	return fallback
}

// ParseUserAgent extracts browser, OS, and device class from a User-Agent.
func ParseUserAgent(ua string) (browser, os, device string) {
	ua = strings.ToLower(ua)
	return classify(ua, browserRules, "Other"),
		classify(ua, osRules, "Other"),
		classify(ua, deviceRules, "Desktop")
}

var botMarkers = []string{
	"bot", "crawler", "spider", "crawl", "slurp", "scrape",
	"googlebot", "bingbot", "yandex", "baidu", "duckduckbot",
	"facebookexternalhit", "twitterbot", "linkedinbot",
	"ahrefsbot", "semrushbot", "mj12bot", "dotbot",
}

// IsBot reports whether a User-Agent looks like crawler traffic, which is
// acknowledged but never stored.
func IsBot(ua string) bool {
	ua = strings.ToLower(ua)
	for _, marker := range botMarkers {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

// knownSources collapses well-known referrers to a display label. Ordered,
// checked before domain extraction.
var knownSources = []struct {
	token string
	label string
}{
	{"google.", "Google"},
	{"bing.", "Bing"},
	{"duckduckgo.", "DuckDuckGo"},
	{"yahoo.", "Yahoo"},
	{"github.", "GitHub"},
}

var refDomainPattern = regexp.MustCompile(`^https?://(?:www\.)?([^/]+)`)

// CleanReferrer reduces a referrer URL to a source label: a known source
// name, the bare domain, or Direct/Other.
func CleanReferrer(ref string) string {
	if ref == "" {
		return "Direct"
	}
	lower := strings.ToLower(ref)
	for _, s := range knownSources {
		if strings.Contains(lower, s.token) {
			return s.label
		}
	}
	if m := refDomainPattern.FindStringSubmatch(ref); len(m) > 1 {
		return m[1]
	}
	return "Other"
}
