package check

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Lottamob/Updates/content"
)

const (
	defaultLinkTimeout = 10 * time.Second
	defaultConcurrency = 8
	defaultPerHostRate = rate.Limit(4)
	defaultUserAgent   = "updates-linkcheck/1.0"
)

// LinkChecker probes the external links of a document over HTTP. It
// remembers results, so checking many documents fetches each URL once.
// The zero value is usable. Methods are safe for concurrent use.
type LinkChecker struct {
	// Client is the HTTP client to probe with. Nil means a default
	// client bounded by Timeout.
	Client *http.Client
	// Timeout bounds each probe when Client is nil. Zero means 10s.
	Timeout time.Duration
	// Concurrency caps parallel probes. Zero means 8.
	Concurrency int
	// PerHost limits the request rate against a single host so a
	// link-heavy post does not hammer one site. Zero means 4/s.
	PerHost rate.Limit
	// UserAgent overrides the probe User-Agent header.
	UserAgent string

	once     sync.Once
	client   *http.Client
	mu       sync.Mutex
	results  map[string]linkResult
	limiters map[string]*rate.Limiter
}

type linkResult struct {
	status int
	err    error
}

func (lc *LinkChecker) init() {
	lc.once.Do(func() {
		lc.client = lc.Client
		if lc.client == nil {
			timeout := lc.Timeout
			if timeout <= 0 {
				timeout = defaultLinkTimeout
			}
			lc.client = &http.Client{Timeout: timeout}
		}
		lc.results = map[string]linkResult{}
		lc.limiters = map[string]*rate.Limiter{}
	})
}

// Check probes every external link in the document. URLs answering with
// a status of 400 or above are broken (an error); URLs that cannot be
// reached at all are reported as warnings, since a timeout on our side
// proves nothing about the target. Anchors, site-relative paths and
// mailto destinations are not probed.
func (lc *LinkChecker) Check(ctx context.Context, doc *content.Document) *Report {
	lc.init()

	var todo []string
	queued := map[string]bool{}
	lc.mu.Lock()
	for _, l := range doc.Links {
		if l.Kind != content.LinkExternal || queued[l.Dest] {
			continue
		}
		queued[l.Dest] = true
		if _, done := lc.results[l.Dest]; !done {
			todo = append(todo, l.Dest)
		}
	}
	lc.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lc.concurrency())
	for _, u := range todo {
		g.Go(func() error {
			res := lc.probe(gctx, u)
			lc.mu.Lock()
			lc.results[u] = res
			lc.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	r := &Report{}
	for _, l := range doc.Links {
		if l.Kind != content.LinkExternal {
			continue
		}
		lc.mu.Lock()
		res := lc.results[l.Dest]
		lc.mu.Unlock()
		switch {
		case res.err != nil:
			r.add(RuleLinkUnreachable, SeverityWarning, l.Line, "%s: %v", l.Dest, res.err)
		case res.status >= 400:
			r.add(RuleLinkBroken, SeverityError, l.Line, "%s responded %d %s", l.Dest, res.status, http.StatusText(res.status))
		}
	}
	return r
}

// probe issues a HEAD request, falling back to GET for servers that
// reject HEAD outright.
func (lc *LinkChecker) probe(ctx context.Context, rawURL string) linkResult {
	if err := lc.wait(ctx, rawURL); err != nil {
		return linkResult{err: err}
	}
	status, err := lc.request(ctx, http.MethodHead, rawURL)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, err = lc.request(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		return linkResult{err: err}
	}
	return linkResult{status: status}
}

func (lc *LinkChecker) request(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	ua := lc.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "*/*")

	resp, err := lc.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
	return resp.StatusCode, nil
}

// wait blocks until the per-host limiter admits one more request.
func (lc *LinkChecker) wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	lc.mu.Lock()
	lim := lc.limiters[u.Hostname()]
	if lim == nil {
		perHost := lc.PerHost
		if perHost <= 0 {
			perHost = defaultPerHostRate
		}
		lim = rate.NewLimiter(perHost, max(1, int(perHost)))
		lc.limiters[u.Hostname()] = lim
	}
	lc.mu.Unlock()
	return lim.Wait(ctx)
}

func (lc *LinkChecker) concurrency() int {
	if lc.Concurrency > 0 {
		return lc.Concurrency
	}
	return defaultConcurrency
}
