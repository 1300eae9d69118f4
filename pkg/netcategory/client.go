// Package netcategory looks up a coarse risk category for a host.
//
// Lookups hit an external categorization endpoint, cached locally with a
// short TTL and de-duplicated per host so a burst of checks for the same
// site costs one request. Local glob-pattern overrides short-circuit the
// network entirely.
package netcategory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/pagepilot/pagepilot/pkg/logging"
)

var categoryDebugLog *logging.Logger

func init() {
	categoryDebugLog, _ = logging.NewLogger("netcategory")
}

// Category is the coarse risk classification of a host.
type Category string

const (
	CategoryAllowed    Category = "allowed"
	CategoryDisallowed Category = "disallowed"
	CategoryUnknown    Category = "unknown"
)

// cacheTTL bounds how long a lookup result is reused.
const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	category  Category
	expiresAt time.Time
}

// Client resolves host categories with caching and in-flight de-duplication.
type Client struct {
	endpoint   string
	httpClient *http.Client

	allowGlobs []glob.Glob
	blockGlobs []glob.Glob

	mu       sync.Mutex
	cache    map[string]cacheEntry
	inFlight map[string]chan struct{}
	results  map[string]Category
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithOverrides installs local allow/block glob patterns. Block patterns win
// over allow patterns; both win over the network lookup.
func WithOverrides(allow, block []string) Option {
	return func(cl *Client) {
		cl.allowGlobs = compileGlobs(allow)
		cl.blockGlobs = compileGlobs(block)
	}
}

func compileGlobs(patterns []string) []glob.Glob {
	var globs []glob.Glob
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			categoryDebugLog.Warnf("ignoring invalid category override %q: %v", p, err)
			continue
		}
		globs = append(globs, g)
	}
	return globs
}

// NewClient creates a category client. endpoint may be empty, in which case
// only local overrides apply and unmatched hosts resolve to Unknown.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string]cacheEntry),
		inFlight:   make(map[string]chan struct{}),
		results:    make(map[string]Category),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup resolves the category for a host.
//
// Order of resolution: local block overrides, local allow overrides, cache,
// then the network endpoint (with concurrent lookups for the same host
// sharing one request). Endpoint failures resolve to Unknown rather than
// blocking navigation.
func (c *Client) Lookup(ctx context.Context, host string) Category {
	for _, g := range c.blockGlobs {
		if g.Match(host) {
			return CategoryDisallowed
		}
	}
	for _, g := range c.allowGlobs {
		if g.Match(host) {
			return CategoryAllowed
		}
	}
	if c.endpoint == "" {
		return CategoryUnknown
	}

	c.mu.Lock()
	if entry, ok := c.cache[host]; ok && time.Now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.category
	}

	if done, ok := c.inFlight[host]; ok {
		// Another lookup for this host is already out; wait for it.
		c.mu.Unlock()
		select {
		case <-done:
			c.mu.Lock()
			category := c.results[host]
			c.mu.Unlock()
			return category
		case <-ctx.Done():
			return CategoryUnknown
		}
	}

	done := make(chan struct{})
	c.inFlight[host] = done
	c.mu.Unlock()

	category := c.fetch(ctx, host)

	c.mu.Lock()
	c.cache[host] = cacheEntry{category: category, expiresAt: time.Now().Add(cacheTTL)}
	c.results[host] = category
	delete(c.inFlight, host)
	close(done)
	c.mu.Unlock()

	return category
}

// fetch performs the network lookup.
func (c *Client) fetch(ctx context.Context, host string) Category {
	reqURL := fmt.Sprintf("%s?host=%s", c.endpoint, url.QueryEscape(host))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		categoryDebugLog.Warnf("category request build failed for %s: %v", host, err)
		return CategoryUnknown
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		categoryDebugLog.Warnf("category lookup failed for %s: %v", host, err)
		return CategoryUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		categoryDebugLog.Warnf("category lookup for %s returned status %d", host, resp.StatusCode)
		return CategoryUnknown
	}

	var body struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		categoryDebugLog.Warnf("category response decode failed for %s: %v", host, err)
		return CategoryUnknown
	}

	switch Category(body.Category) {
	case CategoryAllowed, CategoryDisallowed:
		return Category(body.Category)
	default:
		return CategoryUnknown
	}
}
