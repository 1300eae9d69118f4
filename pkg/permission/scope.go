// Package permission implements the consent model that gates browser actions.
//
// Every navigation and input action is scoped to a host. Users grant or deny
// access per origin (or per origin-to-origin transition), either once or
// indefinitely, and the gate resolves each action against those records
// before any tool touches the page.
package permission

import (
	"fmt"
	"net/url"
	"strings"
)

// ScopeKind distinguishes the two scope shapes.
type ScopeKind string

const (
	// ScopeOrigin scopes a permission to a single host pattern.
	ScopeOrigin ScopeKind = "origin"

	// ScopeTransition scopes a permission to a navigation from one host
	// pattern to another.
	ScopeTransition ScopeKind = "transition"
)

// Scope identifies what a permission item applies to. Host is set for origin
// scopes; FromHost and ToHost for transition scopes. Patterns may use a
// leading "*." to match any subdomain.
type Scope struct {
	Kind     ScopeKind `json:"kind"`
	Host     string    `json:"host,omitempty"`
	FromHost string    `json:"from_host,omitempty"`
	ToHost   string    `json:"to_host,omitempty"`
}

// OriginScope creates an origin scope for the given host pattern.
func OriginScope(host string) Scope {
	return Scope{Kind: ScopeOrigin, Host: host}
}

// TransitionScope creates a transition scope between two host patterns.
func TransitionScope(fromHost, toHost string) Scope {
	return Scope{Kind: ScopeTransition, FromHost: fromHost, ToHost: toHost}
}

// String renders the scope for logs and prompts.
func (s Scope) String() string {
	if s.Kind == ScopeTransition {
		return fmt.Sprintf("%s -> %s", s.FromHost, s.ToHost)
	}
	return s.Host
}

// NormalizeHost lowercases a host and strips a leading "www." so that
// www.example.com and example.com compare equal.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

// HostMatches reports whether a host matches a scope pattern.
//
// A plain pattern matches exactly (after www-stripping on both sides). A
// wildcard pattern "*.d" matches d itself or any host ending in ".d".
func HostMatches(host, pattern string) bool {
	host = NormalizeHost(host)
	pattern = strings.ToLower(strings.TrimSpace(pattern))

	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		suffix = NormalizeHost(suffix)
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}

	return host == NormalizeHost(pattern)
}

// HostFromURL extracts the normalized host from a URL string. URLs without a
// scheme are treated as https.
func HostFromURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty URL")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", rawURL, err)
	}

	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}
	return NormalizeHost(host), nil
}

// MatchesOrigin reports whether an origin scope covers the given host.
func (s Scope) MatchesOrigin(host string) bool {
	return s.Kind == ScopeOrigin && HostMatches(host, s.Host)
}

// MatchesTransition reports whether a transition scope covers the given
// host pair.
func (s Scope) MatchesTransition(fromHost, toHost string) bool {
	return s.Kind == ScopeTransition &&
		HostMatches(fromHost, s.FromHost) &&
		HostMatches(toHost, s.ToHost)
}
