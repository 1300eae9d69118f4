package permission

import (
	"fmt"
	"sync"

	"github.com/pagepilot/pagepilot/pkg/logging"
)

// gateDebugLog is the package-level debug logger for permission decisions.
var gateDebugLog *logging.Logger

func init() {
	gateDebugLog, _ = logging.NewLogger("permission")
}

// DecisionKind classifies the outcome of a permission check.
type DecisionKind string

const (
	// DecisionAllowed means the action may proceed. Item is nil when the
	// skip-all policy allowed it.
	DecisionAllowed DecisionKind = "allowed"

	// DecisionDenied means the action must not proceed.
	DecisionDenied DecisionKind = "denied"

	// DecisionNeedsPrompt means no stored item applies; the user must be
	// asked.
	DecisionNeedsPrompt DecisionKind = "needs_prompt"
)

// Decision is the result of a permission check.
type Decision struct {
	Kind DecisionKind
	Item *Item
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool { return d.Kind == DecisionAllowed }

// Denied reports whether the decision forbids the action.
func (d Decision) Denied() bool { return d.Kind == DecisionDenied }

// NeedsPrompt reports whether the user must be asked.
func (d Decision) NeedsPrompt() bool { return d.Kind == DecisionNeedsPrompt }

// Gate evaluates whether actions on URLs are allowed, denied, or need a
// user prompt. It owns a read-through cache over the store's Always items;
// the cache is dropped whenever the store's contents change.
type Gate struct {
	mu    sync.Mutex
	store *Store

	// skipAll disables all checks (every action allowed without lookup)
	skipAll bool

	// forcePrompt forces re-confirmation of every gated action, ignoring
	// stored Always grants. Once grants tied to an invocation still apply,
	// since they are how a prompt resolution flows back in.
	forcePrompt bool

	cache    map[string]Decision
	cacheRev uint64
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithSkipAll disables permission checks entirely.
func WithSkipAll(skip bool) GateOption {
	return func(g *Gate) { g.skipAll = skip }
}

// WithForcePrompt forces a prompt on every check regardless of stored grants.
func WithForcePrompt(force bool) GateOption {
	return func(g *Gate) { g.forcePrompt = force }
}

// NewGate creates a gate over the given store.
func NewGate(store *Store, opts ...GateOption) *Gate {
	g := &Gate{
		store: store,
		cache: make(map[string]Decision),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckPermission resolves whether an action on rawURL may proceed.
//
// invocationID, when present, is matched against Once grants tied to that
// exact invocation; a matching grant is consumed (deleted) on use. Otherwise
// Always items matching the host decide, with Deny taking precedence over
// Allow when both match. No match means the user must be prompted.
func (g *Gate) CheckPermission(rawURL, invocationID string) (Decision, error) {
	host, err := HostFromURL(rawURL)
	if err != nil {
		return Decision{}, err
	}

	if g.skipAll && !g.forcePrompt {
		return Decision{Kind: DecisionAllowed}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Pick up writes from other contexts before deciding
	changed, err := g.store.Reload()
	if err != nil {
		return Decision{}, err
	}
	if changed {
		g.cache = make(map[string]Decision)
	}

	// Once grants tied to this exact invocation win first, and are
	// consumed: the same (host, invocation) pair prompts again next time.
	if invocationID != "" {
		for _, item := range g.store.Items() {
			if item.Duration != DurationOnce || item.ToolInvocationID != invocationID {
				continue
			}
			if !item.Scope.MatchesOrigin(host) {
				continue
			}
			if err := g.store.Touch(item.ID); err != nil {
				return Decision{}, err
			}
			if err := g.store.Remove(item.ID); err != nil {
				return Decision{}, err
			}
			g.cache = make(map[string]Decision)
			if item.Action == ActionDeny {
				gateDebugLog.Infof("once-denial consumed for host=%s invocation=%s", host, invocationID)
				return Decision{Kind: DecisionDenied, Item: item}, nil
			}
			gateDebugLog.Infof("once-grant consumed for host=%s invocation=%s", host, invocationID)
			return Decision{Kind: DecisionAllowed, Item: item}, nil
		}
	}

	if g.forcePrompt {
		return Decision{Kind: DecisionNeedsPrompt}, nil
	}

	if cached, ok := g.cache[host]; ok {
		return cached, nil
	}

	decision := g.resolveAlwaysLocked(host)
	g.cache[host] = decision
	return decision, nil
}

// resolveAlwaysLocked scans Always items for the host, deny-wins.
func (g *Gate) resolveAlwaysLocked(host string) Decision {
	var allowed *Item
	for _, item := range g.store.Items() {
		if item.Duration != DurationAlways || !item.Scope.MatchesOrigin(host) {
			continue
		}
		if item.Action == ActionDeny {
			return Decision{Kind: DecisionDenied, Item: item}
		}
		if allowed == nil {
			allowed = item
		}
	}
	if allowed != nil {
		return Decision{Kind: DecisionAllowed, Item: allowed}
	}
	return Decision{Kind: DecisionNeedsPrompt}
}

// CheckDomainTransition resolves whether a navigation from one host to
// another may proceed, using Transition-scoped Always items with the same
// deny-wins precedence. The force-prompt flag always prompts here; it exists
// to force re-confirmation after risk-tier changes.
func (g *Gate) CheckDomainTransition(fromHost, toHost string) (Decision, error) {
	if g.skipAll && !g.forcePrompt {
		return Decision{Kind: DecisionAllowed}, nil
	}
	if g.forcePrompt {
		return Decision{Kind: DecisionNeedsPrompt}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if changed, err := g.store.Reload(); err != nil {
		return Decision{}, err
	} else if changed {
		g.cache = make(map[string]Decision)
	}

	fromHost = NormalizeHost(fromHost)
	toHost = NormalizeHost(toHost)

	var allowed *Item
	for _, item := range g.store.Items() {
		if item.Duration != DurationAlways || !item.Scope.MatchesTransition(fromHost, toHost) {
			continue
		}
		if item.Action == ActionDeny {
			return Decision{Kind: DecisionDenied, Item: item}, nil
		}
		if allowed == nil {
			allowed = item
		}
	}
	if allowed != nil {
		return Decision{Kind: DecisionAllowed, Item: allowed}, nil
	}
	return Decision{Kind: DecisionNeedsPrompt}, nil
}

// Grant records a permission grant. Once grants are tied to the given
// invocation ID and consumed on first use.
func (g *Gate) Grant(scope Scope, duration Duration, invocationID string) (*Item, error) {
	if duration == DurationOnce && invocationID == "" {
		return nil, fmt.Errorf("once-grant requires an invocation ID")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	item := NewItem(scope, ActionAllow, duration, invocationID)
	if err := g.store.Add(item); err != nil {
		return nil, err
	}
	g.cache = make(map[string]Decision)
	gateDebugLog.Infof("granted %s/%s for %s", item.Action, item.Duration, scope)
	return item, nil
}

// Deny records a permission denial. Once denials are not persisted: declining
// a single action needs no durable record since nothing was cached for it.
// The returned item is still usable by the caller to report the decision.
func (g *Gate) Deny(scope Scope, duration Duration, invocationID string) (*Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	item := NewItem(scope, ActionDeny, duration, invocationID)
	if duration == DurationOnce {
		gateDebugLog.Infof("once-denial for %s (not persisted)", scope)
		return item, nil
	}

	if err := g.store.Add(item); err != nil {
		return nil, err
	}
	g.cache = make(map[string]Decision)
	gateDebugLog.Infof("denied %s/%s for %s", item.Action, item.Duration, scope)
	return item, nil
}

// HasOriginWidePermission reports whether an Always+Allow+Origin item matches
// the host. Used to pick a lower-friction consent presentation, never to
// bypass checks.
func (g *Gate) HasOriginWidePermission(host string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	host = NormalizeHost(host)
	for _, item := range g.store.Items() {
		if item.Duration == DurationAlways && item.Action == ActionAllow && item.Scope.MatchesOrigin(host) {
			return true
		}
	}
	return false
}

// ClearOnce removes all Once items from the store; called at turn start.
func (g *Gate) ClearOnce() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.ClearOnce(); err != nil {
		return err
	}
	g.cache = make(map[string]Decision)
	return nil
}
