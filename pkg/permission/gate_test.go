package permission

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepilot/pagepilot/pkg/config"
)

func testGate(t *testing.T, opts ...GateOption) *Gate {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	backend, err := config.NewFileStore(path)
	require.NoError(t, err)
	store, err := NewStore(backend)
	require.NoError(t, err)
	return NewGate(store, opts...)
}

func TestCheckPermissionNoItemsNeedsPrompt(t *testing.T) {
	gate := testGate(t)

	decision, err := gate.CheckPermission("https://example.com/path", "")
	require.NoError(t, err)
	assert.True(t, decision.NeedsPrompt())
}

func TestCheckPermissionAlwaysAllow(t *testing.T) {
	gate := testGate(t)

	_, err := gate.Grant(OriginScope("example.com"), DurationAlways, "")
	require.NoError(t, err)

	decision, err := gate.CheckPermission("https://example.com/path", "")
	require.NoError(t, err)
	assert.True(t, decision.Allowed())
	require.NotNil(t, decision.Item)

	// No wildcard was granted: subdomains still prompt
	decision, err = gate.CheckPermission("https://sub.example.com", "")
	require.NoError(t, err)
	assert.True(t, decision.NeedsPrompt())
}

func TestCheckPermissionWildcardGrant(t *testing.T) {
	gate := testGate(t)

	_, err := gate.Grant(OriginScope("*.example.com"), DurationAlways, "")
	require.NoError(t, err)

	for _, url := range []string{"https://example.com", "https://sub.example.com", "https://a.b.example.com"} {
		decision, err := gate.CheckPermission(url, "")
		require.NoError(t, err)
		assert.True(t, decision.Allowed(), "expected %s allowed", url)
	}
}

func TestCheckPermissionDenyWins(t *testing.T) {
	gate := testGate(t)

	_, err := gate.Grant(OriginScope("example.com"), DurationAlways, "")
	require.NoError(t, err)
	_, err = gate.Deny(OriginScope("example.com"), DurationAlways, "")
	require.NoError(t, err)

	decision, err := gate.CheckPermission("https://example.com", "")
	require.NoError(t, err)
	assert.True(t, decision.Denied())
	require.NotNil(t, decision.Item)
	assert.Equal(t, ActionDeny, decision.Item.Action)
}

func TestCheckPermissionOnceGrantConsumed(t *testing.T) {
	gate := testGate(t)

	_, err := gate.Grant(OriginScope("example.com"), DurationOnce, "inv-1")
	require.NoError(t, err)

	decision, err := gate.CheckPermission("https://example.com/form", "inv-1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed())

	// Consumed: same (host, invocation) prompts again
	decision, err = gate.CheckPermission("https://example.com/form", "inv-1")
	require.NoError(t, err)
	assert.True(t, decision.NeedsPrompt())
}

func TestCheckPermissionOnceGrantNotReusableByOtherInvocation(t *testing.T) {
	gate := testGate(t)

	_, err := gate.Grant(OriginScope("example.com"), DurationOnce, "inv-1")
	require.NoError(t, err)

	// A different invocation on the same host gets no free ride
	decision, err := gate.CheckPermission("https://example.com", "inv-2")
	require.NoError(t, err)
	assert.True(t, decision.NeedsPrompt())

	// The original grant is still intact for its own invocation
	decision, err = gate.CheckPermission("https://example.com", "inv-1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed())
}

func TestCheckPermissionOnceDenialNotPersisted(t *testing.T) {
	gate := testGate(t)

	item, err := gate.Deny(OriginScope("example.com"), DurationOnce, "inv-1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, ActionDeny, item.Action)

	// Nothing was stored: next check still prompts
	decision, err := gate.CheckPermission("https://example.com", "inv-1")
	require.NoError(t, err)
	assert.True(t, decision.NeedsPrompt())
	assert.Empty(t, gate.store.Items())
}

func TestCheckPermissionSkipAll(t *testing.T) {
	gate := testGate(t, WithSkipAll(true))

	decision, err := gate.CheckPermission("https://anything.example", "")
	require.NoError(t, err)
	assert.True(t, decision.Allowed())
	assert.Nil(t, decision.Item)
}

func TestCheckPermissionForcePrompt(t *testing.T) {
	gate := testGate(t, WithForcePrompt(true))

	_, err := gate.Grant(OriginScope("example.com"), DurationAlways, "")
	require.NoError(t, err)

	// Always grants are ignored under force-prompt
	decision, err := gate.CheckPermission("https://example.com", "")
	require.NoError(t, err)
	assert.True(t, decision.NeedsPrompt())

	// But a once-grant for the exact invocation still resolves, since
	// that is how a prompt answer flows back in
	_, err = gate.Grant(OriginScope("example.com"), DurationOnce, "inv-1")
	require.NoError(t, err)
	decision, err = gate.CheckPermission("https://example.com", "inv-1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed())
}

func TestCheckPermissionForcePromptOverridesSkipAll(t *testing.T) {
	gate := testGate(t, WithSkipAll(true), WithForcePrompt(true))

	decision, err := gate.CheckPermission("https://example.com", "")
	require.NoError(t, err)
	assert.True(t, decision.NeedsPrompt())
}

func TestCheckPermissionPicksUpExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	backend, err := config.NewFileStore(path)
	require.NoError(t, err)
	store, err := NewStore(backend)
	require.NoError(t, err)
	gate := NewGate(store)

	decision, err := gate.CheckPermission("https://example.com", "")
	require.NoError(t, err)
	assert.True(t, decision.NeedsPrompt())

	// Another context writes a grant to the same file
	backend2, err := config.NewFileStore(path)
	require.NoError(t, err)
	store2, err := NewStore(backend2)
	require.NoError(t, err)
	otherGate := NewGate(store2)
	_, err = otherGate.Grant(OriginScope("example.com"), DurationAlways, "")
	require.NoError(t, err)

	decision, err = gate.CheckPermission("https://example.com", "")
	require.NoError(t, err)
	assert.True(t, decision.Allowed())
}

func TestCheckDomainTransition(t *testing.T) {
	gate := testGate(t)

	decision, err := gate.CheckDomainTransition("example.com", "checkout.example.com")
	require.NoError(t, err)
	assert.True(t, decision.NeedsPrompt())

	_, err = gate.Grant(TransitionScope("example.com", "checkout.example.com"), DurationAlways, "")
	require.NoError(t, err)

	decision, err = gate.CheckDomainTransition("example.com", "checkout.example.com")
	require.NoError(t, err)
	assert.True(t, decision.Allowed())

	// Deny-wins applies to transitions too
	_, err = gate.Deny(TransitionScope("example.com", "checkout.example.com"), DurationAlways, "")
	require.NoError(t, err)
	decision, err = gate.CheckDomainTransition("example.com", "checkout.example.com")
	require.NoError(t, err)
	assert.True(t, decision.Denied())
}

func TestHasOriginWidePermission(t *testing.T) {
	gate := testGate(t)

	assert.False(t, gate.HasOriginWidePermission("example.com"))

	_, err := gate.Grant(OriginScope("example.com"), DurationAlways, "")
	require.NoError(t, err)
	assert.True(t, gate.HasOriginWidePermission("example.com"))
	assert.True(t, gate.HasOriginWidePermission("www.example.com"))
	assert.False(t, gate.HasOriginWidePermission("sub.example.com"))

	// A once-grant does not count as origin-wide
	gate2 := testGate(t)
	_, err = gate2.Grant(OriginScope("other.com"), DurationOnce, "inv-1")
	require.NoError(t, err)
	assert.False(t, gate2.HasOriginWidePermission("other.com"))
}

func TestGateClearOnce(t *testing.T) {
	gate := testGate(t)

	_, err := gate.Grant(OriginScope("example.com"), DurationOnce, "inv-1")
	require.NoError(t, err)
	_, err = gate.Grant(OriginScope("example.com"), DurationAlways, "")
	require.NoError(t, err)

	require.NoError(t, gate.ClearOnce())

	// Once grant is gone, Always grant survives
	decision, err := gate.CheckPermission("https://example.com", "inv-1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed())
	require.NotNil(t, decision.Item)
	assert.Equal(t, DurationAlways, decision.Item.Duration)
}

func TestGrantOnceRequiresInvocationID(t *testing.T) {
	gate := testGate(t)
	_, err := gate.Grant(OriginScope("example.com"), DurationOnce, "")
	assert.Error(t, err)
}
