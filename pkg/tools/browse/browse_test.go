package browse

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepilot/pagepilot/pkg/browser"
	"github.com/pagepilot/pagepilot/pkg/config"
	"github.com/pagepilot/pagepilot/pkg/llm"
	"github.com/pagepilot/pagepilot/pkg/netcategory"
	"github.com/pagepilot/pagepilot/pkg/permission"
	"github.com/pagepilot/pagepilot/pkg/types"
)

type recordedCall struct {
	method string
	params map[string]interface{}
}

// stubTransport records protocol calls and serves canned per-method results
// by JSON round-tripping them into the caller's result struct.
type stubTransport struct {
	mu      sync.Mutex
	calls   []recordedCall
	results map[string]interface{}
	url     string
}

func newStubTransport() *stubTransport {
	return &stubTransport{
		results: make(map[string]interface{}),
		url:     "https://example.com/page",
	}
}

func (s *stubTransport) Attach(ctx context.Context) error { return nil }
func (s *stubTransport) Detach(ctx context.Context) error { return nil }
func (s *stubTransport) OnDetached(fn func())             {}

func (s *stubTransport) URL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *stubTransport) setURL(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

func (s *stubTransport) Call(ctx context.Context, method string, params, result interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, _ := params.(map[string]interface{})
	s.calls = append(s.calls, recordedCall{method: method, params: p})

	if result != nil {
		if v, ok := s.results[method]; ok {
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			return json.Unmarshal(raw, result)
		}
	}
	return nil
}

func (s *stubTransport) recorded(method string) []recordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedCall
	for _, c := range s.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

// stubScripts is a configurable PageScripts stub.
type stubScripts struct {
	mu              sync.Mutex
	snapshot        string
	outerHTML       string
	documentContent string
	element         *browser.ResolvedElement
	setValues       map[string]string
	scrollPositions []float64 // consumed pairwise by ScrollPosition
	inPageScroll    bool
	typedChords     []string
}

func newStubScripts() *stubScripts {
	return &stubScripts{
		snapshot:  "button \"Login\" [ref=el1]",
		outerHTML: "<html><head><title>Example</title></head><body><p>hello world</p></body></html>",
		setValues: make(map[string]string),
	}
}

func (s *stubScripts) HideIndicator(ctx context.Context) error { return nil }
func (s *stubScripts) ShowIndicator(ctx context.Context) error { return nil }

func (s *stubScripts) ViewportMetrics(ctx context.Context) (browser.ViewportMetrics, error) {
	return browser.ViewportMetrics{Width: 1280, Height: 800, DevicePixelRatio: 1}, nil
}

func (s *stubScripts) AccessibilitySnapshot(ctx context.Context) (string, error) {
	return s.snapshot, nil
}

func (s *stubScripts) ResolveElement(ctx context.Context, ref string) (*browser.ResolvedElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.element == nil || s.element.Ref != ref {
		return nil, browser.ErrElementNotFound
	}
	el := *s.element
	return &el, nil
}

func (s *stubScripts) SetFormValue(ctx context.Context, ref, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setValues[ref] = value
	return nil
}

func (s *stubScripts) ScrollPosition(ctx context.Context) (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scrollPositions) == 0 {
		return 0, 0, nil
	}
	y := s.scrollPositions[0]
	s.scrollPositions = s.scrollPositions[1:]
	return 0, y, nil
}

func (s *stubScripts) ScrollElementAt(ctx context.Context, x, y, dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inPageScroll = true
	return nil
}

func (s *stubScripts) OuterHTML(ctx context.Context) (string, error) {
	return s.outerHTML, nil
}

func (s *stubScripts) DocumentContent(ctx context.Context) (string, error) {
	return s.documentContent, nil
}

// stubFinder is an llm.Provider returning a canned response.
type stubFinder struct {
	response string
	lastReq  *llm.Request
}

func (f *stubFinder) StreamCompletion(ctx context.Context, req *llm.Request) (<-chan *llm.StreamChunk, error) {
	ch := make(chan *llm.StreamChunk)
	close(ch)
	return ch, nil
}

func (f *stubFinder) Complete(ctx context.Context, req *llm.Request) (*types.Message, error) {
	f.lastReq = req
	return types.NewAssistantMessage(f.response), nil
}

func (f *stubFinder) GetModelInfo() *types.ModelInfo {
	return &types.ModelInfo{ContextWindow: 128000, MaxOutputTokens: 4096}
}

func (f *stubFinder) GetModel() string { return "stub" }

type envFixture struct {
	env       *Env
	transport *stubTransport
	scripts   *stubScripts
	gate      *permission.Gate
	finder    *stubFinder
}

func newFixture(t *testing.T, gateOpts ...permission.GateOption) *envFixture {
	t.Helper()
	backend, err := config.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	store, err := permission.NewStore(backend)
	require.NoError(t, err)
	gate := permission.NewGate(store, gateOpts...)

	transport := newStubTransport()
	scripts := newStubScripts()
	session := browser.NewSession(transport, browser.WithPageScripts(scripts), browser.WithMacPlatform(false))
	finder := &stubFinder{}

	return &envFixture{
		env:       NewEnv(session, gate, nil, finder),
		transport: transport,
		scripts:   scripts,
		gate:      gate,
		finder:    finder,
	}
}

func rawInput(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func allowHost(t *testing.T, gate *permission.Gate, host string) {
	t.Helper()
	_, err := gate.Grant(permission.OriginScope(host), permission.DurationAlways, "")
	require.NoError(t, err)
}

func TestNavigatePromptsThenNavigates(t *testing.T) {
	f := newFixture(t)
	tool := NewNavigateTool()
	ctx := context.Background()

	inv := &Invocation{ID: "inv-1", Input: rawInput(t, map[string]string{"url": "news.example.com"})}
	result := tool.Execute(ctx, f.env, inv)
	require.True(t, result.NeedsPermission())
	assert.Equal(t, "news.example.com", result.Permission.Host)
	assert.Contains(t, result.Permission.PreviewText, "https://news.example.com")

	allowHost(t, f.gate, "news.example.com")

	result = tool.Execute(ctx, f.env, inv)
	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	require.False(t, result.NeedsPermission())

	navs := f.transport.recorded(browser.MethodNavigate)
	require.Len(t, navs, 1)
	assert.Equal(t, "https://news.example.com", navs[0].params["url"])
}

func TestNavigateBackWithoutHistoryReportsUnchangedURL(t *testing.T) {
	// A force-prompt gate would demand consent on any gated check, so a
	// plain text result proves history navigation bypasses the gate.
	f := newFixture(t, permission.WithForcePrompt(true))
	f.transport.results[browser.MethodNavigationHistory] = map[string]interface{}{
		"currentIndex": 0,
		"entries":      []map[string]interface{}{{"id": 1}},
	}

	inv := &Invocation{ID: "inv-1", Input: rawInput(t, map[string]string{"url": "back"})}
	result := NewNavigateTool().Execute(context.Background(), f.env, inv)

	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	require.False(t, result.NeedsPermission())
	assert.Contains(t, result.Output, "https://example.com/page")
	assert.Empty(t, f.transport.recorded(browser.MethodNavigateToEntry))
}

func TestNavigateBackMovesToPreviousEntry(t *testing.T) {
	f := newFixture(t)
	f.transport.results[browser.MethodNavigationHistory] = map[string]interface{}{
		"currentIndex": 1,
		"entries":      []map[string]interface{}{{"id": 7}, {"id": 8}},
	}

	inv := &Invocation{ID: "inv-1", Input: rawInput(t, map[string]string{"url": "BACK"})}
	result := NewNavigateTool().Execute(context.Background(), f.env, inv)

	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	moves := f.transport.recorded(browser.MethodNavigateToEntry)
	require.Len(t, moves, 1)
	assert.EqualValues(t, 7, moves[0].params["entryId"])
}

func TestNavigateDisallowedCategoryRejectedBeforePrompt(t *testing.T) {
	f := newFixture(t)
	f.env.Categories = netcategory.NewClient("", netcategory.WithOverrides(nil, []string{"evil.com"}))

	inv := &Invocation{ID: "inv-1", Input: rawInput(t, map[string]string{"url": "https://evil.com/login"})}
	result := NewNavigateTool().Execute(context.Background(), f.env, inv)

	require.True(t, result.IsError())
	assert.False(t, result.NeedsPermission(), "disallowed sites must not be offered for consent")
	assert.Contains(t, result.Err.Error(), "not allowed")
}

func TestComputerOnceGrantBoundToInvocation(t *testing.T) {
	f := newFixture(t)
	tool := NewComputerTool()
	ctx := context.Background()
	input := rawInput(t, map[string]interface{}{
		"action":     "left_click",
		"coordinate": []float64{100, 200},
	})

	first := tool.Execute(ctx, f.env, &Invocation{ID: "inv-X", Input: input})
	require.True(t, first.NeedsPermission())
	assert.Equal(t, "inv-X", first.Permission.InvocationID)

	_, err := f.gate.Grant(permission.OriginScope(first.Permission.Host), permission.DurationOnce, "inv-X")
	require.NoError(t, err)

	retry := tool.Execute(ctx, f.env, &Invocation{ID: "inv-X", Input: input})
	require.False(t, retry.IsError(), "unexpected error: %v", retry.Err)
	require.False(t, retry.NeedsPermission())
	assert.NotEmpty(t, f.transport.recorded(browser.MethodDispatchMouseEvent))

	// The grant was consumed and tied to inv-X: a different invocation
	// prompts again.
	other := tool.Execute(ctx, f.env, &Invocation{ID: "inv-Y", Input: input})
	require.True(t, other.NeedsPermission())
}

func TestComputerWaitBypassesGate(t *testing.T) {
	f := newFixture(t, permission.WithForcePrompt(true))
	input := rawInput(t, map[string]interface{}{"action": "wait", "duration": 0.01})

	result := NewComputerTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: input})

	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	assert.False(t, result.NeedsPermission())
	assert.Contains(t, result.Output, "Waited")
}

func TestComputerOriginChangeBlocksPointerActions(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "other.net")
	f.env.RecordSnapshotHost("example.com")
	f.transport.setURL("https://other.net/")

	input := rawInput(t, map[string]interface{}{
		"action":     "left_click",
		"coordinate": []float64{10, 10},
	})
	result := NewComputerTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: input})

	require.True(t, result.IsError())
	assert.Contains(t, result.Err.Error(), "security violation")
	assert.Empty(t, f.transport.recorded(browser.MethodDispatchMouseEvent))
}

func TestComputerScrollFallsBackToInPageScroll(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	// Position identical before and after: wheel events had no effect
	f.scripts.scrollPositions = []float64{100, 100}

	input := rawInput(t, map[string]interface{}{
		"action":           "scroll",
		"coordinate":       []float64{400, 300},
		"scroll_direction": "down",
	})
	result := NewComputerTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: input})

	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	assert.True(t, f.scripts.inPageScroll)
	assert.Contains(t, result.Output, "element scroll")
}

func TestComputerScrollWheelPathEffective(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	f.scripts.scrollPositions = []float64{100, 500}

	input := rawInput(t, map[string]interface{}{
		"action":           "scroll",
		"coordinate":       []float64{400, 300},
		"scroll_direction": "down",
		"scroll_amount":    400,
	})
	result := NewComputerTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: input})

	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	assert.False(t, f.scripts.inPageScroll)

	wheels := f.transport.recorded(browser.MethodDispatchMouseEvent)
	require.NotEmpty(t, wheels)
	assert.Equal(t, "mouseWheel", wheels[0].params["type"])
	assert.EqualValues(t, 400, wheels[0].params["deltaY"])
}

func TestComputerTypePreviewCarriesLiteralText(t *testing.T) {
	f := newFixture(t)
	input := rawInput(t, map[string]interface{}{"action": "type", "text": "hello@example.com"})

	result := NewComputerTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: input})

	require.True(t, result.NeedsPermission())
	assert.Contains(t, result.Permission.PreviewText, "hello@example.com")
}

func TestComputerDeniedHostSkipsPreviewCapture(t *testing.T) {
	f := newFixture(t)
	_, err := f.gate.Deny(permission.OriginScope("example.com"), permission.DurationAlways, "")
	require.NoError(t, err)

	input := rawInput(t, map[string]interface{}{
		"action":     "left_click",
		"coordinate": []float64{100, 100},
	})
	result := NewComputerTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: input})

	require.True(t, result.IsError())
	assert.Contains(t, result.Err.Error(), "permission denied")
	assert.Empty(t, f.transport.recorded(browser.MethodCaptureScreenshot),
		"a denied pointer action must not touch the page for a preview")
}

func TestComputerAllowedClickSkipsPreviewCapture(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")

	input := rawInput(t, map[string]interface{}{
		"action":     "left_click",
		"coordinate": []float64{100, 100},
	})
	result := NewComputerTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: input})

	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	assert.Empty(t, f.transport.recorded(browser.MethodCaptureScreenshot),
		"an allowed pointer action scales against the recorded screenshot, not a fresh capture")
}

func TestComputerUnknownActionRejected(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	input := rawInput(t, map[string]interface{}{"action": "middle_click"})

	result := NewComputerTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: input})

	require.True(t, result.IsError())
	assert.Contains(t, result.Err.Error(), "invalid computer input")
}

func TestComputerDragDispatchesPressMoveRelease(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	input := rawInput(t, map[string]interface{}{
		"action":           "left_click_drag",
		"start_coordinate": []float64{100, 100},
		"coordinate":       []float64{300, 100},
	})

	result := NewComputerTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: input})
	require.False(t, result.IsError(), "unexpected error: %v", result.Err)

	events := f.transport.recorded(browser.MethodDispatchMouseEvent)
	require.NotEmpty(t, events)
	assert.Equal(t, "mouseMoved", events[0].params["type"])
	assert.Equal(t, "mousePressed", events[1].params["type"])
	assert.Equal(t, "mouseReleased", events[len(events)-1].params["type"])
}

func TestFormInputStaleReference(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	input := rawInput(t, map[string]string{"ref": "el99", "value": "x"})

	result := NewFormInputTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: input})

	require.True(t, result.IsError())
	assert.Contains(t, result.Err.Error(), "read the page again")
}

func TestFormInputSelectValidatesOptions(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	f.scripts.element = &browser.ResolvedElement{
		Ref:     "el1",
		Kind:    browser.ElementSelect,
		Options: []string{"Red", "Blue"},
	}

	bad := rawInput(t, map[string]string{"ref": "el1", "value": "Green"})
	result := NewFormInputTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1", Input: bad})
	require.True(t, result.IsError())
	assert.Contains(t, result.Err.Error(), "Red, Blue")

	good := rawInput(t, map[string]string{"ref": "el1", "value": "blue"})
	result = NewFormInputTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-2", Input: good})
	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	assert.Equal(t, "blue", f.scripts.setValues["el1"])
}

func TestFormInputCheckboxParsesBool(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	f.scripts.element = &browser.ResolvedElement{Ref: "el2", Kind: browser.ElementCheckbox}

	result := NewFormInputTool().Execute(context.Background(), f.env, &Invocation{
		ID:    "inv-1",
		Input: rawInput(t, map[string]string{"ref": "el2", "value": "maybe"}),
	})
	require.True(t, result.IsError())

	result = NewFormInputTool().Execute(context.Background(), f.env, &Invocation{
		ID:    "inv-2",
		Input: rawInput(t, map[string]string{"ref": "el2", "value": "true"}),
	})
	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	assert.Equal(t, "true", f.scripts.setValues["el2"])
}

func TestFormInputTextFieldTypesValue(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	f.scripts.element = &browser.ResolvedElement{
		Ref: "el3", Kind: browser.ElementText,
		X: 100, Y: 50, Width: 200, Height: 30,
	}

	result := NewFormInputTool().Execute(context.Background(), f.env, &Invocation{
		ID:    "inv-1",
		Input: rawInput(t, map[string]string{"ref": "el3", "value": "ab"}),
	})
	require.False(t, result.IsError(), "unexpected error: %v", result.Err)

	mouse := f.transport.recorded(browser.MethodDispatchMouseEvent)
	require.NotEmpty(t, mouse, "text input starts with a focusing click")
	keys := f.transport.recorded(browser.MethodDispatchKeyEvent)
	assert.NotEmpty(t, keys, "clear and typing go through key events")
}

func TestReadPageRecordsSnapshotHost(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")

	result := NewReadPageTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1"})

	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	assert.Contains(t, result.Output, "Login")
	assert.Equal(t, "example.com", f.env.SnapshotHost())
}

func TestReadPageEmptySnapshot(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	f.scripts.snapshot = ""

	result := NewReadPageTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1"})

	require.False(t, result.IsError())
	assert.Contains(t, result.Output, "no readable content")
}

func TestGetPageTextHTML(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")

	result := NewGetPageTextTool().Execute(context.Background(), f.env, &Invocation{ID: "inv-1"})

	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	assert.Contains(t, result.Output, "Title: Example")
	assert.Contains(t, result.Output, "hello world")
}

func TestFindParsesModelResponse(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	f.finder.response = "FOUND: 2\nel1 | button | Login | submit | 100,200 | primary login button\nel2 | link | Sign in | | 300,40 | header sign-in link\nMORE: 3"

	result := NewFindTool().Execute(context.Background(), f.env, &Invocation{
		ID:    "inv-1",
		Input: rawInput(t, map[string]string{"query": "login controls"}),
	})

	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	assert.Contains(t, result.Output, "Found 2 element(s)")
	assert.Contains(t, result.Output, "el1 | button | Login")
	assert.Contains(t, result.Output, "3 more match(es)")
	require.NotNil(t, f.finder.lastReq)
	assert.Contains(t, f.finder.lastReq.Messages[0].Text(), "login controls")
}

func TestFindEmptyPageSkipsModelCall(t *testing.T) {
	f := newFixture(t)
	allowHost(t, f.gate, "example.com")
	f.scripts.snapshot = ""

	result := NewFindTool().Execute(context.Background(), f.env, &Invocation{
		ID:    "inv-1",
		Input: rawInput(t, map[string]string{"query": "anything"}),
	})

	require.False(t, result.IsError(), "unexpected error: %v", result.Err)
	assert.Equal(t, "FOUND: 0. The page has no readable content.", result.Output)
	assert.Nil(t, f.finder.lastReq)
}

func TestRegistryDispatch(t *testing.T) {
	f := newFixture(t)
	registry := NewRegistry(f.env)

	names := registry.Names()
	assert.Equal(t, []string{"navigate", "read_page", "find", "form_input", "computer", "get_page_text"}, names)

	defs := registry.Definitions()
	require.Len(t, defs, 6)
	for _, def := range defs {
		assert.NotEmpty(t, def.Description)
		assert.NotNil(t, def.InputSchema)
	}

	result := registry.Execute(context.Background(), "no_such_tool", &Invocation{ID: "inv-1"})
	require.True(t, result.IsError())
	assert.Contains(t, result.Err.Error(), "no_such_tool")
}

func TestParseFindResponse(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		_, _, err := parseFindResponse("el1 | button | Login | | 1,2 | reason")
		assert.Error(t, err)
	})

	t.Run("off-grammar lines skipped", func(t *testing.T) {
		matches, more, err := parseFindResponse("FOUND: 1\nsome chatter\nel1 | button | Login | | 10,20 | it matches")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, 0, more)
		assert.Equal(t, "el1", matches[0].Ref)
		assert.Equal(t, 10, matches[0].X)
		assert.Equal(t, 20, matches[0].Y)
	})

	t.Run("showing header accepted", func(t *testing.T) {
		matches, _, err := parseFindResponse("SHOWING: 1\nel1 | link | Home | | 5,5 | nav link")
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("cap overflow counted as more", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("FOUND: 25\n")
		for i := 0; i < 25; i++ {
			b.WriteString("el | link | A | | 1,1 | r\n")
		}
		matches, more, err := parseFindResponse(b.String())
		require.NoError(t, err)
		assert.Len(t, matches, maxFindMatches)
		assert.Equal(t, 5, more)
	})
}

func TestParseMatchLineRejectsMalformed(t *testing.T) {
	cases := []string{
		"el1 | button | Login | 1,2 | reason",    // five parts
		"el1 | button | Login | | nope | reason", // bad coords
		"just some text",
	}
	for _, line := range cases {
		_, ok := parseMatchLine(line)
		assert.False(t, ok, "line should be rejected: %q", line)
	}
}
