package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	method string
	params map[string]interface{}
}

// fakeTransport records protocol calls and simulates failures.
type fakeTransport struct {
	mu          sync.Mutex
	attachCount int32
	attachGate  chan struct{} // when set, Attach blocks until closed
	calls       []recordedCall
	failNext    int // number of upcoming Call invocations to fail
	callResults map[string]interface{}
	url         string
	onDetach    func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		callResults: make(map[string]interface{}),
		url:         "https://example.com",
	}
}

func (f *fakeTransport) Attach(ctx context.Context) error {
	atomic.AddInt32(&f.attachCount, 1)
	if f.attachGate != nil {
		<-f.attachGate
	}
	return nil
}

func (f *fakeTransport) Call(ctx context.Context, method string, params, result interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext > 0 {
		f.failNext--
		return fmt.Errorf("transport gone")
	}

	p, _ := params.(map[string]interface{})
	f.calls = append(f.calls, recordedCall{method: method, params: p})

	if result != nil {
		if v, ok := f.callResults[method]; ok {
			data, _ := jsonRoundTrip(v)
			*(result.(*struct {
				Data string `json:"data"`
			})) = data
		}
	}
	return nil
}

func jsonRoundTrip(v interface{}) (struct {
	Data string `json:"data"`
}, error) {
	out := struct {
		Data string `json:"data"`
	}{}
	if m, ok := v.(map[string]interface{}); ok {
		if d, ok := m["data"].(string); ok {
			out.Data = d
		}
	}
	return out, nil
}

func (f *fakeTransport) Detach(ctx context.Context) error { return nil }

func (f *fakeTransport) OnDetached(fn func()) { f.onDetach = fn }

func (f *fakeTransport) URL(ctx context.Context) (string, error) { return f.url, nil }

func (f *fakeTransport) recorded(method string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

// fakeScripts is a PageScripts stub.
type fakeScripts struct {
	mu         sync.Mutex
	hideCount  int
	showCount  int
	metrics    ViewportMetrics
	snapshot   string
	scrollX    float64
	scrollY    float64
	inPageUsed bool
}

func newFakeScripts() *fakeScripts {
	return &fakeScripts{metrics: ViewportMetrics{Width: 1280, Height: 800, DevicePixelRatio: 1}}
}

func (f *fakeScripts) HideIndicator(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hideCount++
	return nil
}

func (f *fakeScripts) ShowIndicator(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.showCount++
	return nil
}

func (f *fakeScripts) ViewportMetrics(ctx context.Context) (ViewportMetrics, error) {
	return f.metrics, nil
}

func (f *fakeScripts) AccessibilitySnapshot(ctx context.Context) (string, error) {
	return f.snapshot, nil
}

func (f *fakeScripts) ResolveElement(ctx context.Context, ref string) (*ResolvedElement, error) {
	return nil, ErrElementNotFound
}

func (f *fakeScripts) SetFormValue(ctx context.Context, ref, value string) error {
	return ErrElementNotFound
}

func (f *fakeScripts) ScrollPosition(ctx context.Context) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrollX, f.scrollY, nil
}

func (f *fakeScripts) ScrollElementAt(ctx context.Context, x, y, dx, dy float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inPageUsed = true
	return nil
}

func (f *fakeScripts) OuterHTML(ctx context.Context) (string, error) {
	return "<html><body></body></html>", nil
}

func (f *fakeScripts) DocumentContent(ctx context.Context) (string, error) {
	return "", nil
}

func testSession(t *testing.T) (*Session, *fakeTransport, *fakeScripts) {
	t.Helper()
	transport := newFakeTransport()
	scripts := newFakeScripts()
	session := NewSession(transport, WithPageScripts(scripts), WithMacPlatform(false))
	return session, transport, scripts
}

func TestAttachIdempotent(t *testing.T) {
	session, transport, _ := testSession(t)
	ctx := context.Background()

	require.NoError(t, session.Attach(ctx))
	require.NoError(t, session.Attach(ctx))
	require.NoError(t, session.Attach(ctx))

	assert.Equal(t, int32(1), atomic.LoadInt32(&transport.attachCount))
	assert.Equal(t, StateAttached, session.State())
}

func TestAttachCoalescesConcurrentRequests(t *testing.T) {
	transport := newFakeTransport()
	transport.attachGate = make(chan struct{})
	session := NewSession(transport, WithPageScripts(newFakeScripts()))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, session.Attach(ctx))
		}()
	}

	close(transport.attachGate)
	wg.Wait()

	// Everyone shared the single in-flight attempt
	assert.Equal(t, int32(1), atomic.LoadInt32(&transport.attachCount))
	assert.Equal(t, StateAttached, session.State())
}

func TestCallRetriesOnceViaReattach(t *testing.T) {
	session, transport, _ := testSession(t)
	ctx := context.Background()

	require.NoError(t, session.Attach(ctx))
	transport.failNext = 1

	err := session.DispatchMouseEvent(ctx, MouseEvent{Kind: MouseMoved, X: 1, Y: 2})
	require.NoError(t, err)

	// initial attach + one re-attach
	assert.Equal(t, int32(2), atomic.LoadInt32(&transport.attachCount))
	assert.Len(t, transport.recorded(MethodDispatchMouseEvent), 1)
}

func TestClickEventSequence(t *testing.T) {
	session, transport, scripts := testSession(t)
	ctx := context.Background()

	require.NoError(t, session.Click(ctx, 100, 200, ButtonLeft, 2))

	events := transport.recorded(MethodDispatchMouseEvent)
	require.Len(t, events, 5) // move + 2x(press+release)

	assert.Equal(t, "mouseMoved", events[0].params["type"])

	assert.Equal(t, "mousePressed", events[1].params["type"])
	assert.Equal(t, 1, events[1].params["clickCount"])
	assert.Equal(t, "left", events[1].params["button"])
	assert.Equal(t, "mouseReleased", events[2].params["type"])

	// second click carries clickCount 2
	assert.Equal(t, "mousePressed", events[3].params["type"])
	assert.Equal(t, 2, events[3].params["clickCount"])

	// indicator hidden and restored around the clicks
	assert.Equal(t, 1, scripts.hideCount)
	assert.Equal(t, 1, scripts.showCount)
}

func TestDispatchMouseEventKindSpecificFields(t *testing.T) {
	session, transport, _ := testSession(t)
	ctx := context.Background()

	require.NoError(t, session.DispatchMouseEvent(ctx, MouseEvent{Kind: MouseMoved, X: 1, Y: 2}))
	require.NoError(t, session.ScrollWheel(ctx, 10, 20, 0, 300))

	events := transport.recorded(MethodDispatchMouseEvent)
	require.Len(t, events, 2)

	// moves carry no button or delta fields
	_, hasButton := events[0].params["button"]
	_, hasDelta := events[0].params["deltaY"]
	assert.False(t, hasButton)
	assert.False(t, hasDelta)

	// wheel carries deltas, no clickCount
	assert.Equal(t, 300.0, events[1].params["deltaY"])
	_, hasClickCount := events[1].params["clickCount"]
	assert.False(t, hasClickCount)
}

func TestTypeTextKeyEvents(t *testing.T) {
	session, transport, _ := testSession(t)
	ctx := context.Background()

	require.NoError(t, session.TypeText(ctx, "aA"))

	events := transport.recorded(MethodDispatchKeyEvent)
	require.Len(t, events, 4) // down+up per character

	assert.Equal(t, "a", events[0].params["key"])
	assert.Equal(t, 0, events[0].params["modifiers"])

	// uppercase asserts shift
	assert.Equal(t, "A", events[2].params["key"])
	assert.Equal(t, ModifierShift, events[2].params["modifiers"])
}

func TestTypeTextFallsBackToInsertText(t *testing.T) {
	session, transport, _ := testSession(t)
	ctx := context.Background()

	require.NoError(t, session.TypeText(ctx, "é"))

	inserts := transport.recorded(MethodInsertText)
	require.Len(t, inserts, 1)
	assert.Equal(t, "é", inserts[0].params["text"])
	assert.Empty(t, transport.recorded(MethodDispatchKeyEvent))
}

func TestTypeTextNewlineIsEnter(t *testing.T) {
	session, transport, _ := testSession(t)
	ctx := context.Background()

	require.NoError(t, session.TypeText(ctx, "\n"))

	events := transport.recorded(MethodDispatchKeyEvent)
	require.Len(t, events, 2)
	assert.Equal(t, "Enter", events[0].params["key"])
}

func TestPressKeyChord(t *testing.T) {
	session, transport, _ := testSession(t)
	ctx := context.Background()

	require.NoError(t, session.PressKeyChord(ctx, "ctrl+shift+t"))

	events := transport.recorded(MethodDispatchKeyEvent)
	require.Len(t, events, 2)
	assert.Equal(t, ModifierCtrl|ModifierShift, events[0].params["modifiers"])
}

func TestPressKeyChordMacAttachesEditCommand(t *testing.T) {
	transport := newFakeTransport()
	session := NewSession(transport, WithPageScripts(newFakeScripts()), WithMacPlatform(true))
	ctx := context.Background()

	require.NoError(t, session.PressKeyChord(ctx, "cmd+a"))

	events := transport.recorded(MethodDispatchKeyEvent)
	require.Len(t, events, 2)
	assert.Equal(t, []string{"selectAll"}, events[0].params["commands"])

	// keyUp carries no commands
	_, hasCommands := events[1].params["commands"]
	assert.False(t, hasCommands)
}

func encodeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestScreenshotRecordsContext(t *testing.T) {
	transport := newFakeTransport()
	scripts := newFakeScripts()
	scripts.metrics = ViewportMetrics{Width: 400, Height: 200, DevicePixelRatio: 2}
	transport.callResults[MethodCaptureScreenshot] = map[string]interface{}{
		"data": encodeTestPNG(t, 800, 400), // device pixels at DPR 2
	}
	session := NewSession(transport, WithPageScripts(scripts))
	ctx := context.Background()

	shot, err := session.Screenshot(ctx)
	require.NoError(t, err)

	// downsampled to CSS pixels, already within budget
	assert.Equal(t, 400, shot.Width)
	assert.Equal(t, 200, shot.Height)
	assert.Equal(t, "image/png", shot.MediaType)
	assert.NotEmpty(t, shot.Data)

	sctx := session.ScreenshotContext()
	require.NotNil(t, sctx)
	assert.Equal(t, 400, sctx.ViewportW)
	assert.Equal(t, 200, sctx.ViewportH)
	assert.Equal(t, 400, sctx.ShotW)
	assert.Equal(t, 200, sctx.ShotH)

	// indicator restored
	assert.Equal(t, 1, scripts.hideCount)
	assert.Equal(t, 1, scripts.showCount)
}

func TestScreenshotContextClearedOnDetach(t *testing.T) {
	transport := newFakeTransport()
	transport.callResults[MethodCaptureScreenshot] = map[string]interface{}{
		"data": encodeTestPNG(t, 100, 50),
	}
	scripts := newFakeScripts()
	scripts.metrics = ViewportMetrics{Width: 100, Height: 50, DevicePixelRatio: 1}
	session := NewSession(transport, WithPageScripts(scripts))
	ctx := context.Background()

	_, err := session.Screenshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, session.ScreenshotContext())

	require.NoError(t, session.Detach(ctx))
	assert.Nil(t, session.ScreenshotContext())
	assert.Equal(t, StateDetached, session.State())

	// without a context, points pass through unscaled
	x, y := session.ScalePoint(7, 9)
	assert.Equal(t, 7.0, x)
	assert.Equal(t, 9.0, y)
}
