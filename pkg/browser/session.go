package browser

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/pagepilot/pagepilot/pkg/logging"
)

var sessionDebugLog *logging.Logger

func init() {
	sessionDebugLog, _ = logging.NewLogger("browser")
}

// State is the attachment state of a session.
type State string

const (
	StateDetached  State = "detached"
	StateAttaching State = "attaching"
	StateAttached  State = "attached"
)

// Click timing constants, tuned to look like human input to page scripts.
const (
	pressReleaseDelay = 12 * time.Millisecond
	betweenClickDelay = 100 * time.Millisecond
)

// MouseButton names follow the protocol's values.
type MouseButton string

const (
	ButtonLeft  MouseButton = "left"
	ButtonRight MouseButton = "right"
	ButtonNone  MouseButton = "none"
)

// MouseEventKind is the protocol mouse event type.
type MouseEventKind string

const (
	MousePressed  MouseEventKind = "mousePressed"
	MouseReleased MouseEventKind = "mouseReleased"
	MouseMoved    MouseEventKind = "mouseMoved"
	MouseWheel    MouseEventKind = "mouseWheel"
)

// MouseEvent holds the kind-specific fields of one dispatched mouse event.
// Press/release carry ClickCount; wheel carries deltas; moves carry neither.
type MouseEvent struct {
	Kind       MouseEventKind
	X, Y       float64
	Button     MouseButton
	Buttons    int
	ClickCount int
	DeltaX     float64
	DeltaY     float64
}

// Session owns the debugging attachment for one browsing surface and
// translates model actions into protocol commands.
//
// At most one attachment exists per surface. Concurrent attach requests
// coalesce into a single in-flight attempt; callers block on the shared
// result rather than racing to attach twice.
type Session struct {
	mu        sync.Mutex
	transport Transport
	state     State
	attaching chan struct{} // closed when the in-flight attach finishes
	attachErr error

	// isMac selects the platform variant that attaches native edit
	// commands to key chords.
	isMac bool

	shotMu sync.Mutex
	shot   *ScreenshotContext

	resizeParams ResizeParams

	// scripts is the page-context collaborator for indicator control and
	// in-page reads. Injected; never implemented here.
	scripts PageScripts
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMacPlatform selects the mac platform variant for key handling.
func WithMacPlatform(mac bool) SessionOption {
	return func(s *Session) { s.isMac = mac }
}

// WithResizeParams overrides the screenshot resize budget.
func WithResizeParams(p ResizeParams) SessionOption {
	return func(s *Session) { s.resizeParams = p }
}

// WithPageScripts sets the page-context collaborator.
func WithPageScripts(scripts PageScripts) SessionOption {
	return func(s *Session) { s.scripts = scripts }
}

// NewSession creates a session over the given transport.
func NewSession(transport Transport, opts ...SessionOption) *Session {
	s := &Session{
		transport:    transport,
		state:        StateDetached,
		isMac:        runtime.GOOS == "darwin",
		resizeParams: DefaultResizeParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scripts == nil {
		s.scripts = NewTransportPageScripts(transport)
	}
	transport.OnDetached(s.handleDetached)
	return s
}

// IsMac reports whether the session uses the mac platform key variant.
func (s *Session) IsMac() bool {
	return s.isMac
}

// State returns the current attachment state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Scripts returns the page-context collaborator bound to this session.
func (s *Session) Scripts() PageScripts {
	return s.scripts
}

// Attach establishes the debugging attachment. Idempotent: an attached
// session returns immediately, and concurrent callers share one in-flight
// attempt.
func (s *Session) Attach(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateAttached:
		s.mu.Unlock()
		return nil
	case StateAttaching:
		done := s.attaching
		s.mu.Unlock()
		select {
		case <-done:
			s.mu.Lock()
			err := s.attachErr
			s.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	s.attaching = done
	s.state = StateAttaching
	s.mu.Unlock()

	err := s.transport.Attach(ctx)

	s.mu.Lock()
	s.attachErr = err
	if err != nil {
		s.state = StateDetached
	} else {
		s.state = StateAttached
	}
	close(done)
	s.attaching = nil
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("attach failed: %w", err)
	}
	return nil
}

// Detach tears down the attachment and discards the screenshot context.
func (s *Session) Detach(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateDetached {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDetached
	s.mu.Unlock()

	s.clearScreenshotContext()
	return s.transport.Detach(ctx)
}

// handleDetached reacts to the surface detaching from its side.
func (s *Session) handleDetached() {
	s.mu.Lock()
	s.state = StateDetached
	s.mu.Unlock()
	s.clearScreenshotContext()
	sessionDebugLog.Infof("surface reported detach")
}

// call issues one protocol command, attaching first if needed. A transport
// failure is retried once through a fresh attach; other errors surface as-is.
func (s *Session) call(ctx context.Context, method string, params, result interface{}) error {
	if err := s.Attach(ctx); err != nil {
		return err
	}

	err := s.transport.Call(ctx, method, params, result)
	if err == nil {
		return nil
	}

	sessionDebugLog.Warnf("%s failed, re-attaching once: %v", method, err)
	s.mu.Lock()
	s.state = StateDetached
	s.mu.Unlock()

	if attachErr := s.Attach(ctx); attachErr != nil {
		return err
	}
	return s.transport.Call(ctx, method, params, result)
}

// URL returns the surface's current URL.
func (s *Session) URL(ctx context.Context) (string, error) {
	if err := s.Attach(ctx); err != nil {
		return "", err
	}
	return s.transport.URL(ctx)
}

// OuterHTML returns the serialized document of the surface.
func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	if err := s.Attach(ctx); err != nil {
		return "", err
	}
	return s.scripts.OuterHTML(ctx)
}

// DocumentContent fetches the current document's raw bytes base64-encoded.
func (s *Session) DocumentContent(ctx context.Context) (string, error) {
	if err := s.Attach(ctx); err != nil {
		return "", err
	}
	return s.scripts.DocumentContent(ctx)
}

// Navigate loads a URL on the surface.
func (s *Session) Navigate(ctx context.Context, url string) error {
	var result struct {
		ErrorText string `json:"errorText"`
	}
	if err := s.call(ctx, MethodNavigate, map[string]interface{}{"url": url}, &result); err != nil {
		return err
	}
	if result.ErrorText != "" {
		return fmt.Errorf("navigation failed: %s", result.ErrorText)
	}
	s.clearScreenshotContext()
	return nil
}

// HistoryDirection selects back or forward navigation.
type HistoryDirection int

const (
	HistoryBack    HistoryDirection = -1
	HistoryForward HistoryDirection = 1
)

// NavigateHistoryDirection moves through session history. With no entry in
// the requested direction the surface stays where it is and no error is
// returned; the caller reports the unchanged URL.
func (s *Session) NavigateHistoryDirection(ctx context.Context, dir HistoryDirection) error {
	var history struct {
		CurrentIndex int `json:"currentIndex"`
		Entries      []struct {
			ID int `json:"id"`
		} `json:"entries"`
	}
	if err := s.call(ctx, MethodNavigationHistory, map[string]interface{}{}, &history); err != nil {
		return err
	}

	target := history.CurrentIndex + int(dir)
	if target < 0 || target >= len(history.Entries) {
		return nil
	}

	params := map[string]interface{}{"entryId": history.Entries[target].ID}
	if err := s.call(ctx, MethodNavigateToEntry, params, nil); err != nil {
		return err
	}
	s.clearScreenshotContext()
	return nil
}

// DispatchMouseEvent sends one mouse event with kind-specific fields.
func (s *Session) DispatchMouseEvent(ctx context.Context, ev MouseEvent) error {
	params := map[string]interface{}{
		"type": string(ev.Kind),
		"x":    ev.X,
		"y":    ev.Y,
	}
	switch ev.Kind {
	case MousePressed, MouseReleased:
		params["button"] = string(ev.Button)
		params["buttons"] = ev.Buttons
		params["clickCount"] = ev.ClickCount
	case MouseWheel:
		params["deltaX"] = ev.DeltaX
		params["deltaY"] = ev.DeltaY
	}
	return s.call(ctx, MethodDispatchMouseEvent, params, nil)
}

// Click performs count clicks at (x, y) in viewport pixels. The on-page
// automation indicator is hidden for the duration so it cannot intercept
// the event, and restored on every exit path.
func (s *Session) Click(ctx context.Context, x, y float64, button MouseButton, count int) error {
	if count < 1 {
		count = 1
	}

	if err := s.scripts.HideIndicator(ctx); err != nil {
		sessionDebugLog.Warnf("failed to hide indicator before click: %v", err)
	}
	defer func() {
		if err := s.scripts.ShowIndicator(ctx); err != nil {
			sessionDebugLog.Warnf("failed to restore indicator after click: %v", err)
		}
	}()

	if err := s.DispatchMouseEvent(ctx, MouseEvent{Kind: MouseMoved, X: x, Y: y}); err != nil {
		return err
	}

	buttons := 1
	if button == ButtonRight {
		buttons = 2
	}

	for i := 1; i <= count; i++ {
		press := MouseEvent{Kind: MousePressed, X: x, Y: y, Button: button, Buttons: buttons, ClickCount: i}
		if err := s.DispatchMouseEvent(ctx, press); err != nil {
			return err
		}
		sleepCtx(ctx, pressReleaseDelay)
		release := MouseEvent{Kind: MouseReleased, X: x, Y: y, Button: button, Buttons: 0, ClickCount: i}
		if err := s.DispatchMouseEvent(ctx, release); err != nil {
			return err
		}
		if i < count {
			sleepCtx(ctx, betweenClickDelay)
		}
	}
	return nil
}

// TypeText types text character by character. Characters with a key mapping
// are sent as key events (with shift asserted where required); anything else
// goes through raw text insertion.
func (s *Session) TypeText(ctx context.Context, text string) error {
	for _, ch := range text {
		def, ok := charKeyDef(ch)
		if !ok {
			if err := s.call(ctx, MethodInsertText, map[string]interface{}{"text": string(ch)}, nil); err != nil {
				return err
			}
			continue
		}
		modifiers := 0
		if def.ShiftRequired {
			modifiers = ModifierShift
		}
		if err := s.dispatchKey(ctx, def, modifiers, ""); err != nil {
			return err
		}
	}
	return nil
}

// PressKeyChord parses and dispatches a modifier+key chord such as
// "ctrl+shift+t" or "cmd+a".
func (s *Session) PressKeyChord(ctx context.Context, chord string) error {
	parsed, err := ParseKeyChord(chord, s.isMac)
	if err != nil {
		return err
	}
	return s.dispatchKey(ctx, parsed.Key, parsed.Modifiers, parsed.EditCommand)
}

// dispatchKey sends a keyDown/keyUp pair for one key.
func (s *Session) dispatchKey(ctx context.Context, def KeyDef, modifiers int, editCommand string) error {
	down := map[string]interface{}{
		"type":                  "keyDown",
		"key":                   def.Key,
		"modifiers":             modifiers,
		"windowsVirtualKeyCode": def.KeyCode,
		"nativeVirtualKeyCode":  def.KeyCode,
	}
	if def.Code != "" {
		down["code"] = def.Code
	}
	if def.Text != "" {
		down["text"] = def.Text
		down["unmodifiedText"] = def.Text
	} else {
		down["type"] = "rawKeyDown"
	}
	if editCommand != "" {
		down["commands"] = []string{editCommand}
	}
	if err := s.call(ctx, MethodDispatchKeyEvent, down, nil); err != nil {
		return err
	}

	up := map[string]interface{}{
		"type":                  "keyUp",
		"key":                   def.Key,
		"modifiers":             modifiers,
		"windowsVirtualKeyCode": def.KeyCode,
		"nativeVirtualKeyCode":  def.KeyCode,
	}
	if def.Code != "" {
		up["code"] = def.Code
	}
	return s.call(ctx, MethodDispatchKeyEvent, up, nil)
}

// ScrollWheel dispatches a wheel event at (x, y).
func (s *Session) ScrollWheel(ctx context.Context, x, y, deltaX, deltaY float64) error {
	return s.DispatchMouseEvent(ctx, MouseEvent{
		Kind:   MouseWheel,
		X:      x,
		Y:      y,
		DeltaX: deltaX,
		DeltaY: deltaY,
	})
}

// ScreenshotContext returns the context recorded by the most recent capture,
// or nil when none exists (never captured, or discarded on navigation).
func (s *Session) ScreenshotContext() *ScreenshotContext {
	s.shotMu.Lock()
	defer s.shotMu.Unlock()
	if s.shot == nil {
		return nil
	}
	c := *s.shot
	return &c
}

// ScalePoint converts a point from the last screenshot's pixel space into
// viewport pixels. Without a recorded context the point passes through.
func (s *Session) ScalePoint(x, y float64) (float64, float64) {
	s.shotMu.Lock()
	defer s.shotMu.Unlock()
	if s.shot == nil {
		return x, y
	}
	return s.shot.ScaleToViewport(x, y)
}

// clearScreenshotContext discards the recorded mapping; called on detach
// and navigation since the old mapping no longer describes the surface.
func (s *Session) clearScreenshotContext() {
	s.shotMu.Lock()
	s.shot = nil
	s.shotMu.Unlock()
}

// InvalidateScreenshot discards the screenshot context, for callers that
// navigated the surface.
func (s *Session) InvalidateScreenshot() {
	s.clearScreenshotContext()
}

func (s *Session) recordScreenshotContext(c ScreenshotContext) {
	s.shotMu.Lock()
	s.shot = &c
	s.shotMu.Unlock()
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
