// Package browser implements the remote-control session that drives one
// browsing surface over its low-level debugging channel.
//
// The session speaks the remote-debugging protocol vocabulary directly
// (Input.dispatchMouseEvent and friends) through a Transport, so the command
// names on the wire stay interoperable with standard DevTools tooling.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Debugging protocol command names. These are wire-level identifiers and
// must not be altered.
const (
	MethodDispatchMouseEvent = "Input.dispatchMouseEvent"
	MethodDispatchKeyEvent   = "Input.dispatchKeyEvent"
	MethodInsertText         = "Input.insertText"
	MethodCaptureScreenshot  = "Page.captureScreenshot"
	MethodRuntimeEvaluate    = "Runtime.evaluate"
	MethodNavigate           = "Page.navigate"
	MethodNavigationHistory  = "Page.getNavigationHistory"
	MethodNavigateToEntry    = "Page.navigateToHistoryEntry"
)

// Transport is the debugging channel for one browsing surface.
//
// Attach establishes the channel; Call issues one protocol command and
// decodes its result into result (which may be nil); Detach tears the
// channel down. OnDetached registers a callback fired when the surface
// detaches from its side (tab closed, navigation to an unscriptable page).
type Transport interface {
	Attach(ctx context.Context) error
	Call(ctx context.Context, method string, params, result interface{}) error
	Detach(ctx context.Context) error
	OnDetached(func())

	// URL returns the surface's current URL.
	URL(ctx context.Context) (string, error)
}

// RodTransport drives a browsing surface through a shared rod browser
// connection. rod's page type is used purely as a protocol client here;
// high-level helpers are deliberately avoided so the command vocabulary
// stays explicit.
type RodTransport struct {
	mu       sync.Mutex
	browser  *rod.Browser
	targetID string
	page     *rod.Page
	onDetach func()
}

// NewRodTransport creates a transport for the given target on an
// already-connected browser.
func NewRodTransport(browser *rod.Browser, targetID string) *RodTransport {
	return &RodTransport{browser: browser, targetID: targetID}
}

// Attach binds to the target. Safe to call when already attached.
func (t *RodTransport) Attach(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.page != nil {
		return nil
	}

	page, err := t.browser.PageFromTarget(proto.TargetTargetID(t.targetID))
	if err != nil {
		return fmt.Errorf("failed to attach to target %s: %w", t.targetID, err)
	}
	t.page = page

	if t.onDetach != nil {
		cb := t.onDetach
		go page.EachEvent(func(e *proto.InspectorDetached) bool {
			cb()
			return true
		})()
	}

	return nil
}

// Call issues one raw protocol command.
func (t *RodTransport) Call(ctx context.Context, method string, params, result interface{}) error {
	t.mu.Lock()
	page := t.page
	t.mu.Unlock()

	if page == nil {
		return fmt.Errorf("transport not attached")
	}

	data, err := page.Context(ctx).Call(ctx, string(page.SessionID), method, params)
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// Detach releases the page binding. The underlying target keeps running.
func (t *RodTransport) Detach(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.page = nil
	return nil
}

// OnDetached registers the detach callback. Must be called before Attach.
func (t *RodTransport) OnDetached(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDetach = fn
}

// URL returns the surface's current URL via target info.
func (t *RodTransport) URL(ctx context.Context) (string, error) {
	t.mu.Lock()
	page := t.page
	t.mu.Unlock()

	if page == nil {
		return "", fmt.Errorf("transport not attached")
	}

	info, err := page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read target info: %w", err)
	}
	return info.URL, nil
}
