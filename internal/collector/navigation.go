package collector

import (
	_ "embed"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/utrack/event"
)

//go:embed js/navigation.js
var navigationJS string

// Navigation detects SPA route changes via hashchange, popstate, and
// history push/replace monkey-patches.
type Navigation struct {
	Base
	// OnNavigate fires after every detected route change, before the
	// page_view event is emitted upward — the tracker wires this to
	// Scroll.ResetDepths so scroll thresholds re-arm per page.
	OnNavigate func()
}

func NewNavigation(base Base) *Navigation {
	return &Navigation{Base: base}
}

func (n *Navigation) Name() string { return "navigation" }

func (n *Navigation) Install(ctx context.Context) error {
	if !n.MarkInstalling() {
		return nil
	}
	n.Bridge.Register("navigation", n.handle)
	if err := n.Bridge.Inject(navigationJS); err != nil {
		n.MarkUninstalled()
		return fmt.Errorf("navigation: inject script: %w", err)
	}
	return nil
}

func (n *Navigation) Uninstall() error {
	if !n.IsInstalled() {
		return nil
	}
	n.MarkUninstalled()
	return n.Bridge.Inject(`window.__utrackNav && window.__utrackNav.uninstall();`)
}

// TrackPageView forces an emission of the current URL as a page view,
// regardless of whether it differs from the last observed URL.
func (n *Navigation) TrackPageView() error {
	return n.Bridge.Inject(`window.__utrackNav && window.__utrackNav.trackPageView();`)
}

func (n *Navigation) handle(raw json.RawMessage) {
	var rec struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		n.Logger.Warn("navigation: decode record", "error", err)
		return
	}
	var data event.NavigationData
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		n.Logger.Warn("navigation: decode data", "error", err)
		return
	}

	if n.OnNavigate != nil {
		n.OnNavigate()
	}

	n.Emit(event.TrackEvent{Type: event.TypePageView, Name: "page_view", Data: data})
}
