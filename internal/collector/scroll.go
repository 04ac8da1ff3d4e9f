package collector

import (
	_ "embed"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/utrack/event"
)

//go:embed js/scroll.js
var scrollJS string

type ScrollConfig struct {
	ThrottleMS int   `json:"throttleMs"`
	Thresholds []int `json:"thresholds"`
}

func DefaultScrollConfig() ScrollConfig {
	return ScrollConfig{ThrottleMS: 500, Thresholds: []int{25, 50, 75, 100}}
}

// Scroll tracks scroll depth threshold crossings. ResetDepths is called by
// the navigation collector on route change so thresholds re-arm.
type Scroll struct {
	Base
	cfg ScrollConfig
}

func NewScroll(base Base, cfg ScrollConfig) *Scroll {
	return &Scroll{Base: base, cfg: cfg}
}

func (s *Scroll) Name() string { return "scroll" }

func (s *Scroll) Install(ctx context.Context) error {
	if !s.MarkInstalling() {
		return nil
	}
	cfgJSON, err := json.Marshal(s.cfg)
	if err != nil {
		s.MarkUninstalled()
		return fmt.Errorf("scroll: marshal config: %w", err)
	}
	if err := s.Bridge.Inject(fmt.Sprintf("window.__utrackScrollConfig = %s;", cfgJSON)); err != nil {
		s.MarkUninstalled()
		return fmt.Errorf("scroll: inject config: %w", err)
	}

	s.Bridge.Register("scroll", s.handle)

	if err := s.Bridge.Inject(scrollJS); err != nil {
		s.MarkUninstalled()
		return fmt.Errorf("scroll: inject script: %w", err)
	}
	return nil
}

func (s *Scroll) Uninstall() error {
	if !s.IsInstalled() {
		return nil
	}
	s.MarkUninstalled()
	return s.Bridge.Inject(`window.__utrackScroll && window.__utrackScroll.uninstall();`)
}

// ResetDepths re-arms the crossed-threshold set. Called by the navigation
// collector on every detected route change.
func (s *Scroll) ResetDepths() error {
	return s.Bridge.Inject(`window.__utrackScroll && window.__utrackScroll.resetDepths();`)
}

func (s *Scroll) handle(raw json.RawMessage) {
	var rec struct {
		Name string          `json:"name"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.Logger.Warn("scroll: decode record", "error", err)
		return
	}
	var data event.ScrollData
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		s.Logger.Warn("scroll: decode data", "error", err)
		return
	}
	s.Emit(event.TrackEvent{Type: event.TypeScroll, Name: rec.Name, Data: data})
}
