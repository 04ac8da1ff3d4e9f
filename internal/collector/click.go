package collector

import (
	_ "embed"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/utrack/event"
)

//go:embed js/click.js
var clickJS string

// ClickConfig mirrors the in-page listener's tunables.
type ClickConfig struct {
	DebounceDelayMS   int      `json:"debounceDelay"`
	BubbleToClickable bool     `json:"bubbleToClickable"`
	IgnoreSelectors   []string `json:"ignoreSelectors"`
	TrackDoubleClick  bool     `json:"trackDoubleClick"`
	TrackContextMenu  bool     `json:"trackContextMenu"`
}

func DefaultClickConfig() ClickConfig {
	return ClickConfig{DebounceDelayMS: 100, BubbleToClickable: true, TrackDoubleClick: true, TrackContextMenu: false}
}

// Click is the pointer-interaction collector.
type Click struct {
	Base
	cfg ClickConfig
}

func NewClick(base Base, cfg ClickConfig) *Click {
	return &Click{Base: base, cfg: cfg}
}

func (c *Click) Name() string { return "click" }

func (c *Click) Install(ctx context.Context) error {
	if !c.MarkInstalling() {
		return nil
	}
	if err := injectLib(c.Bridge); err != nil {
		c.MarkUninstalled()
		return fmt.Errorf("click: inject lib: %w", err)
	}

	cfgJSON, err := json.Marshal(c.cfg)
	if err != nil {
		c.MarkUninstalled()
		return fmt.Errorf("click: marshal config: %w", err)
	}
	if err := c.Bridge.Inject(fmt.Sprintf("window.__utrackClickConfig = %s;", cfgJSON)); err != nil {
		c.MarkUninstalled()
		return fmt.Errorf("click: inject config: %w", err)
	}

	c.Bridge.Register("click", c.handle)

	if err := c.Bridge.Inject(clickJS); err != nil {
		c.MarkUninstalled()
		return fmt.Errorf("click: inject script: %w", err)
	}
	return nil
}

func (c *Click) Uninstall() error {
	if !c.IsInstalled() {
		return nil
	}
	c.MarkUninstalled()
	return c.Bridge.Inject(`window.__utrackClick && window.__utrackClick.uninstall();`)
}

func (c *Click) handle(raw json.RawMessage) {
	var rec struct {
		Name   string          `json:"name"`
		Data   json.RawMessage `json:"data"`
		Target json.RawMessage `json:"target"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.Logger.Warn("click: decode record", "error", err)
		return
	}

	var data event.ClickData
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		c.Logger.Warn("click: decode data", "error", err)
		return
	}
	target, err := ElementInfoFromJS(rec.Target)
	if err != nil {
		c.Logger.Warn("click: decode target", "error", err)
	}

	c.Emit(event.TrackEvent{
		Type:   event.TypeClick,
		Name:   rec.Name,
		Data:   data,
		Target: target,
	})
}
