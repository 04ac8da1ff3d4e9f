package collector

import (
	_ "embed"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/utrack/event"
)

//go:embed js/exposure.js
var exposureJS string

type ExposureConfig struct {
	Threshold   interface{} `json:"threshold"` // float64 or []float64
	Selectors   []string    `json:"selectors"`
	MinDuration int         `json:"minDuration"`
	TriggerOnce bool        `json:"triggerOnce"`
}

func DefaultExposureConfig() ExposureConfig {
	return ExposureConfig{Threshold: 0.5, Selectors: []string{"[data-track-exposure]"}, MinDuration: 1000, TriggerOnce: true}
}

// Exposure tracks viewport-dwell time on elements matching the configured
// selectors, reporting once minDuration of cumulative visibility accrues.
type Exposure struct {
	Base
	cfg ExposureConfig
}

func NewExposure(base Base, cfg ExposureConfig) *Exposure {
	return &Exposure{Base: base, cfg: cfg}
}

func (x *Exposure) Name() string { return "exposure" }

func (x *Exposure) Install(ctx context.Context) error {
	if !x.MarkInstalling() {
		return nil
	}
	if err := injectLib(x.Bridge); err != nil {
		x.MarkUninstalled()
		return fmt.Errorf("exposure: inject lib: %w", err)
	}
	cfgJSON, err := json.Marshal(x.cfg)
	if err != nil {
		x.MarkUninstalled()
		return fmt.Errorf("exposure: marshal config: %w", err)
	}
	if err := x.Bridge.Inject(fmt.Sprintf("window.__utrackExposureConfig = %s;", cfgJSON)); err != nil {
		x.MarkUninstalled()
		return fmt.Errorf("exposure: inject config: %w", err)
	}

	x.Bridge.Register("exposure", x.handle)

	if err := x.Bridge.Inject(exposureJS); err != nil {
		x.MarkUninstalled()
		return fmt.Errorf("exposure: inject script: %w", err)
	}
	return nil
}

func (x *Exposure) Uninstall() error {
	if !x.IsInstalled() {
		return nil
	}
	x.MarkUninstalled()
	return x.Bridge.Inject(`window.__utrackExposure && window.__utrackExposure.uninstall();`)
}

func (x *Exposure) Observe(selector, id string) error {
	return x.Bridge.Inject(fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el && window.__utrackExposure) window.__utrackExposure.observe(el, %q);
	})();`, selector, id))
}

func (x *Exposure) Unobserve(selector string) error {
	return x.Bridge.Inject(fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el && window.__utrackExposure) window.__utrackExposure.unobserve(el);
	})();`, selector))
}

func (x *Exposure) ClearReportedExposures() error {
	return x.Bridge.Inject(`window.__utrackExposure && window.__utrackExposure.clearReportedExposures();`)
}

func (x *Exposure) handle(raw json.RawMessage) {
	var rec struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		x.Logger.Warn("exposure: decode record", "error", err)
		return
	}
	var data event.ExposureData
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		x.Logger.Warn("exposure: decode data", "error", err)
		return
	}
	x.Emit(event.TrackEvent{Type: event.TypeExposure, Name: "exposure_" + data.ExposureID, Data: data})
}
