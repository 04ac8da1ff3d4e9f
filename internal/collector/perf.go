package collector

import (
	_ "embed"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/utrack/event"
)

//go:embed js/perf.js
var perfJS string

type PerfConfig struct {
	LongTaskThresholdMS int    `json:"longTaskThreshold"`
	ResourceCap         int    `json:"resourceCap"`
	OwnEndpoint         string `json:"ownEndpoint"`
}

func DefaultPerfConfig() PerfConfig {
	return PerfConfig{LongTaskThresholdMS: 50, ResourceCap: 50}
}

// Perf reports navigation timing and web-vitals metrics exactly once per
// page load, on a 3s timer after load (or immediately on visibility-hidden
// / beforeunload if that fires first).
type Perf struct {
	Base
	cfg PerfConfig
}

func NewPerf(base Base, cfg PerfConfig) *Perf {
	return &Perf{Base: base, cfg: cfg}
}

func (p *Perf) Name() string { return "performance" }

func (p *Perf) Install(ctx context.Context) error {
	if !p.MarkInstalling() {
		return nil
	}
	cfgJSON, err := json.Marshal(p.cfg)
	if err != nil {
		p.MarkUninstalled()
		return fmt.Errorf("performance: marshal config: %w", err)
	}
	if err := p.Bridge.Inject(fmt.Sprintf("window.__utrackPerfConfig = %s;", cfgJSON)); err != nil {
		p.MarkUninstalled()
		return fmt.Errorf("performance: inject config: %w", err)
	}

	p.Bridge.Register("performance", p.handle)

	if err := p.Bridge.Inject(perfJS); err != nil {
		p.MarkUninstalled()
		return fmt.Errorf("performance: inject script: %w", err)
	}
	return nil
}

func (p *Perf) Uninstall() error {
	if !p.IsInstalled() {
		return nil
	}
	p.MarkUninstalled()
	return p.Bridge.Inject(`window.__utrackPerf && window.__utrackPerf.uninstall();`)
}

// ForceReport emits a performance report immediately, bypassing the
// reported guard.
func (p *Perf) ForceReport() error {
	return p.Bridge.Inject(`window.__utrackPerf && window.__utrackPerf.forceReport();`)
}

func (p *Perf) handle(raw json.RawMessage) {
	var data event.PerformanceData
	if err := json.Unmarshal(raw, &data); err != nil {
		p.Logger.Warn("performance: decode data", "error", err)
		return
	}
	p.Emit(event.TrackEvent{Type: event.TypePerformance, Name: "performance_report", Data: data})
}
