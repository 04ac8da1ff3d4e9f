package collector

import (
	_ "embed"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/utrack/event"
)

//go:embed js/input.js
var inputJS string

type InputConfig struct {
	SensitivePatterns []string `json:"sensitivePatterns"`
	ValueMaxLen       int      `json:"valueMaxLen"`
	IncludeValue      bool     `json:"includeValue"`
}

func DefaultInputConfig() InputConfig {
	return InputConfig{ValueMaxLen: 200, IncludeValue: false}
}

// Input captures form-field changes, masking anything matching a
// sensitive-field pattern down to a length/empty flag.
type Input struct {
	Base
	cfg InputConfig
}

func NewInput(base Base, cfg InputConfig) *Input {
	return &Input{Base: base, cfg: cfg}
}

func (i *Input) Name() string { return "input" }

func (i *Input) Install(ctx context.Context) error {
	if !i.MarkInstalling() {
		return nil
	}
	if err := injectLib(i.Bridge); err != nil {
		i.MarkUninstalled()
		return fmt.Errorf("input: inject lib: %w", err)
	}
	cfgJSON, err := json.Marshal(i.cfg)
	if err != nil {
		i.MarkUninstalled()
		return fmt.Errorf("input: marshal config: %w", err)
	}
	if err := i.Bridge.Inject(fmt.Sprintf("window.__utrackInputConfig = %s;", cfgJSON)); err != nil {
		i.MarkUninstalled()
		return fmt.Errorf("input: inject config: %w", err)
	}

	i.Bridge.Register("input", i.handle)

	if err := i.Bridge.Inject(inputJS); err != nil {
		i.MarkUninstalled()
		return fmt.Errorf("input: inject script: %w", err)
	}
	return nil
}

func (i *Input) Uninstall() error {
	if !i.IsInstalled() {
		return nil
	}
	i.MarkUninstalled()
	return i.Bridge.Inject(`window.__utrackInput && window.__utrackInput.uninstall();`)
}

func (i *Input) handle(raw json.RawMessage) {
	var rec struct {
		Name   string          `json:"name"`
		Data   json.RawMessage `json:"data"`
		Target json.RawMessage `json:"target"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		i.Logger.Warn("input: decode record", "error", err)
		return
	}
	var data event.InputData
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		i.Logger.Warn("input: decode data", "error", err)
		return
	}
	target, err := ElementInfoFromJS(rec.Target)
	if err != nil {
		i.Logger.Warn("input: decode target", "error", err)
	}
	i.Emit(event.TrackEvent{Type: event.TypeInput, Name: rec.Name, Data: data, Target: target})
}
