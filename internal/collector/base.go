// Package collector implements the six built-in signal sources (click,
// scroll, input, navigation, error, performance) plus exposure tracking.
// Each collector injects a small JS snippet into the watched tab and
// receives its callbacks over a single shared CDP binding — the same
// addBinding + Runtime.bindingCalled pattern the DOM-observation daemon
// uses for its MutationObserver, generalized from mutation records to
// interaction/error/performance/exposure records.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod/lib/proto"
	"github.com/hazyhaar/utrack/event"
	"github.com/hazyhaar/utrack/internal/browser"
)

// EmitFunc delivers a partially-populated event upward to the tracker.
type EmitFunc func(event.TrackEvent)

// Collector is the capability set every signal source implements. Install
// is idempotent; Uninstall fully releases whatever Install registered. No
// listener may outlive the collector instance.
type Collector interface {
	Name() string
	Install(ctx context.Context) error
	Uninstall() error
	Pause()
	Resume()
	SetEventCallback(fn EmitFunc)
}

// Base provides the shared install/uninstall idempotency, pause/resume,
// and emit-upward plumbing every collector embeds.
type Base struct {
	Bridge *Bridge
	Logger *slog.Logger

	mu        sync.Mutex
	installed bool
	paused    bool
	emit      EmitFunc
}

func NewBase(bridge *Bridge, logger *slog.Logger) Base {
	if logger == nil {
		logger = slog.Default()
	}
	return Base{Bridge: bridge, Logger: logger}
}

func (b *Base) SetEventCallback(fn EmitFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emit = fn
}

// Emit delivers e upward unless the collector is paused or has no callback
// registered yet.
func (b *Base) Emit(e event.TrackEvent) {
	b.mu.Lock()
	fn := b.emit
	paused := b.paused
	b.mu.Unlock()
	if paused || fn == nil {
		return
	}
	fn(e)
}

// MarkInstalling reports whether Install should proceed: false if the
// collector is already installed (a second Install is a no-op).
func (b *Base) MarkInstalling() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.installed {
		return false
	}
	b.installed = true
	return true
}

func (b *Base) MarkUninstalled() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.installed = false
}

func (b *Base) IsInstalled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.installed
}

func (b *Base) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = true
}

func (b *Base) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = false
}

// Bridge owns the single CDP binding shared by every collector on a tab
// and routes incoming records to the collector that registered the
// matching source tag. Exactly one Bridge exists per tab.
type Bridge struct {
	tab    *browser.Tab
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	handlers map[string]func(json.RawMessage)
	started  bool
}

const bindingName = "__utrack_emit"

func NewBridge(tab *browser.Tab, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{tab: tab, logger: logger, handlers: make(map[string]func(json.RawMessage))}
}

// Register wires a source tag (e.g. "click") to the handler that unmarshals
// and processes records tagged with it. Must be called before Start.
func (br *Bridge) Register(source string, handler func(json.RawMessage)) {
	br.mu.Lock()
	defer br.mu.Unlock()
	br.handlers[source] = handler
}

// Start binds the CDP callback and begins routing. Idempotent.
func (br *Bridge) Start(ctx context.Context) error {
	br.mu.Lock()
	if br.started {
		br.mu.Unlock()
		return nil
	}
	br.started = true
	br.mu.Unlock()

	br.ctx, br.cancel = context.WithCancel(ctx)

	if err := br.tab.AddBinding(bindingName); err != nil {
		br.logger.Warn("collector: addBinding failed (may already exist)", "error", err)
	}

	go br.listen()
	return nil
}

// Stop disconnects the binding listener. The CDP binding itself persists on
// the page until the tab closes — Rod has no RemoveBinding — but routing
// stops immediately so no handler fires after Stop.
func (br *Bridge) Stop() {
	br.mu.Lock()
	defer br.mu.Unlock()
	if !br.started {
		return
	}
	br.started = false
	if br.cancel != nil {
		br.cancel()
	}
}

// Inject evaluates a JS snippet in the tab.
func (br *Bridge) Inject(js string) error {
	_, err := br.tab.Page.Eval(js)
	return err
}

func (br *Bridge) listen() {
	page := br.tab.Page
	page.Context(br.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}

		var rec struct {
			Source string          `json:"source"`
			Data   json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(e.Payload), &rec); err != nil {
			br.logger.Warn("collector: parse binding payload", "error", err)
			return
		}

		br.mu.Lock()
		handler, ok := br.handlers[rec.Source]
		br.mu.Unlock()
		if !ok {
			return
		}
		handler(rec.Data)
	})()
}

// ElementInfoFromJS decodes a JS-computed ElementInfo payload.
func ElementInfoFromJS(raw json.RawMessage) (*event.ElementInfo, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var info event.ElementInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("collector: decode element info: %w", err)
	}
	return &info, nil
}
