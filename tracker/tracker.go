// Package tracker implements the central event intake: sampling,
// normalization, deduplication, global-context enrichment, and the
// periodic flush that hands batches to the transport pipeline. It plays
// the role the DOM-observation daemon's per-page Observer plays — one
// Tracker per instrumented tab — generalized from mutation capture to
// the six interaction/error/performance/exposure signal sources.
package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/utrack/event"
	"github.com/hazyhaar/utrack/idgen"
	"github.com/hazyhaar/utrack/internal/browser"
	"github.com/hazyhaar/utrack/internal/collector"
	"github.com/hazyhaar/utrack/internal/diag"
	"github.com/hazyhaar/utrack/internal/offline"
	"github.com/hazyhaar/utrack/internal/transport"
	"github.com/hazyhaar/utrack/internal/util"
	"github.com/hazyhaar/utrack/trace"
)

// Hooks are the three programmatic lifecycle callbacks. They run
// unguarded — a panic from one propagates to the collector callback that
// triggered handleEvent, matching the unguarded-callback behavior this
// port preserves rather than papers over.
type Hooks struct {
	BeforeTrack    func(event.TrackEvent) *event.TrackEvent
	TransformEvent func(event.TrackEvent) event.TrackEvent
	OnTrack        func(event.TrackEvent)
}

// Tracker is the per-tab event intake and delivery coordinator.
type Tracker struct {
	opts   Options
	hooks  Hooks
	logger *slog.Logger
	idGen  idgen.Generator

	tab        *browser.Tab
	bridge     *collector.Bridge
	transport  *transport.Transport
	offline    *offline.Buffer
	diag       *diag.Logger
	traceStore *trace.Store

	mu         sync.Mutex
	installed  bool
	collectors map[string]collector.Collector
	queue      *util.Queue[event.TrackEvent]
	dedup      *dedupSet
	device     *event.DeviceInfo
	sessionID  string
	pageID     string

	pageEnterTime  time.Time
	clickCount     int
	maxScrollDepth int

	flushStop chan struct{}
	flushDone chan struct{}
}

// New creates a Tracker bound to an already-opened tab. Call Install to
// begin capture.
func New(tab *browser.Tab, opts Options, hooks Hooks) *Tracker {
	opts.apply()
	logger := opts.Logger

	return &Tracker{
		opts:       opts,
		hooks:      hooks,
		logger:     logger,
		idGen:      idgen.Default,
		tab:        tab,
		bridge:     collector.NewBridge(tab, logger),
		collectors: make(map[string]collector.Collector),
		queue:      util.NewQueue[event.TrackEvent](opts.QueueCapacity),
		dedup:      newDedupSet(opts.DedupCapacity),
		sessionID:  idgen.Default(),
		pageID:     tab.PageID,
	}
}

// Install wires up device info, rehydrates the offline buffer, installs
// every enabled collector, starts the periodic flush timer, binds
// lifecycle listeners, and (if autoPageView) emits the initial page view.
// No-op if disabled or already installed.
func (t *Tracker) Install(ctx context.Context) error {
	t.mu.Lock()
	if !t.opts.Enabled || t.installed {
		t.mu.Unlock()
		return nil
	}
	t.installed = true
	t.pageEnterTime = time.Now()
	t.mu.Unlock()

	if err := t.bridge.Start(ctx); err != nil {
		return fmt.Errorf("tracker: start bridge: %w", err)
	}

	t.populateDeviceInfo(ctx)

	if t.opts.Offline.Enabled {
		if err := t.setupOffline(ctx); err != nil {
			t.logger.Warn("tracker: offline buffer unavailable", "error", err)
		} else {
			t.rehydrateOffline(ctx)
			t.setupTrace()
		}
	}

	t.setupDiag(ctx)
	t.setupTransport()

	if err := t.installCollectors(ctx); err != nil {
		return fmt.Errorf("tracker: install collectors: %w", err)
	}

	t.startFlushTimer(ctx)
	t.bindLifecycleListeners(ctx)

	if t.opts.AutoPageView {
		if nav, ok := t.getNavigation(); ok {
			if err := nav.TrackPageView(); err != nil {
				t.logger.Warn("tracker: initial page view failed", "error", err)
			}
		}
	}

	return nil
}

func (t *Tracker) populateDeviceInfo(ctx context.Context) {
	raw, err := t.tab.Eval(ctx, `() => JSON.stringify({
		userAgent: navigator.userAgent,
		screenWidth: screen.width,
		screenHeight: screen.height,
		viewportWidth: window.innerWidth,
		viewportHeight: window.innerHeight,
		devicePixelRatio: window.devicePixelRatio || 1,
		language: navigator.language || "",
		timezone: Intl.DateTimeFormat().resolvedOptions().timeZone || "",
		platform: navigator.platform || "",
		isTouchDevice: ("ontouchstart" in window) || navigator.maxTouchPoints > 0,
		isMobile: /Mobi|Android/i.test(navigator.userAgent),
		deviceMemory: navigator.deviceMemory || undefined,
		hardwareConcurrency: navigator.hardwareConcurrency || undefined,
	})`)
	if err != nil {
		t.logger.Warn("tracker: device info eval failed", "error", err)
		return
	}
	var device event.DeviceInfo
	if err := json.Unmarshal([]byte(raw), &device); err != nil {
		t.logger.Warn("tracker: device info decode failed", "error", err)
		return
	}
	t.mu.Lock()
	t.device = &device
	t.mu.Unlock()
}

func (t *Tracker) setupOffline(ctx context.Context) error {
	buf, err := offline.Open(offline.Config{
		Path:       t.opts.Offline.Path,
		MaxEvents:  t.opts.Offline.MaxEvents,
		ExpireTime: t.opts.Offline.ExpireTime,
		Logger:     t.logger,
	})
	if err != nil {
		return err
	}
	if err := buf.EnsureTable(ctx); err != nil {
		buf.Close()
		return err
	}
	t.offline = buf
	return nil
}

func (t *Tracker) rehydrateOffline(ctx context.Context) {
	events, err := t.offline.LoadAndClear(ctx)
	if err != nil {
		t.logger.Warn("tracker: offline rehydrate failed", "error", err)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range events {
		if t.dedup.Contains(e.ID) {
			continue
		}
		if !t.queue.Enqueue(e) {
			break
		}
	}
}

// setupTrace turns on SQL tracing for every "sqlite-trace" connection in
// the process (the offline buffer and diag log both open theirs that way)
// by registering a trace.Store that persists to a sibling file, opened
// with the untraced "sqlite" driver to avoid tracing its own writes. The
// store is process-global by design, matching the driver it backs — the
// last Tracker to install wins if more than one tab is tracked.
func (t *Tracker) setupTrace() {
	db, err := sql.Open("sqlite", t.opts.Offline.Path+".trace")
	if err != nil {
		t.logger.Warn("tracker: trace store open failed", "error", err)
		return
	}
	store := trace.NewStore(db)
	if err := store.Init(); err != nil {
		t.logger.Warn("tracker: trace store init failed", "error", err)
		db.Close()
		return
	}
	trace.SetStore(store)
	t.traceStore = store
}

// setupDiag starts the delivery-attempt logger, persisting to the offline
// buffer's SQLite file when one is open so no second file handle is
// needed; otherwise entries are still emitted via slog with no SQLite
// persistence.
func (t *Tracker) setupDiag(ctx context.Context) {
	var db *sql.DB
	if t.offline != nil {
		db = t.offline.DB()
	}
	l := diag.New(db, 1000, t.logger)
	if err := l.EnsureTable(ctx); err != nil {
		t.logger.Warn("tracker: diag table setup failed", "error", err)
	}
	t.diag = l
}

func (t *Tracker) setupTransport() {
	// t.offline is a typed nil when offline persistence is disabled; pass an
	// untyped nil through so transport's "Offline != nil" checks see a true
	// nil interface rather than a non-nil interface wrapping a nil pointer.
	var ob transport.OfflineBuffer
	if t.offline != nil {
		ob = t.offline
	}
	tr := transport.New(t.opts.Endpoint, t.opts.Mechanism, t.opts.Retry, ob, t.logger)
	tr.OnSuccess = func(events []event.TrackEvent) {
		if t.diag != nil {
			t.diag.Record(string(t.opts.Mechanism), "success", len(events), nil, 0)
		}
	}
	tr.OnError = func(err error, events []event.TrackEvent) {
		if t.diag != nil {
			t.diag.Record(string(t.opts.Mechanism), "failure", len(events), err, 0)
		}
	}
	t.transport = tr
}

func (t *Tracker) installCollectors(ctx context.Context) error {
	c := t.opts.Collectors

	if c.Click.Enabled {
		click := collector.NewClick(collector.NewBase(t.bridge, t.logger), c.Click.toConfig())
		click.SetEventCallback(t.onClickEvent)
		if err := click.Install(ctx); err != nil {
			return err
		}
		t.collectors["click"] = click
	}

	var scroll *collector.Scroll
	if c.Scroll.Enabled {
		scroll = collector.NewScroll(collector.NewBase(t.bridge, t.logger), c.Scroll.toConfig())
		scroll.SetEventCallback(t.onScrollEvent)
		if err := scroll.Install(ctx); err != nil {
			return err
		}
		t.collectors["scroll"] = scroll
	}

	if c.Input.Enabled {
		input := collector.NewInput(collector.NewBase(t.bridge, t.logger), c.Input.toConfig())
		input.SetEventCallback(t.handleEvent)
		if err := input.Install(ctx); err != nil {
			return err
		}
		t.collectors["input"] = input
	}

	if c.Navigation.Enabled {
		nav := collector.NewNavigation(collector.NewBase(t.bridge, t.logger))
		if scroll != nil {
			nav.OnNavigate = func() { scroll.ResetDepths() }
		}
		nav.SetEventCallback(t.onNavigationEvent)
		if err := nav.Install(ctx); err != nil {
			return err
		}
		t.collectors["navigation"] = nav
	}

	if c.Error.Enabled {
		errc := collector.NewError(collector.NewBase(t.bridge, t.logger), c.Error.toConfig())
		errc.SetEventCallback(t.handleEvent)
		if err := errc.Install(ctx); err != nil {
			return err
		}
		t.collectors["error"] = errc
	}

	if c.Perf.Enabled {
		perf := collector.NewPerf(collector.NewBase(t.bridge, t.logger), c.Perf.toConfig(t.opts.Endpoint))
		perf.SetEventCallback(t.handleEvent)
		if err := perf.Install(ctx); err != nil {
			return err
		}
		t.collectors["performance"] = perf
	}

	if c.Exposure.Enabled {
		exposure := collector.NewExposure(collector.NewBase(t.bridge, t.logger), c.Exposure.toConfig())
		exposure.SetEventCallback(t.handleEvent)
		if err := exposure.Install(ctx); err != nil {
			return err
		}
		t.collectors["exposure"] = exposure
	}

	return nil
}

// onClickEvent wraps handleEvent with the per-page click counter.
func (t *Tracker) onClickEvent(e event.TrackEvent) {
	t.mu.Lock()
	t.clickCount++
	t.mu.Unlock()
	t.handleEvent(e)
}

// onScrollEvent wraps handleEvent with the per-page max-scroll-depth
// counter.
func (t *Tracker) onScrollEvent(e event.TrackEvent) {
	if data, ok := e.Data.(event.ScrollData); ok {
		t.mu.Lock()
		if data.Depth > t.maxScrollDepth {
			t.maxScrollDepth = data.Depth
		}
		t.mu.Unlock()
	}
	t.handleEvent(e)
}

// onNavigationEvent resets the per-page counters on every route change
// before handing the page_view event onward.
func (t *Tracker) onNavigationEvent(e event.TrackEvent) {
	t.mu.Lock()
	t.pageID = idgen.Default()
	t.pageEnterTime = time.Now()
	t.clickCount = 0
	t.maxScrollDepth = 0
	t.mu.Unlock()
	t.handleEvent(e)
}

func (t *Tracker) getNavigation() (*collector.Navigation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.collectors["navigation"]
	if !ok {
		return nil, false
	}
	nav, ok := c.(*collector.Navigation)
	return nav, ok
}

// handleEvent implements the intake contract: sample, fill defaults, run
// hooks, dedup, enqueue, notify, and trigger flush on priority/threshold.
func (t *Tracker) handleEvent(e event.TrackEvent) {
	if !t.shouldSample(e) {
		return
	}

	t.fillDefaults(&e)

	if t.hooks.BeforeTrack != nil {
		filtered := t.hooks.BeforeTrack(e)
		if filtered == nil {
			return
		}
		e = *filtered
	}
	if t.hooks.TransformEvent != nil {
		e = t.hooks.TransformEvent(e)
	}

	t.mu.Lock()
	if t.dedup.Contains(e.ID) {
		t.mu.Unlock()
		t.logger.Debug("tracker: dropped duplicate event", "id", e.ID)
		return
	}
	t.dedup.Add(e.ID)

	if !t.queue.Enqueue(e) {
		if old, ok := t.queue.Dequeue(); ok {
			t.logger.Warn("tracker: queue full, dropped oldest", "id", old.ID)
		}
		t.queue.Enqueue(e)
	}
	size := t.queue.Size()
	t.mu.Unlock()

	if t.hooks.OnTrack != nil {
		t.hooks.OnTrack(e)
	}

	if e.Priority == event.PriorityImmediate || size >= t.opts.BatchSize {
		go t.flush(context.Background())
	}
}

func (t *Tracker) shouldSample(e event.TrackEvent) bool {
	adv := t.opts.AdvancedSampling
	if adv.Enabled {
		rate := adv.Global
		if r, ok := adv.PerType[string(e.Type)]; ok {
			rate = r
		}
		if t.opts.UserID != "" {
			return util.ConsistentSample(t.opts.UserID, rate)
		}
		return util.ShouldSample(rate)
	}
	return util.ShouldSample(t.opts.SampleRate)
}

func (t *Tracker) fillDefaults(e *event.TrackEvent) {
	if e.ID == "" {
		e.ID = t.idGen()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	t.mu.Lock()
	if e.SessionID == "" {
		e.SessionID = t.sessionID
	}
	if e.PageID == "" {
		e.PageID = t.pageID
	}
	if e.Device == nil {
		e.Device = t.device
	}
	t.mu.Unlock()
	if e.URL == "" {
		e.URL = t.tab.PageURL
	}
	if e.UserID == "" {
		e.UserID = t.opts.UserID
	}
	if e.Priority == "" {
		e.Priority = event.PriorityNormal
	}
	if len(t.opts.GlobalProperties) > 0 {
		if e.Properties == nil {
			e.Properties = make(map[string]any, len(t.opts.GlobalProperties))
		}
		for k, v := range t.opts.GlobalProperties {
			if _, exists := e.Properties[k]; !exists {
				e.Properties[k] = v
			}
		}
	}
}

func (t *Tracker) startFlushTimer(ctx context.Context) {
	t.flushStop = make(chan struct{})
	t.flushDone = make(chan struct{})
	go func() {
		defer close(t.flushDone)
		ticker := time.NewTicker(t.opts.BatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.flushStop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.flush(ctx)
			}
		}
	}()
}

func (t *Tracker) bindLifecycleListeners(ctx context.Context) {
	if err := t.bridge.Inject(`
		(() => {
			if (window.__utrackLifecycle) return;
			const emit = (trigger) => window.__utrack_emit && window.__utrack_emit(JSON.stringify({source:"lifecycle", data:{trigger}}));
			const leave = () => emit("leave");
			document.addEventListener("visibilitychange", () => { if (document.visibilityState === "hidden") leave(); });
			window.addEventListener("pagehide", leave);
			window.addEventListener("beforeunload", leave);
			window.addEventListener("online", () => emit("online"));
			window.__utrackLifecycle = true;
		})();
	`); err != nil {
		t.logger.Warn("tracker: bind lifecycle listeners failed", "error", err)
	}
	t.bridge.Register("lifecycle", func(raw json.RawMessage) {
		var rec struct {
			Trigger string `json:"trigger"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			t.logger.Warn("tracker: decode lifecycle record", "error", err)
			return
		}
		// "online" only means connectivity returned — it should flush
		// (and retry anything offline-buffered), not end the page visit.
		if rec.Trigger != "online" {
			t.TrackPageLeave()
		}
		go t.flush(ctx)
	})
}

// flush drains the queue and hands the batch to transport.
func (t *Tracker) flush(ctx context.Context) {
	t.mu.Lock()
	events := t.queue.DequeueAll()
	t.mu.Unlock()
	if len(events) == 0 {
		return
	}
	t.transport.Flush(ctx, t.opts.AppName, t.opts.AppVersion, t.sessionID, events)
}

// Track is the programmatic API for emitting a custom event.
func (t *Tracker) Track(name string, data any, priority event.Priority) {
	if priority == "" {
		priority = event.PriorityNormal
	}
	t.handleEvent(event.TrackEvent{Type: event.TypeCustom, Name: name, Data: data, Priority: priority})
}

// TrackPageView emits a page_view event directly, bypassing the
// navigation collector's URL-change detection.
func (t *Tracker) TrackPageView() {
	if nav, ok := t.getNavigation(); ok {
		nav.TrackPageView()
		return
	}
	t.handleEvent(event.TrackEvent{Type: event.TypePageView, Name: "page_view"})
}

// TrackPageLeave emits a page_leave event carrying the accumulated
// per-page counters, at IMMEDIATE priority so it ships before the tab
// closes.
func (t *Tracker) TrackPageLeave() {
	t.mu.Lock()
	data := event.PageLeaveData{
		Duration:       time.Since(t.pageEnterTime).Milliseconds(),
		MaxScrollDepth: t.maxScrollDepth,
		ClickCount:     t.clickCount,
	}
	t.mu.Unlock()
	t.handleEvent(event.TrackEvent{Type: event.TypePageLeave, Name: "page_leave", Data: data, Priority: event.PriorityImmediate})
}

func (t *Tracker) SetUserID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts.UserID = id
}

func (t *Tracker) SetGlobalProperties(props map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.opts.GlobalProperties == nil {
		t.opts.GlobalProperties = make(map[string]any, len(props))
	}
	for k, v := range props {
		t.opts.GlobalProperties[k] = v
	}
}

func (t *Tracker) RegisterCollector(ctx context.Context, c collector.Collector) error {
	t.mu.Lock()
	if _, exists := t.collectors[c.Name()]; exists {
		t.mu.Unlock()
		return nil
	}
	t.collectors[c.Name()] = c
	t.mu.Unlock()

	c.SetEventCallback(t.handleEvent)
	return c.Install(ctx)
}

func (t *Tracker) RemoveCollector(name string) error {
	t.mu.Lock()
	c, ok := t.collectors[name]
	if ok {
		delete(t.collectors, name)
	}
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Uninstall()
}

func (t *Tracker) GetCollector(name string) (collector.Collector, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.collectors[name]
	return c, ok
}

// UpdateOptions merges non-zero fields of partial into the live
// configuration.
func (t *Tracker) UpdateOptions(partial Options) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts.merge(partial)
}

// Uninstall stops the flush timer and every installed collector, then
// closes auxiliary resources.
func (t *Tracker) Uninstall() error {
	t.mu.Lock()
	if !t.installed {
		t.mu.Unlock()
		return nil
	}
	t.installed = false
	collectors := make([]collector.Collector, 0, len(t.collectors))
	for _, c := range t.collectors {
		collectors = append(collectors, c)
	}
	t.mu.Unlock()

	if t.flushStop != nil {
		close(t.flushStop)
		<-t.flushDone
	}

	for _, c := range collectors {
		if err := c.Uninstall(); err != nil {
			t.logger.Warn("tracker: uninstall collector failed", "name", c.Name(), "error", err)
		}
	}

	t.bridge.Stop()

	if t.diag != nil {
		t.diag.Close()
	}
	if t.offline != nil {
		t.offline.Close()
	}
	if t.traceStore != nil {
		trace.SetStore(nil)
		t.traceStore.Close()
	}
	return nil
}
