package tracker

import (
	"testing"
	"time"

	"github.com/hazyhaar/utrack/event"
	"github.com/hazyhaar/utrack/idgen"
	"github.com/hazyhaar/utrack/internal/browser"
	"github.com/hazyhaar/utrack/internal/collector"
	"github.com/hazyhaar/utrack/internal/transport"
	"github.com/hazyhaar/utrack/internal/util"
)

func newTestTracker(opts Options, hooks Hooks) *Tracker {
	opts.apply()
	tr := &Tracker{
		opts:       opts,
		hooks:      hooks,
		logger:     opts.Logger,
		idGen:      idgen.Default,
		tab:        &browser.Tab{PageURL: "https://example.com/path", PageID: "page-1"},
		collectors: make(map[string]collector.Collector),
		queue:      util.NewQueue[event.TrackEvent](opts.QueueCapacity),
		dedup:      newDedupSet(opts.DedupCapacity),
		sessionID:  "sess-1",
		pageID:     "page-1",
	}
	// Endpoint "" makes Flush a no-op, so an IMMEDIATE-priority event's
	// background flush goroutine has a live, safe transport to call into
	// instead of panicking on a nil pointer.
	tr.transport = transport.New("", transport.MechanismFetch, transport.RetryPolicy{}, nil, tr.logger)
	return tr
}

func TestTracker_FillDefaults_PopulatesRequiredFields(t *testing.T) {
	opts := DefaultOptions()
	opts.UserID = "user-42"
	tr := newTestTracker(opts, Hooks{})

	e := event.TrackEvent{Type: event.TypeClick}
	tr.fillDefaults(&e)

	if e.ID == "" {
		t.Fatal("expected an ID to be generated")
	}
	if e.Timestamp == 0 {
		t.Fatal("expected a timestamp to be set")
	}
	if e.SessionID != "sess-1" {
		t.Fatalf("expected sessionId 'sess-1', got %q", e.SessionID)
	}
	if e.PageID != "page-1" {
		t.Fatalf("expected pageId 'page-1', got %q", e.PageID)
	}
	if e.URL != "https://example.com/path" {
		t.Fatalf("expected url from tab, got %q", e.URL)
	}
	if e.UserID != "user-42" {
		t.Fatalf("expected userId 'user-42', got %q", e.UserID)
	}
	if e.Priority != event.PriorityNormal {
		t.Fatalf("expected default priority NORMAL, got %q", e.Priority)
	}
}

func TestTracker_FillDefaults_DoesNotOverwriteSetFields(t *testing.T) {
	tr := newTestTracker(DefaultOptions(), Hooks{})
	e := event.TrackEvent{Type: event.TypeClick, ID: "explicit-id", SessionID: "explicit-session", Priority: event.PriorityHigh}
	tr.fillDefaults(&e)

	if e.ID != "explicit-id" || e.SessionID != "explicit-session" || e.Priority != event.PriorityHigh {
		t.Fatalf("expected explicit fields to survive fillDefaults, got %+v", e)
	}
}

func TestTracker_FillDefaults_MergesGlobalPropertiesWithoutOverwrite(t *testing.T) {
	opts := DefaultOptions()
	opts.GlobalProperties = map[string]any{"env": "prod", "tier": "free"}
	tr := newTestTracker(opts, Hooks{})

	e := event.TrackEvent{Type: event.TypeClick, Properties: map[string]any{"tier": "pro"}}
	tr.fillDefaults(&e)

	if e.Properties["env"] != "prod" {
		t.Fatalf("expected global property 'env' merged in, got %+v", e.Properties)
	}
	if e.Properties["tier"] != "pro" {
		t.Fatal("expected event-level property to win over global default")
	}
}

func TestTracker_ShouldSample_RateZeroAlwaysDrops(t *testing.T) {
	opts := DefaultOptions()
	opts.SampleRate = 0
	tr := newTestTracker(opts, Hooks{})

	for i := 0; i < 20; i++ {
		if tr.shouldSample(event.TrackEvent{Type: event.TypeClick}) {
			t.Fatal("expected sample rate 0 to always drop")
		}
	}
}

func TestTracker_ShouldSample_RateOneAlwaysKeeps(t *testing.T) {
	opts := DefaultOptions()
	opts.SampleRate = 1
	tr := newTestTracker(opts, Hooks{})

	for i := 0; i < 20; i++ {
		if !tr.shouldSample(event.TrackEvent{Type: event.TypeClick}) {
			t.Fatal("expected sample rate 1 to always keep")
		}
	}
}

func TestTracker_ShouldSample_AdvancedPerTypeOverridesGlobal(t *testing.T) {
	opts := DefaultOptions()
	opts.AdvancedSampling = AdvancedSampling{Enabled: true, Global: 0, PerType: map[string]float64{"click": 1}}
	tr := newTestTracker(opts, Hooks{})

	if !tr.shouldSample(event.TrackEvent{Type: event.TypeClick}) {
		t.Fatal("expected per-type override to force-sample click events")
	}
	if tr.shouldSample(event.TrackEvent{Type: event.TypeScroll}) {
		t.Fatal("expected scroll events to fall back to the zero global rate")
	}
}

func TestTracker_HandleEvent_DedupDropsRepeatID(t *testing.T) {
	tr := newTestTracker(DefaultOptions(), Hooks{})

	e := event.TrackEvent{ID: "dup-1", Type: event.TypeClick, Priority: event.PriorityNormal}
	tr.handleEvent(e)
	tr.handleEvent(e)

	if tr.queue.Size() != 1 {
		t.Fatalf("expected dedup to drop the repeat, queue has %d items", tr.queue.Size())
	}
}

func TestTracker_HandleEvent_BeforeTrackCanDropEvent(t *testing.T) {
	hooks := Hooks{BeforeTrack: func(e event.TrackEvent) *event.TrackEvent { return nil }}
	tr := newTestTracker(DefaultOptions(), hooks)

	tr.handleEvent(event.TrackEvent{ID: "x", Type: event.TypeClick})

	if tr.queue.Size() != 0 {
		t.Fatalf("expected BeforeTrack returning nil to drop the event, queue has %d items", tr.queue.Size())
	}
}

func TestTracker_HandleEvent_TransformEventMutatesPayload(t *testing.T) {
	hooks := Hooks{TransformEvent: func(e event.TrackEvent) event.TrackEvent {
		e.Name = "transformed"
		return e
	}}
	tr := newTestTracker(DefaultOptions(), hooks)

	tr.handleEvent(event.TrackEvent{ID: "x", Type: event.TypeClick, Name: "original"})

	all := tr.queue.ToArray()
	if len(all) != 1 || all[0].Name != "transformed" {
		t.Fatalf("expected TransformEvent to rename the event, got %+v", all)
	}
}

func TestTracker_HandleEvent_OnTrackFiresOnAccept(t *testing.T) {
	var fired int
	hooks := Hooks{OnTrack: func(e event.TrackEvent) { fired++ }}
	tr := newTestTracker(DefaultOptions(), hooks)

	tr.handleEvent(event.TrackEvent{ID: "x", Type: event.TypeClick})

	if fired != 1 {
		t.Fatalf("expected OnTrack to fire once, fired %d times", fired)
	}
}

func TestTracker_SetUserIDAndGlobalProperties(t *testing.T) {
	tr := newTestTracker(DefaultOptions(), Hooks{})

	tr.SetUserID("user-99")
	tr.SetGlobalProperties(map[string]any{"plan": "enterprise"})

	if tr.opts.UserID != "user-99" {
		t.Fatalf("expected UserID updated, got %q", tr.opts.UserID)
	}
	if tr.opts.GlobalProperties["plan"] != "enterprise" {
		t.Fatalf("expected global property set, got %+v", tr.opts.GlobalProperties)
	}
}

func TestTracker_TrackPageLeave_CapturesCounters(t *testing.T) {
	// IMMEDIATE priority triggers an async flush that drains the queue, so
	// capture the event via OnTrack (which fires before that flush) rather
	// than reading the queue back afterward.
	var captured event.TrackEvent
	hooks := Hooks{OnTrack: func(e event.TrackEvent) { captured = e }}
	tr := newTestTracker(DefaultOptions(), hooks)
	tr.pageEnterTime = time.Now().Add(-2 * time.Second)
	tr.clickCount = 4
	tr.maxScrollDepth = 75

	tr.TrackPageLeave()

	data, ok := captured.Data.(event.PageLeaveData)
	if !ok {
		t.Fatalf("expected event.PageLeaveData payload, got %T", captured.Data)
	}
	if data.ClickCount != 4 || data.MaxScrollDepth != 75 {
		t.Fatalf("expected captured counters in payload, got %+v", data)
	}
	if captured.Priority != event.PriorityImmediate {
		t.Fatalf("expected page_leave to ship at IMMEDIATE priority, got %q", captured.Priority)
	}
}

func TestTracker_UpdateOptions_MergesPartial(t *testing.T) {
	tr := newTestTracker(DefaultOptions(), Hooks{})
	tr.UpdateOptions(Options{SampleRate: 0.25, UserID: "merged-user"})

	if tr.opts.SampleRate != 0.25 {
		t.Fatalf("expected SampleRate merged, got %v", tr.opts.SampleRate)
	}
	if tr.opts.UserID != "merged-user" {
		t.Fatalf("expected UserID merged, got %q", tr.opts.UserID)
	}
}
