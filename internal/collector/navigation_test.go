package collector

import (
	"encoding/json"
	"testing"

	"github.com/hazyhaar/utrack/event"
)

func newTestNavigation() (*Navigation, *[]event.TrackEvent) {
	var got []event.TrackEvent
	n := NewNavigation(NewBase(nil, nil))
	n.SetEventCallback(func(e event.TrackEvent) { got = append(got, e) })
	return n, &got
}

func navigationRecord(t *testing.T, data event.NavigationData) json.RawMessage {
	t.Helper()
	payload := struct {
		Data event.NavigationData `json:"data"`
	}{Data: data}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return raw
}

func TestNavigation_HandleDecodesAndEmitsPageView(t *testing.T) {
	n, got := newTestNavigation()

	n.handle(navigationRecord(t, event.NavigationData{Pathname: "/checkout", Trigger: "pushState"}))

	if len(*got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(*got))
	}
	if (*got)[0].Type != event.TypePageView {
		t.Fatalf("expected TypePageView, got %q", (*got)[0].Type)
	}
	data, ok := (*got)[0].Data.(event.NavigationData)
	if !ok {
		t.Fatalf("expected event.NavigationData payload, got %T", (*got)[0].Data)
	}
	if data.Pathname != "/checkout" || data.Trigger != "pushState" {
		t.Fatalf("expected decoded navigation fields, got %+v", data)
	}
}

func TestNavigation_HandleFiresOnNavigateBeforeEmit(t *testing.T) {
	n, got := newTestNavigation()
	var fired bool
	n.OnNavigate = func() {
		fired = true
		if len(*got) != 0 {
			t.Fatal("expected OnNavigate to fire before the page_view event is emitted")
		}
	}

	n.handle(navigationRecord(t, event.NavigationData{Pathname: "/a", Trigger: "popstate"}))

	if !fired {
		t.Fatal("expected OnNavigate to fire on route change")
	}
	if len(*got) != 1 {
		t.Fatalf("expected event emitted after OnNavigate, got %d", len(*got))
	}
}

func TestNavigation_HandleWithoutOnNavigateStillEmits(t *testing.T) {
	n, got := newTestNavigation()

	n.handle(navigationRecord(t, event.NavigationData{Pathname: "/b", Trigger: "hashchange"}))

	if len(*got) != 1 {
		t.Fatalf("expected emit even with nil OnNavigate, got %d", len(*got))
	}
}

func TestNavigation_HandleMalformedRecordEmitsNothing(t *testing.T) {
	n, got := newTestNavigation()

	n.handle(json.RawMessage(`not-json`))

	if len(*got) != 0 {
		t.Fatalf("expected no events on decode failure, got %d", len(*got))
	}
}

func TestNavigation_NameIsNavigation(t *testing.T) {
	n, _ := newTestNavigation()
	if n.Name() != "navigation" {
		t.Fatalf("expected name 'navigation', got %q", n.Name())
	}
}
