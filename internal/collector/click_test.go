package collector

import (
	"encoding/json"
	"testing"

	"github.com/hazyhaar/utrack/event"
)

func newTestClick(cfg ClickConfig) (*Click, *[]event.TrackEvent) {
	var got []event.TrackEvent
	c := NewClick(NewBase(nil, nil), cfg)
	c.SetEventCallback(func(e event.TrackEvent) { got = append(got, e) })
	return c, &got
}

func clickRecord(t *testing.T, name string, data event.ClickData) json.RawMessage {
	t.Helper()
	payload := struct {
		Name string          `json:"name"`
		Data event.ClickData `json:"data"`
	}{Name: name, Data: data}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return raw
}

func TestClick_HandleDecodesAndEmits(t *testing.T) {
	c, got := newTestClick(DefaultClickConfig())

	c.handle(clickRecord(t, "click", event.ClickData{X: 10, Y: 20, Button: 0, ButtonName: "left", ClickType: "single"}))

	if len(*got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(*got))
	}
	data, ok := (*got)[0].Data.(event.ClickData)
	if !ok {
		t.Fatalf("expected event.ClickData payload, got %T", (*got)[0].Data)
	}
	if data.X != 10 || data.Y != 20 || data.ClickType != "single" {
		t.Fatalf("expected decoded click fields, got %+v", data)
	}
	if (*got)[0].Type != event.TypeClick {
		t.Fatalf("expected TypeClick, got %q", (*got)[0].Type)
	}
}

func TestClick_HandleMalformedRecordEmitsNothing(t *testing.T) {
	c, got := newTestClick(DefaultClickConfig())

	c.handle(json.RawMessage(`not-json`))

	if len(*got) != 0 {
		t.Fatalf("expected no events on decode failure, got %d", len(*got))
	}
}

func TestClick_PausedDropsEmit(t *testing.T) {
	c, got := newTestClick(DefaultClickConfig())
	c.Pause()

	c.handle(clickRecord(t, "click", event.ClickData{ClickType: "single"}))

	if len(*got) != 0 {
		t.Fatalf("expected paused collector to drop events, got %d", len(*got))
	}

	c.Resume()
	c.handle(clickRecord(t, "click", event.ClickData{ClickType: "single"}))
	if len(*got) != 1 {
		t.Fatalf("expected resumed collector to emit, got %d", len(*got))
	}
}

func TestClick_NameIsClick(t *testing.T) {
	c, _ := newTestClick(DefaultClickConfig())
	if c.Name() != "click" {
		t.Fatalf("expected name 'click', got %q", c.Name())
	}
}
