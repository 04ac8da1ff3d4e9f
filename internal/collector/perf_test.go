package collector

import (
	"encoding/json"
	"testing"

	"github.com/hazyhaar/utrack/event"
)

func newTestPerf(cfg PerfConfig) (*Perf, *[]event.TrackEvent) {
	var got []event.TrackEvent
	p := NewPerf(NewBase(nil, nil), cfg)
	p.SetEventCallback(func(e event.TrackEvent) { got = append(got, e) })
	return p, &got
}

func TestPerf_HandleDecodesAndEmits(t *testing.T) {
	p, got := newTestPerf(DefaultPerfConfig())

	raw, err := json.Marshal(event.PerformanceData{
		TTFB: 120, FCP: 800, LCP: 1500,
		LongTasks: []event.LongTask{{Duration: 60, StartTime: 200}},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	p.handle(raw)

	if len(*got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(*got))
	}
	if (*got)[0].Type != event.TypePerformance {
		t.Fatalf("expected TypePerformance, got %q", (*got)[0].Type)
	}
	data, ok := (*got)[0].Data.(event.PerformanceData)
	if !ok {
		t.Fatalf("expected event.PerformanceData payload, got %T", (*got)[0].Data)
	}
	if data.LCP != 1500 || len(data.LongTasks) != 1 {
		t.Fatalf("expected decoded performance fields, got %+v", data)
	}
}

func TestPerf_HandleMalformedRecordEmitsNothing(t *testing.T) {
	p, got := newTestPerf(DefaultPerfConfig())

	p.handle(json.RawMessage(`not-json`))

	if len(*got) != 0 {
		t.Fatalf("expected no events on decode failure, got %d", len(*got))
	}
}

func TestPerf_NameIsPerformance(t *testing.T) {
	p, _ := newTestPerf(DefaultPerfConfig())
	if p.Name() != "performance" {
		t.Fatalf("expected name 'performance', got %q", p.Name())
	}
}
