package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hazyhaar/utrack/event"
)

type fakeOffline struct {
	mu    sync.Mutex
	saved [][]event.TrackEvent
}

func (f *fakeOffline) Save(ctx context.Context, events []event.TrackEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, events)
	return nil
}

func (f *fakeOffline) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func testEvents() []event.TrackEvent {
	return []event.TrackEvent{{ID: "e1", Type: event.TypeClick}, {ID: "e2", Type: event.TypeScroll}}
}

func TestTransport_Flush_SuccessDeliversBatch(t *testing.T) {
	var received Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := New(srv.URL, MechanismFetch, RetryPolicy{MaxRetries: 0}, nil, nil)
	res := tr.Flush(context.Background(), "app", "1.0", "sess-1", testEvents())

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(received.Events) != 2 {
		t.Fatalf("expected server to receive 2 events, got %d", len(received.Events))
	}
}

func TestTransport_Flush_FailurePersistsOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	offline := &fakeOffline{}
	tr := New(srv.URL, MechanismFetch, RetryPolicy{MaxRetries: 0}, offline, nil)
	res := tr.Flush(context.Background(), "app", "1.0", "sess-1", testEvents())

	if res.Success {
		t.Fatal("expected failure result")
	}
	if offline.count() != 1 {
		t.Fatalf("expected one offline save, got %d", offline.count())
	}
}

func TestTransport_Flush_OfflineSkipsNetwork(t *testing.T) {
	var hit atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	offline := &fakeOffline{}
	tr := New(srv.URL, MechanismFetch, RetryPolicy{}, offline, nil)
	tr.IsOnline = func() bool { return false }

	res := tr.Flush(context.Background(), "app", "1.0", "sess-1", testEvents())

	if res.Success {
		t.Fatal("expected offline flush to report failure")
	}
	if hit.Load() {
		t.Fatal("expected no network request while offline")
	}
	if offline.count() != 1 {
		t.Fatalf("expected offline save while disconnected, got %d", offline.count())
	}
}

func TestTransport_Flush_EmptyEventsNoOp(t *testing.T) {
	tr := New("http://example.invalid", MechanismFetch, RetryPolicy{}, nil, nil)
	res := tr.Flush(context.Background(), "app", "1.0", "sess-1", nil)
	if !res.Success {
		t.Fatal("expected no-op flush with no events to report success")
	}
}

func TestTransport_Flush_NonReentrant(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := New(srv.URL, MechanismFetch, RetryPolicy{}, nil, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var first Result
	go func() {
		defer wg.Done()
		first = tr.Flush(context.Background(), "app", "1.0", "sess", testEvents())
	}()

	<-started
	second := tr.Flush(context.Background(), "app", "1.0", "sess", testEvents())
	close(block)
	wg.Wait()

	if !second.Success {
		t.Fatal("expected the concurrent caller that finds flushing in progress to get Success: true as a no-op")
	}
	if !first.Success {
		t.Fatalf("expected the in-flight flush to eventually succeed, got %+v", first)
	}
}

func TestDispatch_OnSuccessAndOnErrorHooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var successCalled, errorCalled bool
	tr := New(srv.URL, MechanismXHR, RetryPolicy{MaxRetries: 0}, nil, nil)
	tr.OnSuccess = func(events []event.TrackEvent) { successCalled = true }
	tr.OnError = func(err error, events []event.TrackEvent) { errorCalled = true }

	tr.Flush(context.Background(), "app", "1.0", "sess", testEvents())

	if successCalled {
		t.Fatal("expected OnSuccess not to fire on failure")
	}
	if !errorCalled {
		t.Fatal("expected OnError to fire on failure")
	}
}
