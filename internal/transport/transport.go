// Package transport ships batches of events to a remote ingest endpoint.
// flush() is non-reentrant, tries the configured delivery mechanism
// wrapped in retry-with-backoff, and falls back to the offline buffer on
// failure — mirroring the delivery-mechanism split (stdout/webhook/
// callback) of the DOM-observation daemon's sink package, generalized to
// four HTTP-shaped mechanisms instead of three local ones.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/utrack/event"
	"github.com/hazyhaar/utrack/internal/util"
)

// Mechanism selects the delivery strategy.
type Mechanism string

const (
	MechanismBeacon Mechanism = "BEACON"
	MechanismFetch  Mechanism = "FETCH"
	MechanismXHR    Mechanism = "XHR"
	MechanismImage  Mechanism = "IMAGE"
)

// Payload is the wire envelope shipped to the ingest endpoint.
type Payload struct {
	AppName    string             `json:"appName"`
	AppVersion string             `json:"appVersion"`
	SessionID  string             `json:"sessionId"`
	Events     []event.TrackEvent `json:"events"`
}

// OfflineBuffer is the persistence side of flush's offline fallback.
type OfflineBuffer interface {
	Save(ctx context.Context, events []event.TrackEvent) error
}

// Result mirrors the outcome shape the tracker's onSuccess/onError hooks
// consume.
type Result struct {
	Success bool
	Error   string
}

// Transport owns the HTTP client and retry policy used to ship batches.
type Transport struct {
	Endpoint  string
	Mechanism Mechanism
	Client    *http.Client
	Retry     RetryPolicy
	Offline   OfflineBuffer
	IsOnline  func() bool
	Logger    *slog.Logger

	OnSuccess func(events []event.TrackEvent)
	OnError   func(err error, events []event.TrackEvent)

	flushing atomic.Bool
}

func New(endpoint string, mechanism Mechanism, retry RetryPolicy, offline OfflineBuffer, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		Endpoint:  endpoint,
		Mechanism: mechanism,
		Client:    &http.Client{Timeout: 10 * time.Second},
		Retry:     retry,
		Offline:   offline,
		IsOnline:  func() bool { return true },
		Logger:    logger,
	}
}

// Flush implements the flush() contract: non-reentrant, offline-aware,
// retried delivery with the OnSuccess hook on success and offline
// persistence on terminal failure. It does not touch any dedup set.
func (t *Transport) Flush(ctx context.Context, appName, appVersion, sessionID string, events []event.TrackEvent) Result {
	if len(events) == 0 || t.Endpoint == "" {
		return Result{Success: true}
	}
	if !t.flushing.CompareAndSwap(false, true) {
		return Result{Success: true}
	}
	defer t.flushing.Store(false)

	if t.IsOnline != nil && !t.IsOnline() {
		if t.Offline != nil {
			if err := t.Offline.Save(ctx, events); err != nil {
				t.Logger.Warn("transport: offline save failed", "error", err)
			}
		}
		return Result{Success: false, Error: "Offline"}
	}

	payload := Payload{AppName: appName, AppVersion: appVersion, SessionID: sessionID, Events: events}
	body := util.SafeMarshal(payload)

	send := dispatchers[t.Mechanism]
	if send == nil {
		send = dispatchFetch
	}

	sendErr := Retry(ctx, t.Retry, func(ctx context.Context) error {
		return send(ctx, t.Client, t.Endpoint, body)
	})

	if sendErr == nil {
		if t.OnSuccess != nil {
			t.OnSuccess(events)
		}
		return Result{Success: true}
	}

	if t.Offline != nil {
		if err := t.Offline.Save(ctx, events); err != nil {
			t.Logger.Warn("transport: offline save failed", "error", err)
		}
	}
	if t.OnError != nil {
		t.OnError(sendErr, events)
	}
	return Result{Success: false, Error: sendErr.Error()}
}

type dispatchFunc func(ctx context.Context, client *http.Client, endpoint string, body []byte) error

var dispatchers = map[Mechanism]dispatchFunc{
	MechanismBeacon: dispatchBeacon,
	MechanismFetch:  dispatchFetch,
	MechanismXHR:    dispatchXHR,
	MechanismImage:  dispatchImage,
}

func checkStatus(mechanism string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	return fmt.Errorf("%s: status %d", mechanism, code)
}
