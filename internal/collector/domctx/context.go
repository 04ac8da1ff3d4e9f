// Package domctx provides the framework/DOM context extraction that the
// interaction collectors layer on top of raw element info: component
// chains, router state, landmark regions, and interaction-type
// classification. The extraction logic itself runs in-page (it needs
// live DOM/framework object access); this package owns the script and
// the Go-side types the script's JSON payloads decode into.
package domctx

import (
	_ "embed"
	"context"
	"encoding/json"

	"github.com/hazyhaar/utrack/event"
)

//go:embed js/lib.js
var LibJS string

// Injector is satisfied by collector.Bridge; kept as an interface here so
// domctx has no dependency on the collector package.
type Injector interface {
	Inject(js string) error
}

// EnsureLib installs the extraction library on the page. Idempotent.
func EnsureLib(inj Injector) error {
	return inj.Inject(LibJS)
}

// Evaluator is satisfied by *browser.Tab.
type Evaluator interface {
	Eval(ctx context.Context, js string) (string, error)
}

// CurrentRoute evaluates window.__utrackLib.routeInfo() and decodes it.
// Returns nil, nil when no router is present on the page.
func CurrentRoute(ctx context.Context, ev Evaluator) (*event.RouteInfo, error) {
	raw, err := ev.Eval(ctx, "() => JSON.stringify(window.__utrackLib ? window.__utrackLib.routeInfo() : null)")
	if err != nil {
		return nil, err
	}
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var route event.RouteInfo
	if err := json.Unmarshal([]byte(raw), &route); err != nil {
		return nil, err
	}
	return &route, nil
}
