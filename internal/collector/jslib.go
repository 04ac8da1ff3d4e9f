package collector

import "github.com/hazyhaar/utrack/internal/collector/domctx"

// injectLib ensures the shared extraction library is present on the page.
// Safe to call from every collector's Install — the script self-guards
// against double definition.
func injectLib(bridge *Bridge) error {
	return domctx.EnsureLib(bridge)
}
