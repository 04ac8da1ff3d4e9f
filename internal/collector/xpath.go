package collector

import (
	"context"
	"fmt"

	"github.com/hazyhaar/utrack/internal/browser"
)

// xpathFromSelector evaluates an XPath for the first element matching
// selector, for callers that hold a CSS selector rather than an element
// reference in-page. No collector in this package calls it; Exposure's
// Observe and Unobserve resolve their selector in-page instead.
func xpathFromSelector(ctx context.Context, tab *browser.Tab, selector string) (string, error) {
	js := fmt.Sprintf(`() => {
		const el = document.querySelector(%q);
		if (!el || !window.__utrackLib) return "";
		return window.__utrackLib.computeXPath(el);
	}`, selector)
	return tab.Eval(ctx, js)
}
