package transport

import (
	"bytes"
	"context"
	"net/http"
)

// dispatchFetch POSTs JSON and treats any non-2xx as an error, the
// keepalive-on-unload semantics of the browser fetch() with
// keepalive:true having no server-side equivalent beyond completing the
// request normally.
func dispatchFetch(ctx context.Context, client *http.Client, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus("fetch", resp.StatusCode)
}
