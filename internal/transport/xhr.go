package transport

import (
	"bytes"
	"context"
	"net/http"
)

// dispatchXHR POSTs JSON synchronously, success is any 2xx — the same
// wire shape as fetch, kept as a distinct mechanism because callers pick
// between them for different browser-compatibility reasons upstream of
// this core.
func dispatchXHR(ctx context.Context, client *http.Client, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus("xhr", resp.StatusCode)
}
