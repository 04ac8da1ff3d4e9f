package transport

import (
	"bytes"
	"context"
	"net/http"
)

// dispatchBeacon approximates navigator.sendBeacon: fire a POST and treat
// any failure to even get a response as a synchronous false. There is no
// server-side way to queue delivery past process exit the way the
// browser's beacon facility survives page unload. Each call makes one
// POST; Flush retries it under the transport's RetryPolicy like every
// other mechanism.
func dispatchBeacon(ctx context.Context, client *http.Client, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus("beacon", resp.StatusCode)
}
