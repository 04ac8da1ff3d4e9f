package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// maxImagePayloadBytes bounds the query-string-encoded payload; the image
// mechanism is only suitable for small batches, matching the original
// single-pixel-GET delivery trick's URL-length ceiling.
const maxImagePayloadBytes = 2000

// dispatchImage GETs with the JSON payload URL-encoded as a query param
// plus a cache-busting timestamp, mirroring the 1x1-pixel beacon trick
// used where POST bodies aren't available.
func dispatchImage(ctx context.Context, client *http.Client, endpoint string, body []byte) error {
	if len(body) > maxImagePayloadBytes {
		return fmt.Errorf("image: payload too large for query-string delivery (%d bytes)", len(body))
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("d", string(body))
	q.Set("_", fmt.Sprintf("%d", time.Now().UnixMilli()))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus("image", resp.StatusCode)
}
