package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the HTTP collaborator: one fetch per URL, transport policy
// (timeouts, pooling) owned by the implementation.
type Client interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTTPClient fetches over net/http with a browser-ish user agent, which some
// tile services require.
type HTTPClient struct {
	c  *http.Client
	ua string
}

// NewHTTPClient builds a client with the given timeout (zero means 30s).
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		c: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
			},
		},
		ua: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	}
}

func (h *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", h.ua)
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")
	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tiledl: fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
