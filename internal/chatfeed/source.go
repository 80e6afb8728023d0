package chatfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"digstream.live/internal/protocol"
)

// Batch is one poll result. Metrics is nil when the source has no counters.
type Batch struct {
	Messages   []protocol.ChatMsg   `json:"messages"`
	Metrics    *protocol.MetricsMsg `json:"metrics,omitempty"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// Source yields chat messages not returned by an earlier Fetch.
type Source interface {
	Fetch(ctx context.Context) (Batch, error)
}

// HTTPSource polls a JSON endpoint that returns a Batch. The cursor from the
// previous response is sent back as ?cursor= so the bridge can return only
// newer messages.
type HTTPSource struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client

	cursor string
}

func NewHTTPSource(rawURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{URL: rawURL, Timeout: timeout, Client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSource) Fetch(ctx context.Context) (Batch, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	u, err := url.Parse(s.URL)
	if err != nil {
		return Batch{}, fmt.Errorf("feed url: %w", err)
	}
	if s.cursor != "" {
		q := u.Query()
		q.Set("cursor", s.cursor)
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Batch{}, err
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Batch{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Batch{}, fmt.Errorf("feed status %d: %s", resp.StatusCode, string(b))
	}

	var out Batch
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&out); err != nil {
		return Batch{}, fmt.Errorf("decode feed: %w", err)
	}
	if out.NextCursor != "" {
		s.cursor = out.NextCursor
	}
	return out, nil
}
