package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitos/live_price_chart/internal/domain"
)

// SeriesPlaceholder is replaced by the series identifier in feed URLs and paths.
const SeriesPlaceholder = "{series}"

type HTTPFeed struct {
	url    string
	client *http.Client
}

// NewHTTPFeed polls a JSON array of rows. A zero timeout falls back to 10s;
// the per-cycle context deadline still applies on top of it.
func NewHTTPFeed(rawURL string, timeout time.Duration) *HTTPFeed {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFeed{
		url:    rawURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFeed) Name() string { return "http" }

func (f *HTTPFeed) Fetch(ctx context.Context, series string) ([]domain.RawRow, error) {
	target := strings.ReplaceAll(f.url, SeriesPlaceholder, url.PathEscape(series))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return decodeRows(body)
}

// decodeRows fails only when the body is not a JSON array.
// A row that does not decode is skipped.
func decodeRows(body []byte) ([]domain.RawRow, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	rows := make([]domain.RawRow, 0, len(raw))
	for _, r := range raw {
		var row domain.RawRow
		if err := json.Unmarshal(r, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
