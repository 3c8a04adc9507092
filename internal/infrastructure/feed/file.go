package feed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vitos/live_price_chart/internal/domain"
)

// FileFeed re-reads a local JSON snapshot on every cycle.
type FileFeed struct {
	path string
}

func NewFileFeed(path string) *FileFeed {
	return &FileFeed{path: path}
}

func (f *FileFeed) Name() string { return "file" }

func (f *FileFeed) Fetch(ctx context.Context, series string) ([]domain.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(strings.ReplaceAll(f.path, SeriesPlaceholder, series))
	if err != nil {
		return nil, err
	}
	return decodeRows(body)
}

// New picks the HTTP feed when url is set and the file feed otherwise.
func New(url, path string, timeout time.Duration) (domain.FeedSource, error) {
	switch {
	case url != "":
		return NewHTTPFeed(url, timeout), nil
	case path != "":
		return NewFileFeed(path), nil
	default:
		return nil, fmt.Errorf("no feed configured")
	}
}
