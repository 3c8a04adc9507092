package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/live_price_chart/internal/domain"
)

const sample = `[{"ticker":"TCS","timestamp":"2024-03-01 10:00:00","price":3900.5},{"ticker":"INFY","timestamp":"2024-03-01 10:00:00","price":"1500"}]`

func TestHTTPFeed_Fetch(t *testing.T) {
	var gotPath, gotCache string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCache = r.Header.Get("Cache-Control")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sample))
	}))
	defer srv.Close()

	f := NewHTTPFeed(srv.URL+"/Company-Jsons/{series}.json", time.Second)
	rows, err := f.Fetch(context.Background(), "TCS")
	require.NoError(t, err)

	assert.Equal(t, "/Company-Jsons/TCS.json", gotPath)
	assert.Equal(t, "no-store", gotCache)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.FeedValue("3900.5"), rows[0].Price)
	assert.Equal(t, "http", f.Name())
}

func TestHTTPFeed_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"Server error", http.StatusServiceUnavailable, "", "HTTP 503"},
		{"Not found", http.StatusNotFound, "", "HTTP 404"},
		{"Bad JSON", http.StatusOK, "{not json", "failed to decode feed"},
		{"Object instead of list", http.StatusOK, `{"ticker":"TCS"}`, "failed to decode feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPFeed(srv.URL, time.Second).Fetch(context.Background(), "TCS")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHTTPFeed_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewHTTPFeed(srv.URL, time.Minute).Fetch(ctx, "TCS")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileFeed_Fetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "TCS.json"), []byte(sample), 0o644))

	f := NewFileFeed(filepath.Join(dir, "{series}.json"))
	rows, err := f.Fetch(context.Background(), "TCS")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = f.Fetch(context.Background(), "INFY")
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, "TCS")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	f, err := New("http://localhost/{series}.json", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http", f.Name())

	f, err = New("", "data/{series}.json", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "file", f.Name())

	_, err = New("", "", time.Second)
	assert.Error(t, err)
}

func TestFileFeed_SkipsWronglyTypedRows(t *testing.T) {
	body := `[
		{"ticker":"TCS","timestamp":"2024-03-01 10:00:00","price":3900.5},
		{"ticker":"TCS","timestamp":true,"price":3901},
		{"ticker":"TCS","timestamp":"2024-03-01 10:01:00","price":{"x":1}},
		{"ticker":42,"timestamp":"2024-03-01 10:02:00","price":3902},
		{"ticker":"TCS","timestamp":"2024-03-01 10:03:00","price":"3903"}
	]`
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "TCS.json"), []byte(body), 0o644))

	rows, err := NewFileFeed(filepath.Join(dir, "{series}.json")).Fetch(context.Background(), "TCS")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, domain.FeedValue("3900.5"), rows[0].Price)
	assert.Empty(t, rows[1].Timestamp)
	assert.Empty(t, rows[2].Price)
	assert.Equal(t, domain.FeedValue("3903"), rows[3].Price)
}
