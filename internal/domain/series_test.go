package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRow_DecodesStringsAndNumbers(t *testing.T) {
	data := `[
		{"ticker":"TCS","exchange":"NSE","timestamp":"2024-03-01 10:00:00","price":"3900.5"},
		{"ticker":"TCS","timestamp":1709287200000,"price":3901.25},
		{"ticker":"TCS","timestamp":null,"price":null}
	]`

	var rows []RawRow
	require.NoError(t, json.Unmarshal([]byte(data), &rows))
	require.Len(t, rows, 3)

	assert.Equal(t, FeedValue("2024-03-01 10:00:00"), rows[0].Timestamp)
	assert.Equal(t, FeedValue("3900.5"), rows[0].Price)
	assert.Equal(t, "NSE", rows[0].Exchange)
	assert.Equal(t, FeedValue("1709287200000"), rows[1].Timestamp)
	assert.Equal(t, FeedValue("3901.25"), rows[1].Price)
	assert.Empty(t, rows[2].Timestamp)
	assert.Empty(t, rows[2].Price)
}

func TestRawRow_OtherKindsDecodeEmpty(t *testing.T) {
	data := `[
		{"ticker":"TCS","timestamp":true,"price":"3900"},
		{"ticker":"TCS","timestamp":"2024-03-01 10:00:00","price":{"v":1}},
		{"ticker":"TCS","timestamp":[1,2],"price":false}
	]`

	var rows []RawRow
	require.NoError(t, json.Unmarshal([]byte(data), &rows))
	require.Len(t, rows, 3)

	assert.Empty(t, rows[0].Timestamp)
	assert.Equal(t, FeedValue("3900"), rows[0].Price)
	assert.Equal(t, FeedValue("2024-03-01 10:00:00"), rows[1].Timestamp)
	assert.Empty(t, rows[1].Price)
	assert.Empty(t, rows[2].Timestamp)
	assert.Empty(t, rows[2].Price)
}

func TestSeriesState_CloneIsDeep(t *testing.T) {
	s := SeriesState{
		Points:      []Point{{TS: 1, Price: 2}},
		LastPlotted: &Cursor{TS: 1, Price: 2},
		ActiveRange: Range1H,
	}
	c := s.Clone()
	c.Points[0].Price = 99
	c.LastPlotted.TS = 99

	assert.Equal(t, 2.0, s.Points[0].Price)
	assert.Equal(t, int64(1), s.LastPlotted.TS)

	s.Reset()
	assert.Nil(t, s.Points)
	assert.Nil(t, s.LastPlotted)
	assert.Empty(t, s.ActiveRange)
}

func TestNewFrame(t *testing.T) {
	f := NewFrame("TCS", Range6H, RenderAppend, []Point{{TS: 1, Price: 10}, {TS: 2, Price: 11}}, 1)

	assert.Equal(t, []int64{1, 2}, f.Timestamps)
	assert.Equal(t, []float64{10, 11}, f.Values)
	assert.Equal(t, 1, f.Appended)
	assert.Len(t, f.Timestamps, len(f.Values))
}
