package utils

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDList(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []int64
		wantErr bool
	}{
		{name: "empty", raw: "", want: nil},
		{name: "zero means none", raw: "0", want: []int64{0}},
		{name: "spaces and blanks", raw: " 3, ,7 ,", want: []int64{3, 7}},
		{name: "duplicates keep first position", raw: "5,2,5,2", want: []int64{5, 2}},
		{name: "negative", raw: "1,-2", wantErr: true},
		{name: "not a number", raw: "1,two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDList(tt.raw)
			if tt.wantErr {
				var invalid *InvalidIDError
				require.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinIDs(t *testing.T) {
	assert.Equal(t, "", JoinIDs(nil))
	assert.Equal(t, "0,12,7", JoinIDs([]int64{0, 12, 7}))
}

func TestTimestampToMs(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return fixed }

	tests := []struct {
		name string
		in   any
		want int64
	}{
		{name: "seconds", in: float64(1714564800), want: 1714564800000},
		{name: "milliseconds", in: int64(1714564800123), want: 1714564800123},
		{name: "numeric string", in: "1714564800", want: 1714564800000},
		{name: "json number", in: json.Number("1714564800.5"), want: 1714564800500},
		{name: "garbage falls back to now", in: "yesterday", want: fixed.UnixMilli()},
		{name: "nil falls back to now", in: nil, want: fixed.UnixMilli()},
		{name: "infinity falls back to now", in: math.Inf(1), want: fixed.UnixMilli()},
		{name: "beyond int64 saturates high", in: 1e30, want: math.MaxInt64},
		{name: "beyond int64 saturates low", in: -1e30, want: math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimestampToMs(tt.in, now))
		})
	}
}

func TestNumberToMsSaturates(t *testing.T) {
	assert.Equal(t, int64(math.MaxInt64), NumberToMs(math.MaxFloat64))
	assert.Equal(t, int64(math.MinInt64), NumberToMs(-math.MaxFloat64))
	assert.Equal(t, int64(-1500), NumberToMs(-1.5))
}

func TestMsConversions(t *testing.T) {
	assert.Equal(t, int64(1), MsToUnixSeconds(1999))
	assert.Equal(t, int64(-1), MsToUnixSeconds(-1))
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), MsToTime(1714564800000))
}
