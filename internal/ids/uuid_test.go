package ids

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S1 UUIDv5 determinism.
func TestNewV5Determinism(t *testing.T) {
	ns := uuid.MustParse("d32b76b2-d083-45d3-ab8f-d4d76398318b")
	got := NewV5(ns, "hello world")
	assert.Equal(t, "ccc93e04-5a2a-5691-a386-71c99fa4dc48", got.String())
}

// S2 Mongo-id timestamp.
func TestForeignIDTimestamp(t *testing.T) {
	got, err := ForeignIDTimestamp("6390db9a9401bed7d6409dbb")
	require.NoError(t, err)
	want := time.Date(2022, 12, 7, 18, 29, 46, 0, time.UTC)
	assert.True(t, got.Equal(want), "got %v want %v", got, want)
}

// Property 3: decoding then re-encoding recovers the original prefix bytes.
func TestForeignIDTimestampRoundTrip(t *testing.T) {
	foreignID := "6390db9a9401bed7d6409dbb"
	ts, err := ForeignIDTimestamp(foreignID)
	require.NoError(t, err)

	encoded := EncodeForeignIDTimestamp(ts)
	want := foreignID[:8]
	got := hexEncode(encoded[:])
	assert.Equal(t, want, got)
}

func hexEncode(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0xf]
	}
	return string(out)
}

// S3 Roman decode.
func TestDecodeRoman(t *testing.T) {
	assert.Equal(t, 88, DecodeRoman("LXXXVIII"))
	assert.Equal(t, 4, DecodeRoman("IV"))
	assert.Equal(t, 1, DecodeRoman("Ia"))
}

// S4 Train-type mapping.
func TestTransportCategoryForTrainType(t *testing.T) {
	tests := []struct {
		trainType string
		want      TransportCategory
		wantErr   bool
	}{
		{"EIJ", CategoryNationalExpress, false},
		{"RP5", CategoryRegionalFast, false},
		{"ZG7", CategoryMaintenance, false},
		{"QQ9", "", true},
	}
	for _, tc := range tests {
		got, err := TransportCategoryForTrainType(tc.trainType)
		if tc.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
