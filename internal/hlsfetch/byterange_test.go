package hlsfetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateByteRange(t *testing.T) {
	cases := []struct {
		name     string
		value    string
		fallback int64
		want     string
	}{
		{"explicit offset", "100@0", 999, "0-99"},
		{"carried offset", "200", 100, "100-299"},
		{"second explicit offset", "50@500", 0, "500-549"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := CalculateByteRange(c.value, c.fallback)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestCalculateByteRange_S3ByterangeCarry(t *testing.T) {
	// S3 — Byterange carry: "100@0", "200", "50@500" -> 0-99, 100-299, 500-549.
	values := []string{"100@0", "200", "50@500"}
	want := []string{"0-99", "100-299", "500-549"}

	var offset int64
	for i, v := range values {
		got, err := CalculateByteRange(v, offset)
		require.NoError(t, err)
		assert.Equal(t, want[i], got)

		end, err := RangeEnd(got)
		require.NoError(t, err)
		offset = end + 1
	}
}

func TestCalculateByteRange_Malformed(t *testing.T) {
	_, err := CalculateByteRange("not-a-number", 0)
	require.Error(t, err)
	var malformed *MalformedRangeError
	assert.ErrorAs(t, err, &malformed)
}

func TestCalculateByteRange_TooManyTokens(t *testing.T) {
	_, err := CalculateByteRange("1@2@3", 0)
	require.Error(t, err)
}
