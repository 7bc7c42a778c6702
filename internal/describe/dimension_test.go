package describe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDimension(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"0.25", 0.25},
		{".25", 0.25},
		{"3/8", 0.375},
		{"1/2", 0.5},
		{"1-1/2", 1.5},
		{"2-3/4", 2.75},
		{" 1/4 ", 0.25},
		{"3", 3.0},
	}
	for _, c := range cases {
		got, err := ParseDimension(c.in)
		require.NoError(t, err, c.in)
		assert.InDelta(t, c.want, got, 1e-9, c.in)
	}
}

func TestParseDimensionErrors(t *testing.T) {
	for _, in := range []string{"", "abc", "1/0", "1//2", "-1/2"} {
		_, err := ParseDimension(in)
		assert.Error(t, err, in)
	}
}

func TestConeHeight(t *testing.T) {
	// 90 degree included angle resolves to the 45 degree half-angle:
	// height equals the radius.
	assert.InDelta(t, 0.25, ConeHeight(90, 0.5), 1e-9)
	// 60 degree included angle uses the 60 degree complement.
	assert.InDelta(t, 0.4330, ConeHeight(60, 0.5), 1e-4)
}
