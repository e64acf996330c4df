package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"Zero", 0, "0"},
		{"Integer", 10000, "10000"},
		{"Fraction", 1.5, "1.5"},
		{"NegativeFraction", -2.5, "-2.5"},
		{"ShortestRoundTrip", 0.1, "0.1"},
		{"SmallestDecimal", 0.000001, "0.000001"},
		{"ExponentBelowMicro", 0.00000012, "1.2e-7"},
		{"ExponentTiny", 1e-7, "1e-7"},
		{"NegativeExponent", -1.5e-8, "-1.5e-8"},
		{"ExponentLarge", 1e21, "1e+21"},
		{"LargeDecimal", 123456789012345680000, "123456789012345680000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFloat(tt.in))
		})
	}
}
