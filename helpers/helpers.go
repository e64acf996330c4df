package helpers

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders a float the way the venue prints numbers inside its
// checksum payloads: shortest round-trip form, decimal notation, switching
// to exponent notation below 1e-6 and from 1e21 up (e.g. "1.2e-7", "1e+21").
func FormatFloat(v float64) string {
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return trimExponentZeros(strconv.FormatFloat(v, 'e', -1, 64))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// trimExponentZeros rewrites "1.2e-07" as "1.2e-7"; the venue never
// zero-pads the exponent.
func trimExponentZeros(s string) string {
	i := strings.IndexByte(s, 'e')
	if i < 0 || i+2 >= len(s) {
		return s
	}

	mantissaAndSign, exp := s[:i+2], strings.TrimLeft(s[i+2:], "0")
	if exp == "" {
		exp = "0"
	}
	return mantissaAndSign + exp
}

// ToJsonString converts any value to JSON string.
func ToJsonString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
