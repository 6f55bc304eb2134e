package scoring

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric input that tolerates whatever a form posts. JSON numbers,
// numeric strings, null and garbage all decode without error; anything that is not a
// finite number decodes as absent and reads as 0. Grouping or decimal commas
// ("1,250", "1,5") are not numbers.
type Number struct {
	Value float64
	Valid bool
}

// Num builds a present Number.
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Float returns the value, or 0 when absent.
func (n Number) Float() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

// Positive reports whether the number is present and greater than zero.
func (n Number) Positive() bool {
	return n.Valid && n.Value > 0
}

// Ptr returns nil for an absent number.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// FromPtr is the inverse of Ptr.
func FromPtr(v *float64) Number {
	if v == nil {
		return Number{}
	}
	return Num(*v)
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = parseNumber(b)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func parseNumber(b []byte) Number {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return Number{}
	}
	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return Number{}
		}
		raw = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return Num(v)
}
