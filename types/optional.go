package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// OptInt is a non-negative integer field that may be left blank by the operator.
type OptInt struct {
	Value int
	Set   bool
}

// Int returns a set OptInt. Negative values clamp to zero.
func Int(n int) OptInt {
	if n < 0 {
		n = 0
	}
	return OptInt{Value: n, Set: true}
}

// Blank is the unset value.
var Blank = OptInt{}

// OrZero returns the value, or 0 when blank.
func (o OptInt) OrZero() int {
	if !o.Set {
		return 0
	}
	return o.Value
}

func (o OptInt) String() string {
	if !o.Set {
		return ""
	}
	return strconv.Itoa(o.Value)
}

// Ptr is used by the document stores, which represent blank as null.
func (o OptInt) Ptr() *int {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

// FromPtr is the inverse of Ptr.
func FromPtr(p *int) OptInt {
	if p == nil {
		return Blank
	}
	return Int(*p)
}

// CoerceInt keeps only the digits of raw and parses them. Input with no digits
// becomes blank. clean is false when characters had to be dropped, which callers
// report as a ValidationWarning.
func CoerceInt(raw string) (v OptInt, clean bool) {
	trimmed := strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	clean = len(digits) == len(trimmed)
	if digits == "" {
		return Blank, clean
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return Blank, false
	}
	return Int(n), clean
}

func (o OptInt) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(o.Value)), nil
}

// UnmarshalJSON accepts null, a number, or a string holding digits. Anything
// else decodes as blank rather than failing the whole document.
func (o *OptInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = Blank
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*o = Blank
			return nil
		}
		*o, _ = CoerceInt(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*o = Blank
		return nil
	}
	*o = Int(int(f))
	return nil
}
