package domain

import "strconv"

// ValidAmount is a non-negative 64-bit integer count, such as a number of
// cores or bytes attributed to a component.
type ValidAmount struct {
	value uint64
}

// ParseValidAmount validates raw (a signed integer so the "-1 rejected" case
// is expressible) and returns the corresponding ValidAmount.
func ParseValidAmount(raw int64) (ValidAmount, error) {
	if raw < 0 {
		return ValidAmount{}, newValidationError("amount", strconv.FormatInt(raw, 10), "must be >= 0")
	}
	return ValidAmount{value: uint64(raw)}, nil
}

// MustAmount parses raw and panics on failure. For literals only.
func MustAmount(raw int64) ValidAmount {
	a, err := ParseValidAmount(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// Uint64 returns the underlying value.
func (a ValidAmount) Uint64() uint64 { return a.value }

func (a ValidAmount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(a.value, 10)), nil
}

func (a *ValidAmount) UnmarshalJSON(data []byte) error {
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return newValidationError("amount", string(data), "must be an integer")
	}
	parsed, err := ParseValidAmount(n)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
