package replication

import (
	"github.com/spf13/cast"
)

// Float64 coerces a decoded value to float64.
func Float64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

// Int coerces a decoded value to int.
func Int(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	i, err := cast.ToIntE(v)
	return i, err == nil
}

// String coerces a decoded value to string.
func String(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	return s, err == nil
}

// Bool coerces a decoded value to bool.
func Bool(v any) (bool, bool) {
	if v == nil {
		return false, false
	}
	b, err := cast.ToBoolE(v)
	return b, err == nil
}
