package playerstate

import (
	"fmt"
	"maps"
	"math"
)

// Tag is the opaque per-state save payload. Values must be YAML and JSON serializable;
// numbers may come back as int, uint64 or float64 depending on the codec, so use the
// typed getters rather than direct type assertions.
type Tag map[string]any

// Clone returns a shallow copy.
func (t Tag) Clone() Tag {
	if t == nil {
		return nil
	}
	return maps.Clone(t)
}

// Has reports whether key is present.
func (t Tag) Has(key string) bool {
	_, ok := t[key]
	return ok
}

func (t Tag) get(key string) (any, error) {
	v, ok := t[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTagMissing, key)
	}
	return v, nil
}

// String returns a string value.
func (t Tag) String(key string) (string, error) {
	v, err := t.get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T", ErrTagType, key, v)
	}
	return s, nil
}

// Bool returns a boolean value.
func (t Tag) Bool(key string) (bool, error) {
	v, err := t.get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q is %T", ErrTagType, key, v)
	}
	return b, nil
}

// Int returns an integral value of any numeric representation.
func (t Tag) Int(key string) (int64, error) {
	v, err := t.get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %q overflows int64", ErrTagType, key)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %q is not integral", ErrTagType, key)
		}
		return int64(n), nil
	case float32:
		if float64(n) != math.Trunc(float64(n)) {
			return 0, fmt.Errorf("%w: %q is not integral", ErrTagType, key)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: %q is %T", ErrTagType, key, v)
	}
}

// Uint32 returns an integral value in the uint32 range.
func (t Tag) Uint32(key string) (uint32, error) {
	n, err := t.Int(key)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %q out of uint32 range", ErrTagType, key)
	}
	return uint32(n), nil
}

// Float returns a numeric value as float64.
func (t Tag) Float(key string) (float64, error) {
	v, err := t.get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	}
	i, err := t.Int(key)
	if err != nil {
		return 0, err
	}
	return float64(i), nil
}

// Sub returns a nested tag.
func (t Tag) Sub(key string) (Tag, error) {
	v, err := t.get(key)
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case Tag:
		return m, nil
	case map[string]any:
		return Tag(m), nil
	default:
		return nil, fmt.Errorf("%w: %q is %T", ErrTagType, key, v)
	}
}
