package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Opt is a column value with presence tracking. Set reports whether the key
// was supplied at all; Null marks a supplied but empty value.
type Opt[T any] struct {
	Val  T
	Set  bool
	Null bool
}

// JSONText is a JSON document kept in its serialized form.
type JSONText string

func Some[T any](v T) Opt[T] {
	return Opt[T]{Val: v, Set: true}
}

func Null[T any]() Opt[T] {
	return Opt[T]{Set: true, Null: true}
}

// FromPtr maps nil to an explicit null.
func FromPtr[T any](p *T) Opt[T] {
	if p == nil {
		return Null[T]()
	}
	return Some(*p)
}

func (o Opt[T]) Get() (T, bool) {
	return o.Val, o.Set && !o.Null
}

func (o Opt[T]) Ptr() *T {
	if !o.Set || o.Null {
		return nil
	}
	v := o.Val
	return &v
}

func (o Opt[T]) Present() bool { return o.Set }

// SQLValue is what gets bound as a query argument.
func (o Opt[T]) SQLValue() any {
	if !o.Set || o.Null {
		return nil
	}
	if j, ok := any(o.Val).(JSONText); ok {
		return string(j)
	}
	return o.Val
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	if j, ok := any(o.Val).(JSONText); ok {
		if j == "" {
			return []byte("null"), nil
		}
		return []byte(j), nil
	}
	return json.Marshal(o.Val)
}

// UnmarshalJSON decodes leniently: upstream mixes numbers and numeric strings
// and uses placeholders like "-" for missing figures.
func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	var zero T
	o.Val = zero
	o.Set = true
	o.Null = false

	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		o.Null = true
		return nil
	}

	switch p := any(&o.Val).(type) {
	case *float64:
		f, ok := lenientFloat(raw)
		if !ok {
			o.Null = true
			return nil
		}
		*p = f
	case *int64:
		f, ok := lenientFloat(raw)
		if !ok {
			o.Null = true
			return nil
		}
		*p = int64(f)
	case *string:
		*p = strings.TrimSpace(lenientString(raw))
	case *JSONText:
		*p = JSONText(raw)
	case *bool:
		switch strings.Trim(string(raw), `"`) {
		case "true", "1", "Y", "y":
			*p = true
		case "false", "0", "N", "n", "":
			*p = false
		default:
			o.Null = true
		}
	default:
		return json.Unmarshal(raw, &o.Val)
	}
	return nil
}

func lenientFloat(raw []byte) (float64, bool) {
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func lenientString(raw []byte) string {
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
