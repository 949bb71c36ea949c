package transform

import (
	"errors"
	"strconv"
	"strings"

	"github.com/aretw0/nodeflow/pkg/value"
)

// ErrNotArray is returned when filter_array receives anything but an array.
var ErrNotArray = errors.New("Data must be an array for array filtering")

// ErrNoFilterValue is returned when the single-field form has no value to match.
var ErrNoFilterValue = errors.New("filter value is required")

// defaultFilterField is matched when the single-field form leaves the field blank.
const defaultFilterField = "id"

type condition struct {
	field        string
	alternatives []value.Value
}

// FilterArray keeps the object elements of data that satisfy every condition.
// Within one condition the comma-separated values are alternatives. Elements
// that are not objects are dropped.
func FilterArray(data value.Value, p FilterArrayParams) (value.Value, error) {
	if data.Kind() != value.KindArray {
		return value.Value{}, ErrNotArray
	}

	var conds []condition
	if len(p.FilterFields) > 0 {
		for _, f := range p.FilterFields {
			field, raw := strings.TrimSpace(f.Field), strings.TrimSpace(f.Value)
			if field == "" || raw == "" {
				continue
			}
			if alts := ParseAlternatives(raw); len(alts) > 0 {
				conds = append(conds, condition{field: field, alternatives: alts})
			}
		}
	} else {
		field := strings.TrimSpace(p.FilterField)
		if field == "" {
			field = defaultFilterField
		}
		alts := ParseAlternatives(p.FilterValue)
		if len(alts) == 0 {
			return value.Value{}, ErrNoFilterValue
		}
		conds = append(conds, condition{field: field, alternatives: alts})
	}

	var kept []value.Value
	for _, item := range data.Items() {
		if item.Kind() != value.KindObject {
			continue
		}
		if matchesAll(item, conds) {
			kept = append(kept, item)
		}
	}
	return value.Array(kept...), nil
}

func matchesAll(item value.Value, conds []condition) bool {
	for _, c := range conds {
		got, _ := item.Get(c.field)
		if !matchesAny(got, c.alternatives) {
			return false
		}
	}
	return true
}

func matchesAny(got value.Value, alts []value.Value) bool {
	for _, want := range alts {
		if looselyEqual(got, want) {
			return true
		}
	}
	return false
}

// looselyEqual compares numbers by value so that 1 matches 1.0.
// A missing field reads as null.
func looselyEqual(a, b value.Value) bool {
	if a.Kind() == value.KindNumber && b.Kind() == value.KindNumber {
		x, okx := a.Float64()
		y, oky := b.Float64()
		return okx && oky && x == y
	}
	return value.Equal(a, b)
}

// ParseAlternatives splits a comma-separated filter value and coerces each part:
// true/false become booleans, null/none become null, numeric literals become
// numbers and anything else stays a string.
func ParseAlternatives(raw string) []value.Value {
	var out []value.Value
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, coerce(part))
	}
	return out
}

func coerce(s string) value.Value {
	switch strings.ToLower(s) {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	case "null", "none":
		return value.Null()
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return value.Float(f)
		}
		return value.String(s)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}
	return value.String(s)
}
