package fieldpath

import (
	"strconv"

	"github.com/aretw0/nodeflow/pkg/value"
)

// Mode selects how Enumerate treats arrays.
type Mode int

const (
	// ModeTemplate walks only the first element of each array and omits the index,
	// producing paths that broadcast over every element.
	ModeTemplate Mode = iota
	// ModeConcrete lists every array element with its literal index.
	ModeConcrete
)

// ParseMode maps "template" / "concrete" to a Mode. Unknown strings yield ModeTemplate.
func ParseMode(s string) Mode {
	if s == "concrete" {
		return ModeConcrete
	}
	return ModeTemplate
}

// Lookup resolves p against v. Missing keys, out of range indices and steps
// past a scalar all report false.
func Lookup(v value.Value, p Path) (value.Value, bool) {
	cur := v
	for _, s := range p {
		var ok bool
		if s.IsIndex {
			cur, ok = cur.Index(s.Index)
		} else {
			cur, ok = cur.Get(s.Key)
		}
		if !ok {
			return value.Value{}, false
		}
	}
	return cur, true
}

// Enumerate lists every selectable path of v in depth-first order.
// The root itself is not listed.
func Enumerate(v value.Value, mode Mode) []string {
	var out []string
	seen := make(map[string]bool)
	enumerate(v, "", mode, &out, seen)
	return out
}

func enumerate(v value.Value, prefix string, mode Mode, out *[]string, seen map[string]bool) {
	emit := func(p string) {
		if !seen[p] {
			seen[p] = true
			*out = append(*out, p)
		}
	}

	switch v.Kind() {
	case value.KindObject:
		for _, m := range v.Members() {
			p := joinKey(prefix, m.Key)
			emit(p)
			enumerate(m.Value, p, mode, out, seen)
		}
	case value.KindArray:
		if mode == ModeTemplate {
			if first, ok := v.Index(0); ok {
				enumerate(first, prefix, mode, out, seen)
			}
			return
		}
		for i, item := range v.Items() {
			p := prefix + "[" + strconv.Itoa(i) + "]"
			emit(p)
			enumerate(item, p, mode, out, seen)
		}
	}
}

// joinKey always treats name as a key, even when it looks numeric.
func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
