// Package fieldpath parses and builds the dot/bracket paths used to address
// values inside a JSON-like tree, e.g. "items[0].id".
package fieldpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned when a path string cannot be parsed.
var ErrInvalidPath = errors.New("invalid path")

// Step is one element of a path: an object key or an array index.
type Step struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key returns a key step.
func Key(name string) Step { return Step{Key: name} }

// Index returns an index step.
func Index(i int) Step { return Step{Index: i, IsIndex: true} }

func (s Step) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Path is a sequence of steps. The empty path addresses the root value.
type Path []Step

func (p Path) String() string { return Build(p) }

// Parse splits a path on '.' and '[n]'. Empty key segments are skipped.
func Parse(path string) (Path, error) {
	steps := Path{}
	var key strings.Builder

	flush := func() {
		if key.Len() > 0 {
			steps = append(steps, Key(key.String()))
			key.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i+1:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated bracket in %q", ErrInvalidPath, path)
			}
			raw := path[i+1 : i+1+end]
			if !isDigits(raw) {
				return nil, fmt.Errorf("%w: index %q is not a non-negative integer in %q", ErrInvalidPath, raw, path)
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: index %q out of range in %q", ErrInvalidPath, raw, path)
			}
			steps = append(steps, Index(n))
			i += end + 1
		case ']':
			return nil, fmt.Errorf("%w: unexpected ']' in %q", ErrInvalidPath, path)
		default:
			key.WriteByte(c)
		}
	}
	flush()

	return steps, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(path string) Path {
	p, err := Parse(path)
	if err != nil {
		panic(err)
	}
	return p
}

// Build renders steps back to a path string. Index steps render as "[n]",
// key steps as ".name" (without the dot when first).
func Build(steps Path) string {
	var sb strings.Builder
	for i, s := range steps {
		if s.IsIndex {
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(s.Index))
			sb.WriteByte(']')
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.Key)
	}
	return sb.String()
}

// Join appends a single step to prefix, using bracket syntax when step is numeric.
func Join(prefix, step string) string {
	if isDigits(step) {
		return prefix + "[" + step + "]"
	}
	if prefix == "" {
		return step
	}
	return prefix + "." + step
}

// Template strips index steps so the path applies to every array element.
func Template(p Path) Path {
	out := make(Path, 0, len(p))
	for _, s := range p {
		if !s.IsIndex {
			out = append(out, s)
		}
	}
	return out
}

// Equal reports whether two paths have the same steps.
func Equal(a, b Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
