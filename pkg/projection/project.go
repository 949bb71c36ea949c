// Package projection extracts the parts of a value tree addressed by a set of
// field paths, keeping the original structure.
//
// Arrays branch on the shape of the selections: literal index steps pick
// elements, any other step is applied to every element. Objects branch on the
// keys of the value. Selecting "id" on a list of objects therefore keeps the
// "id" of every element, while "[0].id" keeps only the first.
package projection

import (
	"github.com/aretw0/nodeflow/pkg/fieldpath"
	"github.com/aretw0/nodeflow/pkg/value"
)

// Project returns the minimal tree of v containing the selected paths.
// An empty selection returns v unchanged. Paths that fail to parse select nothing.
func Project(v value.Value, selections []string) value.Value {
	if len(selections) == 0 {
		return v
	}

	paths := make([]fieldpath.Path, 0, len(selections))
	seen := make(map[string]bool, len(selections))
	for _, s := range selections {
		if seen[s] {
			continue
		}
		seen[s] = true
		p, err := fieldpath.Parse(s)
		if err != nil {
			continue
		}
		paths = append(paths, p)
	}
	return project(v, paths)
}

// ProjectPaths is Project over already parsed paths.
func ProjectPaths(v value.Value, paths []fieldpath.Path) value.Value {
	if len(paths) == 0 {
		return v
	}
	return project(v, paths)
}

func project(v value.Value, paths []fieldpath.Path) value.Value {
	for _, p := range paths {
		if len(p) == 0 {
			return v
		}
	}

	switch v.Kind() {
	case value.KindArray:
		return projectArray(v, paths)
	case value.KindObject:
		return projectObject(v, paths)
	default:
		return v
	}
}

func projectArray(v value.Value, paths []fieldpath.Path) value.Value {
	var (
		order    []int
		byIndex  = make(map[int][]fieldpath.Path)
		hasIndex = make(map[int]bool)
		fields   []fieldpath.Path
	)
	for _, p := range paths {
		head := p[0]
		if !head.IsIndex {
			fields = append(fields, p)
			continue
		}
		if !hasIndex[head.Index] {
			hasIndex[head.Index] = true
			order = append(order, head.Index)
		}
		if rest := p[1:]; len(rest) > 0 {
			byIndex[head.Index] = append(byIndex[head.Index], rest)
		}
	}

	if len(order) > 0 {
		out := make([]value.Value, 0, len(order))
		for _, idx := range order {
			item, ok := v.Index(idx)
			if !ok {
				continue
			}
			sub := append(append([]fieldpath.Path{}, byIndex[idx]...), fields...)
			if len(sub) == 0 {
				out = append(out, item)
				continue
			}
			out = append(out, project(item, sub))
		}
		return value.Array(out...)
	}

	if len(fields) > 0 {
		items := v.Items()
		out := make([]value.Value, len(items))
		for i, item := range items {
			out[i] = project(item, fields)
		}
		return value.Array(out...)
	}

	return v
}

func projectObject(v value.Value, paths []fieldpath.Path) value.Value {
	byKey := make(map[string][]fieldpath.Path)
	whole := make(map[string]bool)
	for _, p := range paths {
		head := p[0]
		if head.IsIndex {
			continue
		}
		if _, ok := v.Get(head.Key); !ok {
			continue
		}
		rest := p[1:]
		if len(rest) == 0 {
			whole[head.Key] = true
			continue
		}
		byKey[head.Key] = append(byKey[head.Key], rest)
	}

	var members []value.Member
	for _, m := range v.Members() {
		switch {
		case whole[m.Key]:
			members = append(members, m)
		case len(byKey[m.Key]) > 0:
			members = append(members, value.Member{Key: m.Key, Value: project(m.Value, byKey[m.Key])})
		}
	}
	return value.Object(members...)
}
