package projection_test

import (
	"testing"

	"github.com/aretw0/nodeflow/pkg/fieldpath"
	"github.com/aretw0/nodeflow/pkg/projection"
	"github.com/aretw0/nodeflow/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) value.Value {
	t.Helper()
	v, err := value.Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestProject(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		selections []string
		want       string
	}{
		{
			name:       "empty selection is identity",
			input:      `{"a": 1, "b": [1, 2]}`,
			selections: nil,
			want:       `{"a":1,"b":[1,2]}`,
		},
		{
			name:       "array broadcast",
			input:      `[{"a":1,"b":2},{"a":3,"b":4}]`,
			selections: []string{"a"},
			want:       `[{"a":1},{"a":3}]`,
		},
		{
			name:       "index selection precedence",
			input:      `[{"a":1,"b":2},{"a":3,"b":4}]`,
			selections: []string{"[0].a"},
			want:       `[{"a":1}]`,
		},
		{
			name:       "index order follows selections",
			input:      `["x","y","z"]`,
			selections: []string{"[2]", "[0]"},
			want:       `["z","x"]`,
		},
		{
			name:       "bare index filtered by field selections",
			input:      `[{"a":1,"b":2},{"a":3,"b":4}]`,
			selections: []string{"[1]", "b"},
			want:       `[{"b":4}]`,
		},
		{
			name:       "out of range index dropped",
			input:      `[{"a":1}]`,
			selections: []string{"[3]", "[0]"},
			want:       `[{"a":1}]`,
		},
		{
			name:       "object keeps whole subtree",
			input:      `{"items":[{"id":1},{"id":2}],"meta":"x"}`,
			selections: []string{"items"},
			want:       `{"items":[{"id":1},{"id":2}]}`,
		},
		{
			name:       "template path through nested array",
			input:      `{"items":[{"id":1,"n":"a"},{"id":2,"n":"b"}],"meta":"x"}`,
			selections: []string{"items.id"},
			want:       `{"items":[{"id":1},{"id":2}]}`,
		},
		{
			name:       "concrete path through nested array",
			input:      `{"items":[{"id":1,"n":"a"},{"id":2,"n":"b"}]}`,
			selections: []string{"items[1].n"},
			want:       `{"items":[{"n":"b"}]}`,
		},
		{
			name:       "output keeps source key order",
			input:      `{"z":1,"a":2,"m":3}`,
			selections: []string{"m", "z"},
			want:       `{"z":1,"m":3}`,
		},
		{
			name:       "whole key wins over deeper selection",
			input:      `{"o":{"a":1,"b":2}}`,
			selections: []string{"o.a", "o"},
			want:       `{"o":{"a":1,"b":2}}`,
		},
		{
			name:       "missing key yields nothing",
			input:      `{"a":1}`,
			selections: []string{"nope"},
			want:       `{}`,
		},
		{
			name:       "field on array of scalars leaves scalars",
			input:      `[1,2,3]`,
			selections: []string{"foo"},
			want:       `[1,2,3]`,
		},
		{
			name:       "index step against object matches nothing",
			input:      `{"a":1}`,
			selections: []string{"[0]"},
			want:       `{}`,
		},
		{
			name:       "invalid path selects nothing",
			input:      `{"a":1,"b":2}`,
			selections: []string{"a[", "b"},
			want:       `{"b":2}`,
		},
		{
			name:       "root path selects everything",
			input:      `{"a":1,"b":2}`,
			selections: []string{"", "a"},
			want:       `{"a":1,"b":2}`,
		},
		{
			name:       "scalar unchanged",
			input:      `"hello"`,
			selections: []string{"a.b"},
			want:       `"hello"`,
		},
		{
			name:       "duplicates collapse",
			input:      `[{"a":1}]`,
			selections: []string{"[0]", "[0]"},
			want:       `[{"a":1}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := projection.Project(mustParse(t, tt.input), tt.selections)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestProject_Idempotent(t *testing.T) {
	v := mustParse(t, `{"items":[{"id":1,"x":[1,2]},{"id":2}],"meta":{"a":1}}`)
	sel := []string{"items.id", "meta.a", "items[0].x[1]"}

	first := projection.Project(v, sel)
	second := projection.Project(v, sel)
	assert.True(t, value.Equal(first, second))
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	v := mustParse(t, `{"items":[{"id":1,"n":"a"}],"meta":"x"}`)
	before := v.String()

	_ = projection.Project(v, []string{"items.id"})
	assert.Equal(t, before, v.String())
}

func TestProjectPaths(t *testing.T) {
	v := mustParse(t, `{"a":{"b":1,"c":2}}`)
	got := projection.ProjectPaths(v, []fieldpath.Path{fieldpath.MustParse("a.c")})
	assert.Equal(t, `{"a":{"c":2}}`, got.String())
	assert.True(t, value.Equal(v, projection.ProjectPaths(v, nil)))
}
