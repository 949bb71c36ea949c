package fieldpath_test

import (
	"math/rand"
	"testing"

	"github.com/aretw0/nodeflow/pkg/fieldpath"
	"github.com/aretw0/nodeflow/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want fieldpath.Path
	}{
		{"root", "", fieldpath.Path{}},
		{"single key", "items", fieldpath.Path{fieldpath.Key("items")}},
		{"nested keys", "a.b.c", fieldpath.Path{fieldpath.Key("a"), fieldpath.Key("b"), fieldpath.Key("c")}},
		{"concrete", "items[0].id", fieldpath.Path{fieldpath.Key("items"), fieldpath.Index(0), fieldpath.Key("id")}},
		{"leading index", "[2].a", fieldpath.Path{fieldpath.Index(2), fieldpath.Key("a")}},
		{"nested indices", "m[1][12]", fieldpath.Path{fieldpath.Key("m"), fieldpath.Index(1), fieldpath.Index(12)}},
		{"empty segments skipped", ".a..b", fieldpath.Path{fieldpath.Key("a"), fieldpath.Key("b")}},
		{"dot after bracket", "a[0].b", fieldpath.Path{fieldpath.Key("a"), fieldpath.Index(0), fieldpath.Key("b")}},
		{"numeric key stays key", "a.0", fieldpath.Path{fieldpath.Key("a"), fieldpath.Key("0")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fieldpath.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"a[0", "a[", "a[x]", "a[-1]", "a[]", "a]b", "[1.5]"} {
		_, err := fieldpath.Parse(in)
		assert.ErrorIs(t, err, fieldpath.ErrInvalidPath, "input %q", in)
	}
}

func TestBuild(t *testing.T) {
	assert.Equal(t, "", fieldpath.Build(nil))
	assert.Equal(t, "items[0].id", fieldpath.Build(fieldpath.Path{fieldpath.Key("items"), fieldpath.Index(0), fieldpath.Key("id")}))
	assert.Equal(t, "[0].a", fieldpath.Build(fieldpath.Path{fieldpath.Index(0), fieldpath.Key("a")}))
	assert.Equal(t, "a.b", fieldpath.MustParse("a.b").String())
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "items", fieldpath.Join("", "items"))
	assert.Equal(t, "[0]", fieldpath.Join("", "0"))
	assert.Equal(t, "items[3]", fieldpath.Join("items", "3"))
	assert.Equal(t, "items[3].id", fieldpath.Join("items[3]", "id"))
}

func TestRoundTrip_Generated(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := "abcdefghijklmnopqrstuvwxyz_-0123456789"

	for i := 0; i < 500; i++ {
		n := rng.Intn(6)
		steps := fieldpath.Path{}
		for j := 0; j < n; j++ {
			if rng.Intn(3) == 0 {
				steps = append(steps, fieldpath.Index(rng.Intn(1000)))
				continue
			}
			k := make([]byte, 1+rng.Intn(6))
			for x := range k {
				k[x] = alphabet[rng.Intn(len(alphabet))]
			}
			steps = append(steps, fieldpath.Key(string(k)))
		}

		parsed, err := fieldpath.Parse(fieldpath.Build(steps))
		require.NoError(t, err)
		assert.True(t, fieldpath.Equal(steps, parsed), "round trip of %q gave %q", fieldpath.Build(steps), parsed)
	}
}

func TestTemplate(t *testing.T) {
	assert.Equal(t, "items.id", fieldpath.Template(fieldpath.MustParse("items[0].id")).String())
	assert.Equal(t, "", fieldpath.Template(fieldpath.MustParse("[0][1]")).String())
}

func TestLookup(t *testing.T) {
	v, err := value.Parse([]byte(`{"items": [{"id": 1}, {"id": 2}], "meta": "x"}`))
	require.NoError(t, err)

	got, ok := fieldpath.Lookup(v, fieldpath.MustParse("items[1].id"))
	require.True(t, ok)
	assert.Equal(t, "2", got.String())

	got, ok = fieldpath.Lookup(v, fieldpath.Path{})
	require.True(t, ok)
	assert.True(t, value.Equal(v, got))

	_, ok = fieldpath.Lookup(v, fieldpath.MustParse("items[5].id"))
	assert.False(t, ok)
	_, ok = fieldpath.Lookup(v, fieldpath.MustParse("meta.deeper"))
	assert.False(t, ok)
}

func TestEnumerate(t *testing.T) {
	v, err := value.Parse([]byte(`{"items": [{"id": 1, "tags": ["a"]}, {"id": 2, "extra": true}], "meta": "x"}`))
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"items", "items.id", "items.tags", "meta"},
		fieldpath.Enumerate(v, fieldpath.ModeTemplate),
	)
	assert.Equal(t,
		[]string{
			"items",
			"items[0]", "items[0].id", "items[0].tags", "items[0].tags[0]",
			"items[1]", "items[1].id", "items[1].extra",
			"meta",
		},
		fieldpath.Enumerate(v, fieldpath.ModeConcrete),
	)
	assert.Empty(t, fieldpath.Enumerate(value.String("scalar"), fieldpath.ModeTemplate))
	assert.Equal(t, fieldpath.ModeConcrete, fieldpath.ParseMode("concrete"))
	assert.Equal(t, fieldpath.ModeTemplate, fieldpath.ParseMode("whatever"))
}
