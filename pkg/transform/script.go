package transform

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/value"
	lua "github.com/yuin/gopher-lua"
)

// maxTableDepth guards conversion of self-referencing tables.
const maxTableDepth = 64

// RunScript runs a custom_code chunk with the input bound to the global "data"
// and converts the chunk's first return value back into a value. A blank chunk
// runs the default script. Only the base, table, string and math libraries are
// loaded. Cancelling ctx aborts the script.
func RunScript(ctx context.Context, code string, data value.Value) (value.Value, error) {
	if strings.TrimSpace(code) == "" {
		code = domain.DefaultCustomCode
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return value.Value{}, fmt.Errorf("failed to open lua library %s: %w", lib.name, err)
		}
	}

	L.SetGlobal("data", toLua(L, data))

	fn, err := L.LoadString(code)
	if err != nil {
		return value.Value{}, fmt.Errorf("failed to compile script: %w", err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return value.Value{}, fmt.Errorf("script aborted: %w", ctxErr)
		}
		return value.Value{}, fmt.Errorf("script failed: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	out, err := fromLua(ret, 0)
	if err != nil {
		return value.Value{}, fmt.Errorf("failed to convert script result: %w", err)
	}
	return out, nil
}

func toLua(L *lua.LState, v value.Value) lua.LValue {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.AsBool()
		return lua.LBool(b)
	case value.KindNumber:
		f, _ := v.Float64()
		return lua.LNumber(f)
	case value.KindString:
		s, _ := v.AsString()
		return lua.LString(s)
	case value.KindArray:
		t := L.NewTable()
		for i, item := range v.Items() {
			t.RawSetInt(i+1, toLua(L, item))
		}
		return t
	case value.KindObject:
		t := L.NewTable()
		for _, m := range v.Members() {
			t.RawSetString(m.Key, toLua(L, m.Value))
		}
		return t
	}
	return lua.LNil
}

// fromLua converts a Lua value. Tables whose keys are exactly 1..n become
// arrays, an empty table becomes an empty array, and any other table becomes
// an object with sorted keys.
func fromLua(lv lua.LValue, depth int) (value.Value, error) {
	if depth > maxTableDepth {
		return value.Value{}, fmt.Errorf("table nesting exceeds %d levels", maxTableDepth)
	}
	switch t := lv.(type) {
	case *lua.LNilType:
		return value.Null(), nil
	case lua.LBool:
		return value.Bool(bool(t)), nil
	case lua.LNumber:
		f := float64(t)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return value.Int(int64(f)), nil
		}
		return value.Float(f), nil
	case lua.LString:
		return value.String(string(t)), nil
	case *lua.LTable:
		return tableToValue(t, depth)
	}
	return value.Value{}, fmt.Errorf("unsupported lua type %s", lv.Type().String())
}

func tableToValue(t *lua.LTable, depth int) (value.Value, error) {
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n := t.MaxN(); n == count {
		items := make([]value.Value, 0, n)
		for i := 1; i <= n; i++ {
			item, err := fromLua(t.RawGetInt(i), depth+1)
			if err != nil {
				return value.Value{}, fmt.Errorf("[%d]: %w", i-1, err)
			}
			items = append(items, item)
		}
		return value.Array(items...), nil
	}

	fields := make(map[string]lua.LValue, count)
	var badKey error
	t.ForEach(func(k, v lua.LValue) {
		switch k.(type) {
		case lua.LString, lua.LNumber:
			fields[k.String()] = v
		default:
			if badKey == nil {
				badKey = fmt.Errorf("unsupported table key of type %s", k.Type().String())
			}
		}
	})
	if badKey != nil {
		return value.Value{}, badKey
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	members := make([]value.Member, 0, len(keys))
	for _, k := range keys {
		v, err := fromLua(fields[k], depth+1)
		if err != nil {
			return value.Value{}, fmt.Errorf("%s: %w", k, err)
		}
		members = append(members, value.Member{Key: k, Value: v})
	}
	return value.Object(members...), nil
}
