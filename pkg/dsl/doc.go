/*
Package dsl provides a Go DSL for programmatically constructing node graphs.

It lets developers define request and transform nodes with a fluent builder
instead of YAML, HCL or JSON files. The builder compiles to the same actions
the editor dispatches, so a built graph can be replayed into any store.

Example usage:

	b := dsl.New()

	b.Source("users").
		Get("https://jsonplaceholder.typicode.com/users").
		Select("id", "name", "address.city")

	b.Transform("cities").
		From("users").
		Lua(`local out = {} for i, u in ipairs(data) do out[i] = u.address.city end return out`)

	if err := b.Apply(ctx, store); err != nil {
		log.Fatal(err)
	}
*/
package dsl
