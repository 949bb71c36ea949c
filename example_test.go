package nodeflow_test

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"

	"github.com/aretw0/nodeflow"
	"github.com/aretw0/nodeflow/pkg/dsl"
)

// ExampleNew wires a request node into a filter and runs both.
func ExampleNew() {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":1,"name":"ada","active":true},{"id":2,"name":"bob","active":false}]`)
	}))
	defer api.Close()

	ctx := context.Background()
	eng, err := nodeflow.New(ctx)
	if err != nil {
		log.Fatal(err)
	}

	b := dsl.New()
	b.Source("users").Get(api.URL + "/users").Select("id", "name", "active")
	b.Transform("active").FilterArray("active", "true").Select("name").From("users")
	if err := b.Apply(ctx, eng); err != nil {
		log.Fatal(err)
	}

	results, err := eng.RunPipeline(ctx, "active")
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range results {
		fmt.Println(r.NodeID, r.Success, r.Value)
	}
	fmt.Println(eng.ResolvedInputs("active")["users"])

	// Output:
	// users true [{"id":1,"name":"ada","active":true},{"id":2,"name":"bob","active":false}]
	// active true [{"id":1,"name":"ada","active":true}]
	// [{"id":1,"name":"ada","active":true},{"id":2,"name":"bob","active":false}]
}
