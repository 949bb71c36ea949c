package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/nodeflow"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstreamAPI is the remote service the source nodes call.
func upstreamAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[{"id":1,"tags":["a"]},{"id":2,"tags":["b","c"]}],"total":2}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAPI(t *testing.T, opts ...Option) (*nodeflow.Engine, http.Handler) {
	t.Helper()
	ctx := context.Background()
	eng, err := nodeflow.New(ctx)
	require.NoError(t, err)

	b := dsl.New()
	b.Source("items").Get(upstreamAPI(t).URL).Select("items")
	b.Transform("ids").FilterFields("items[].id").From("items")
	require.NoError(t, b.Apply(ctx, eng))

	return eng, NewHandler(eng, opts...)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func TestAPI_RunAndQuery(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/nodes/ids/pipeline", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pipe PipelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pipe))
	require.Len(t, pipe.Results, 2)
	assert.Empty(t, pipe.Error)
	assert.Equal(t, `{"items":[{"id":1},{"id":2}]}`, pipe.Results[1].Value.String())

	rec = do(t, h, http.MethodGet, "/nodes/ids/inputs", nil)
	assert.JSONEq(t, `{"items":{"items":[{"id":1,"tags":["a"]},{"id":2,"tags":["b","c"]}]}}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/nodes/ids/available-outputs", nil)
	assert.JSONEq(t, `{"items":["items"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/nodes/items/paths", nil)
	assert.JSONEq(t, `["items","items.id","items.tags","total"]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/nodes/items/paths?mode=concrete", nil)
	assert.Contains(t, rec.Body.String(), `"items[1].tags[1]"`)

	rec = do(t, h, http.MethodGet, "/nodes/ids/upstream", nil)
	assert.Contains(t, rec.Body.String(), `"id":"items"`)

	rec = do(t, h, http.MethodGet, "/nodes/items/result", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"statusCode":200`)

	rec = do(t, h, http.MethodGet, "/graph.mmd", nil)
	assert.Contains(t, rec.Body.String(), "items --> ids")
	assert.Contains(t, rec.Body.String(), "class ids ok;")
}

func TestAPI_Actions(t *testing.T) {
	eng, h := newTestAPI(t)
	before := eng.State().Revision

	env, err := domain.EncodeAction(domain.UpsertNodeConfiguration{
		NodeID: "ids",
		Patch:  domain.ConfigPatch{OutputFieldSelections: []string{"items", "items"}},
	})
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/actions", string(env))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Changed)
	assert.Equal(t, before+1, resp.Revision)

	cfg, _ := eng.NodeConfiguration("ids")
	assert.Equal(t, []string{"items"}, cfg.OutputFieldSelections)

	rec = do(t, h, http.MethodPost, "/actions", string(env))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Changed)

	rec = do(t, h, http.MethodPost, "/actions", `{"type":"EXPLODE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown action")
}

func TestAPI_CreateAndDeleteNodes(t *testing.T) {
	eng, h := newTestAPI(t, WithIDGenerator(func() string { return "fixed" }))

	rec := do(t, h, http.MethodPost, "/nodes", CreateNodeRequest{Kind: domain.NodeKindTransform, Operation: domain.OperationCustomCode, Label: "script"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/nodes/fixed", rec.Header().Get("Location"))

	cfg, ok := eng.NodeConfiguration("fixed")
	require.True(t, ok)
	assert.Equal(t, "script", cfg.Label)

	rec = do(t, h, http.MethodPost, "/nodes", CreateNodeRequest{Kind: "robot"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/nodes/fixed", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, eng.State().HasNode("fixed"))

	rec = do(t, h, http.MethodGet, "/nodes", nil)
	var nodes []domain.NodeConfiguration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
	require.Len(t, nodes, 2)
	assert.Equal(t, "ids", nodes[0].ID)
}

func TestAPI_Errors(t *testing.T) {
	eng, h := newTestAPI(t)

	rec := do(t, h, http.MethodGet, "/nodes/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/nodes/ids/result", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/nodes/nope/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	eng.Dispatch(context.Background(), domain.UpsertNodeConfiguration{
		NodeID: "items",
		Patch:  domain.ConfigPatch{Request: &domain.RequestSpec{Method: "GET"}},
	})
	rec = do(t, h, http.MethodPost, "/nodes/items/run", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Issues)
	assert.Equal(t, "URL is required", resp.Issues[0].Message)

	rec = do(t, h, http.MethodGet, "/nodes/items/errors", nil)
	assert.Contains(t, rec.Body.String(), "URL is required")
}

func TestAPI_HealthInfoCORS(t *testing.T) {
	_, h := newTestAPI(t, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "metrics")
	})))

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/info", nil)
	assert.Contains(t, rec.Body.String(), `"app":"nodeflow-http"`)

	rec = do(t, h, http.MethodOptions, "/actions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestSubscribeEvents(t *testing.T) {
	eng, h := newTestAPI(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?node=ids", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	// Not about "ids": filtered out.
	eng.Dispatch(ctx, domain.UpsertNodeConfiguration{NodeID: "items", Patch: domain.ConfigPatch{Label: ptr("remote")}})
	eng.Dispatch(ctx, domain.UpsertNodeConfiguration{NodeID: "ids", Patch: domain.ConfigPatch{Label: ptr("only ids")}})

	var data string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	require.NotEmpty(t, data)
	assert.Contains(t, data, `"changedNodes":["ids"]`)
}

func ptr[T any](v T) *T {
	return &v
}
