package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/value"
)

func TestReport(t *testing.T) {
	s := domain.NewState()
	users := domain.NewSourceConfiguration("users", &domain.RequestSpec{URL: "https://api.test/users"})
	users.OutputFieldSelections = []string{"id"}
	names := domain.NewTransformConfiguration("names", domain.OperationCustomCode)
	broken := domain.NewSourceConfiguration("broken", nil)
	s.Configurations = map[string]domain.NodeConfiguration{"users": users, "names": names, "broken": broken}
	s.Connections = []domain.Connection{{SourceNodeID: "users", TargetNodeID: "names"}}

	v, err := value.Parse([]byte(`[{"id":1},{"id":2}]`))
	if err != nil {
		t.Fatal(err)
	}
	s.TestResults["users"] = domain.TestResult{NodeID: "users", RunID: 3, Success: true, StatusCode: 200, Value: v}
	s.TestResults["names"] = domain.TestResult{NodeID: "names", Error: "script failed", ErrorType: "script_error"}
	s.ValidationErrors["broken"] = []domain.ValidationError{{Field: "url", Message: "URL is required", Severity: domain.SeverityError}}

	got := Report("demo", s)
	for _, want := range []string{
		"# demo",
		"3 nodes, 1 connections",
		"- **request**: `GET https://api.test/users`",
		"- **selected**: `id`",
		"- **upstream**: users",
		"| error | url | URL is required |",
		"> **ok** run 3, HTTP 200",
		"Available paths: `id`",
		`[{"id":1},{"id":2}]`,
		"> **failed** (script_error): script failed",
		"_not run yet_",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Report() missing %q in:\n%s", want, got)
		}
	}
	if strings.Index(got, "## broken") > strings.Index(got, "## names") {
		t.Error("nodes should be sorted by id")
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, " 1.2.3\n")
	if !strings.Contains(buf.String(), "1.2.3") {
		t.Errorf("banner missing version: %q", buf.String())
	}
	if Status(&buf, true) == Status(&buf, false) {
		t.Error("status markers should differ")
	}
}
