package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/nodeflow/pkg/domain"
)

func sourceNode(method, url string) domain.NodeConfiguration {
	return domain.NewSourceConfiguration("src", &domain.RequestSpec{Method: method, URL: url})
}

func TestAllowHostsMiddleware(t *testing.T) {
	interceptor := AllowHostsMiddleware("api.example.com", ".internal.test")

	tests := []struct {
		name    string
		cfg     domain.NodeConfiguration
		allowed bool
	}{
		{"Exact Host", sourceNode("GET", "https://api.example.com/users"), true},
		{"Host Case", sourceNode("GET", "https://API.example.com/users"), true},
		{"Subdomain", sourceNode("GET", "http://svc.internal.test:8080/x"), true},
		{"Other Host", sourceNode("GET", "https://evil.example.org/"), false},
		{"Transform", domain.NewTransformConfiguration("t", domain.OperationFilterFields), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, reason, err := interceptor(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("Middleware error: %v", err)
			}
			if allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v (reason %q)", allowed, tt.allowed, reason)
			}
			if !allowed && reason == "" {
				t.Error("Expected a reason for refusal")
			}
		})
	}
}

func TestReadOnlyMiddleware(t *testing.T) {
	interceptor := ReadOnlyMiddleware()

	for _, m := range []string{"GET", "get", "HEAD", ""} {
		if allowed, _, _ := interceptor(context.Background(), sourceNode(m, "http://x")); !allowed {
			t.Errorf("Expected %q to be allowed", m)
		}
	}
	for _, m := range []string{"POST", "DELETE", "patch"} {
		if allowed, _, _ := interceptor(context.Background(), sourceNode(m, "http://x")); allowed {
			t.Errorf("Expected %q to be refused", m)
		}
	}
}

func TestMultiInterceptor(t *testing.T) {
	calls := 0
	counting := func(ctx context.Context, cfg domain.NodeConfiguration) (bool, string, error) {
		calls++
		return true, "", nil
	}

	chain := MultiInterceptor(counting, ReadOnlyMiddleware(), counting)
	allowed, reason, err := chain(context.Background(), sourceNode("DELETE", "http://x"))
	if err != nil || allowed {
		t.Fatalf("Expected refusal, got allowed=%v err=%v", allowed, err)
	}
	if reason == "" {
		t.Error("Expected refusal reason to propagate")
	}
	if calls != 1 {
		t.Errorf("Expected chain to stop at first refusal, got %d calls", calls)
	}

	boom := errors.New("boom")
	failing := func(ctx context.Context, cfg domain.NodeConfiguration) (bool, string, error) {
		return true, "", boom
	}
	if _, _, err := MultiInterceptor(failing)(context.Background(), sourceNode("GET", "http://x")); !errors.Is(err, boom) {
		t.Errorf("Expected system error to propagate, got %v", err)
	}

	if allowed, _, _ := MultiInterceptor()(context.Background(), sourceNode("POST", "http://x")); !allowed {
		t.Error("Empty chain should allow")
	}
}
