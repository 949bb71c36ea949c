// Package request executes source nodes as HTTP requests.
//
// Upstream inputs flow into the request in two ways. A path or query parameter
// whose value is exactly "{sourceId}" takes the input of that upstream node
// when it is a string or a number. For methods that carry a body, the inputs
// are merged into the JSON body object, keyed by upstream node ID.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/nodeflow/internal/logging"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
	"github.com/aretw0/nodeflow/pkg/value"
)

// Error types reported in failed outcomes.
const (
	ErrorTypeNetwork  = "network_error"
	ErrorTypeTimeout  = "timeout"
	ErrorTypeHTTP     = "http_error"
	ErrorTypeRequest  = "invalid_request"
	ErrorTypeTooLarge = "response_too_large"
	ErrorTypeDecode   = "decode_error"
)

// DefaultTimeout bounds a single request when the caller sets no deadline.
const DefaultTimeout = 10 * time.Second

// ErrNoRequest is returned for nodes without a request specification.
var ErrNoRequest = errors.New("node has no request")

var (
	bracePattern = regexp.MustCompile(`\{([^{}/]+)\}`)
	colonPattern = regexp.MustCompile(`/:([A-Za-z_][A-Za-z0-9_]*)`)
)

// Executor implements ports.NodeExecutor over net/http.
type Executor struct {
	client       *http.Client
	logger       *slog.Logger
	maxBodyBytes int64
	userAgent    string
}

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithClient sets the HTTP client used for every request.
func WithClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxBodyBytes = n
		}
	}
}

// WithUserAgent sets the User-Agent header when the node does not.
func WithUserAgent(ua string) Option {
	return func(e *Executor) {
		e.userAgent = ua
	}
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		client:       &http.Client{Timeout: DefaultTimeout},
		logger:       logging.NewNop(),
		maxBodyBytes: 10 << 20,
		userAgent:    "nodeflow",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ ports.NodeExecutor = (*Executor)(nil)

// Execute performs the request described by cfg.
func (e *Executor) Execute(ctx context.Context, cfg domain.NodeConfiguration, inputs map[string]value.Value) (ports.Outcome, error) {
	if cfg.Request == nil {
		return ports.Outcome{}, fmt.Errorf("%w: %s", ErrNoRequest, cfg.ID)
	}

	start := time.Now()
	req, err := Build(ctx, *cfg.Request, inputs)
	if err != nil {
		return ports.Outcome{
			Error:     err.Error(),
			ErrorType: ErrorTypeRequest,
			Duration:  time.Since(start),
		}, nil
	}
	if req.Header.Get("User-Agent") == "" && e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	e.logger.Debug("request", "node", cfg.ID, "method", req.Method, "url", req.URL.Redacted())

	resp, err := e.client.Do(req)
	if err != nil {
		kind := ErrorTypeNetwork
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			kind = ErrorTypeTimeout
		}
		return ports.Outcome{
			Error:      err.Error(),
			ErrorType:  kind,
			RequestURL: req.URL.String(),
			Duration:   time.Since(start),
		}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodyBytes+1))
	failed := func(kind, msg string) (ports.Outcome, error) {
		return ports.Outcome{
			Error:      msg,
			ErrorType:  kind,
			StatusCode: resp.StatusCode,
			RequestURL: req.URL.String(),
			Headers:    resp.Header,
			Duration:   time.Since(start),
		}, nil
	}
	if err != nil {
		return failed(ErrorTypeNetwork, fmt.Sprintf("failed to read response: %v", err))
	}
	if int64(len(body)) > e.maxBodyBytes {
		return failed(ErrorTypeTooLarge, fmt.Sprintf("response body exceeds %d bytes", e.maxBodyBytes))
	}
	decoded, err := decodeBody(body)
	if err != nil {
		return failed(ErrorTypeDecode, fmt.Sprintf("failed to decode response: %v", err))
	}

	out := ports.Outcome{
		Success:    resp.StatusCode < 400,
		Value:      decoded,
		StatusCode: resp.StatusCode,
		RequestURL: req.URL.String(),
		Headers:    resp.Header,
		Duration:   time.Since(start),
	}
	if !out.Success {
		out.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		out.ErrorType = ErrorTypeHTTP
	}
	return out, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// decodeBody returns JSON bodies as trees and anything else as a string.
// JSON nested past value.MaxDepth is rejected.
func decodeBody(body []byte) (value.Value, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return value.Null(), nil
	}
	v, err := value.Parse(body)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, value.ErrTooDeep):
		return value.Value{}, err
	}
	return value.String(string(body)), nil
}

// Build turns a request specification plus upstream inputs into an *http.Request.
func Build(ctx context.Context, spec domain.RequestSpec, inputs map[string]value.Value) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(spec.Method))
	if method == "" {
		method = http.MethodGet
	}
	if strings.TrimSpace(spec.URL) == "" {
		return nil, errors.New("URL is required")
	}

	pathParams := Substitute(spec.PathParams, inputs)
	queryParams := Substitute(spec.QueryParams, inputs)

	rawURL, err := ExpandPath(spec.URL, pathParams)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: scheme and host are required", rawURL)
	}
	if len(queryParams) > 0 {
		q := u.Query()
		for k, v := range queryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	hasBody := false
	if carriesBody(method) {
		payload, err := MergeBody(spec.Body, inputs)
		if err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			body = bytes.NewReader(payload)
			hasBody = true
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func carriesBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// Substitute returns a copy of params where every value of the form
// "{sourceId}" is replaced by that input, if the input is a string or a number.
func Substitute(params map[string]string, inputs map[string]value.Value) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
		if len(v) < 3 || v[0] != '{' || v[len(v)-1] != '}' {
			continue
		}
		in, ok := inputs[v[1:len(v)-1]]
		if !ok {
			continue
		}
		if s, ok := scalarString(in); ok {
			out[k] = s
		}
	}
	return out
}

func scalarString(v value.Value) (string, bool) {
	if s, ok := v.AsString(); ok {
		return s, true
	}
	if n, ok := v.AsNumber(); ok {
		return n.String(), true
	}
	return "", false
}

// PathParameters lists the names of "{name}" and "/:name" placeholders in rawURL, in order.
func PathParameters(rawURL string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range bracePattern.FindAllStringSubmatch(rawURL, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	for _, m := range colonPattern.FindAllStringSubmatch(stripScheme(rawURL), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// stripScheme keeps "http://host:8080" ports from looking like ":name" segments.
func stripScheme(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rest := rawURL[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			return rest[j:]
		}
		return ""
	}
	return rawURL
}

// ExpandPath fills every path placeholder of rawURL from params. A missing or
// empty parameter is an error.
func ExpandPath(rawURL string, params map[string]string) (string, error) {
	var missing []string
	for _, name := range PathParameters(rawURL) {
		if strings.TrimSpace(params[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing path parameters: %s", strings.Join(missing, ", "))
	}

	out := bracePattern.ReplaceAllStringFunc(rawURL, func(m string) string {
		return url.PathEscape(params[m[1:len(m)-1]])
	})

	prefix, path := out, ""
	if i := strings.Index(out, "://"); i >= 0 {
		rest := out[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			prefix, path = out[:i+3+j], rest[j:]
		}
	}
	path = colonPattern.ReplaceAllStringFunc(path, func(m string) string {
		return "/" + url.PathEscape(params[m[2:]])
	})
	return prefix + path, nil
}

// MergeBody overlays inputs on the JSON object in body. An empty body counts as
// an empty object. A body that is not a JSON object is replaced by the inputs
// alone when there are any, and sent untouched otherwise.
func MergeBody(body string, inputs map[string]value.Value) ([]byte, error) {
	if len(inputs) == 0 {
		return []byte(body), nil
	}

	base := value.Object()
	if strings.TrimSpace(body) != "" {
		if parsed, err := value.Parse([]byte(body)); err == nil && parsed.Kind() == value.KindObject {
			base = parsed
		}
	}

	members := base.Members()
	index := make(map[string]int, len(members))
	for i, m := range members {
		index[m.Key] = i
	}
	for _, id := range slices.Sorted(maps.Keys(inputs)) {
		if i, ok := index[id]; ok {
			members[i].Value = inputs[id]
			continue
		}
		members = append(members, value.Member{Key: id, Value: inputs[id]})
	}

	return json.Marshal(value.Object(members...))
}
