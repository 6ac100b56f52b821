package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/steps"
	"github.com/shaiso/Relay/internal/telemetry"
)

const testDate = "Tue, 01 Jan 2024 12:00:00 GMT"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubExecutor возвращает заранее заданный результат.
type stubExecutor struct {
	result  *orchestrator.Result
	err     error
	trigger domain.Trigger
	calls   int
}

func (s *stubExecutor) Execute(ctx context.Context, trigger domain.Trigger) (*orchestrator.Result, error) {
	s.calls++
	s.trigger = trigger
	return s.result, s.err
}

func (s *stubExecutor) Definition() *domain.Definition {
	return &domain.Definition{Name: "stub"}
}

func newServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newRelay(t *testing.T, variant, upstreamURL string, store repo.RecordStore) *httptest.Server {
	t.Helper()
	def, err := engine.Variant(variant)
	if err != nil {
		t.Fatal(err)
	}
	def.Steps[0].Fetch.URL = upstreamURL

	o, err := orchestrator.New(orchestrator.Config{
		Definition: def,
		Registry:   steps.DefaultRegistry(store, nil),
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return newServer(t, Config{Executor: o})
}

func get(t *testing.T, url string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func decodeError(t *testing.T, body []byte) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return resp.Error
}

// --- Trigger ---

func TestTrigger_Passthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("203.0.113.7"))
	}))
	defer upstream.Close()

	store := repo.NewMemoryStore()
	server := newRelay(t, engine.VariantPassthrough, upstream.URL, store)

	resp, body := get(t, server.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if string(body) != "203.0.113.7" {
		t.Errorf("expected raw body, got %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %q", ct)
	}
	if resp.Header.Get(HeaderExecutionID) == "" {
		t.Error("expected execution id header")
	}
	if store.Len("records") != 0 {
		t.Error("passthrough must not persist anything")
	}
}

func TestTrigger_Weather(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", testDate)
		w.Write([]byte("Sunny +18°C"))
	}))
	defer upstream.Close()

	store := repo.NewMemoryStore()
	server := newRelay(t, engine.VariantWeather, upstream.URL, store)

	resp, body := get(t, server.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", body, err)
	}
	if out["weather"] != "Sunny +18°C" || out["event_date"] != testDate {
		t.Errorf("unexpected output: %v", out)
	}
	if out["ddb_status"] != float64(200) {
		t.Errorf("expected ddb_status 200, got %v", out["ddb_status"])
	}

	if _, ok := store.Get("records", testDate); !ok {
		t.Error("record should be stored under the Date header")
	}
}

func TestTrigger_UpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	store := repo.NewMemoryStore()
	server := newRelay(t, engine.VariantWeather, upstream.URL, store)

	resp, body := get(t, server.URL+"/", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected upstream status 503, got %d", resp.StatusCode)
	}

	detail := decodeError(t, body)
	if detail.Kind != orchestrator.KindUpstreamError {
		t.Errorf("expected UpstreamError, got %s", detail.Kind)
	}
	if detail.Step != "fetch" {
		t.Errorf("expected failing step fetch, got %q", detail.Step)
	}
	if detail.ExecutionID == "" || detail.ExecutionID != resp.Header.Get(HeaderExecutionID) {
		t.Errorf("execution id mismatch: body %q header %q", detail.ExecutionID, resp.Header.Get(HeaderExecutionID))
	}
	if store.Len("records") != 0 {
		t.Error("nothing should be persisted after a failed fetch")
	}
}

func TestTrigger_UnknownPath(t *testing.T) {
	exec := &stubExecutor{}
	server := newServer(t, Config{Executor: exec})

	resp, _ := get(t, server.URL+"/other", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if exec.calls != 0 {
		t.Error("executor must not run for unknown paths")
	}
}

func TestTrigger_MethodNotAllowed(t *testing.T) {
	exec := &stubExecutor{}
	server := newServer(t, Config{Executor: exec})

	resp, err := http.Post(server.URL+"/", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestTrigger_BuildsTrigger(t *testing.T) {
	exec := &stubExecutor{result: &orchestrator.Result{ExecutionID: "exec-1", Output: "ok"}}
	server := newServer(t, Config{Executor: exec})

	get(t, server.URL+"/?city=Berlin", nil)

	if exec.trigger.Source != "http" || exec.trigger.Path != "/" {
		t.Errorf("unexpected trigger: %+v", exec.trigger)
	}
	if exec.trigger.Query.Get("city") != "Berlin" {
		t.Errorf("query not passed: %v", exec.trigger.Query)
	}
	if exec.trigger.TraceID == "" {
		t.Error("trigger should carry the request trace id")
	}
}

func TestTrigger_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{"upstream unavailable", &orchestrator.ExecutionError{Kind: orchestrator.KindUpstreamUnavailable, Err: steps.ErrUpstreamUnavailable}, http.StatusBadGateway, ErrCodeUpstreamUnavailable},
		{"upstream timeout", &orchestrator.ExecutionError{Kind: orchestrator.KindUpstreamTimeout, Err: steps.ErrUpstreamTimeout}, http.StatusGatewayTimeout, ErrCodeUpstreamTimeout},
		{"upstream 404", &orchestrator.ExecutionError{Kind: orchestrator.KindUpstreamError, Err: &steps.UpstreamStatusError{StatusCode: 404}}, http.StatusNotFound, ErrCodeUpstreamError},
		{"path not found", &orchestrator.ExecutionError{Kind: orchestrator.KindPathNotFound, Err: engine.ErrPathNotFound}, http.StatusBadGateway, ErrCodePathNotFound},
		{"workflow timeout", &orchestrator.ExecutionError{Kind: orchestrator.KindWorkflowTimeout, Err: orchestrator.ErrWorkflowTimeout}, http.StatusGatewayTimeout, ErrCodeWorkflowTimeout},
		{"store unavailable", &orchestrator.ExecutionError{Kind: orchestrator.KindStoreUnavailable, Err: repo.ErrStoreUnavailable}, http.StatusServiceUnavailable, ErrCodeStoreUnavailable},
		{"store throttled", &orchestrator.ExecutionError{Kind: orchestrator.KindStoreThrottled, Err: repo.ErrStoreThrottled}, http.StatusServiceUnavailable, ErrCodeStoreThrottled},
		{"internal", &orchestrator.ExecutionError{Kind: orchestrator.KindInternal, Err: errors.New("boom")}, http.StatusInternalServerError, ErrCodeInternalError},
		{"stopped", orchestrator.ErrOrchestratorStopped, http.StatusServiceUnavailable, ErrCodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &stubExecutor{err: tt.err}
			if _, ok := tt.err.(*orchestrator.ExecutionError); ok {
				exec.result = &orchestrator.Result{ExecutionID: "exec-1"}
			}
			server := newServer(t, Config{Executor: exec})

			resp, body := get(t, server.URL+"/", nil)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, resp.StatusCode, body)
			}
			if detail := decodeError(t, body); detail.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, detail.Code)
			}

			throttled := errors.Is(tt.err, repo.ErrStoreThrottled)
			if got := resp.Header.Get("Retry-After"); throttled != (got != "") {
				t.Errorf("unexpected Retry-After %q", got)
			}
		})
	}
}

// --- Middleware ---

func TestTracing_PropagatesTraceParent(t *testing.T) {
	exec := &stubExecutor{result: &orchestrator.Result{ExecutionID: "exec-1", Output: "ok"}}
	server := newServer(t, Config{Executor: exec})

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	header := http.Header{}
	header.Set(telemetry.HeaderTraceParent, "00-"+traceID+"-00f067aa0ba902b7-01")

	resp, _ := get(t, server.URL+"/", header)
	if got := resp.Header.Get(telemetry.HeaderTraceID); got != traceID {
		t.Errorf("expected trace id %s, got %q", traceID, got)
	}
	if exec.trigger.TraceID != traceID {
		t.Errorf("trigger trace id: got %q", exec.trigger.TraceID)
	}
}

func TestTracing_GeneratesTraceID(t *testing.T) {
	exec := &stubExecutor{result: &orchestrator.Result{ExecutionID: "exec-1", Output: "ok"}}
	server := newServer(t, Config{Executor: exec})

	header := http.Header{}
	header.Set(telemetry.HeaderTraceID, "not-a-trace-id")

	resp, _ := get(t, server.URL+"/", header)
	got := resp.Header.Get(telemetry.HeaderTraceID)
	if len(got) != 32 || got == "not-a-trace-id" {
		t.Errorf("expected generated trace id, got %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	exec := &stubExecutor{result: &orchestrator.Result{ExecutionID: "exec-1", Output: "ok"}}
	server := newServer(t, Config{Executor: exec, RateLimitRPS: 0.001, RateLimitBurst: 1})

	resp, _ := get(t, server.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", resp.StatusCode)
	}

	resp, body := get(t, server.URL+"/", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "1" {
		t.Error("expected Retry-After header")
	}
	if detail := decodeError(t, body); detail.Code != ErrCodeTooManyRequests {
		t.Errorf("unexpected code %s", detail.Code)
	}
	if exec.calls != 1 {
		t.Errorf("expected one execution, got %d", exec.calls)
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mark("a"), mark("b"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b" {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestGetWorkflow(t *testing.T) {
	server := newServer(t, Config{Executor: &stubExecutor{}})

	resp, body := get(t, server.URL+"/api/v1/workflow", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Data domain.Definition `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Data.Name != "stub" {
		t.Errorf("unexpected workflow: %+v", out.Data)
	}
}

func TestOutput_JSON(t *testing.T) {
	rec := httptest.NewRecorder()
	Output(rec, discardLogger(), map[string]any{"a": 1})

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"a":1}` {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

