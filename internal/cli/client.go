package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Заголовки ответа trigger (дублируются из api, CLI-клиент не импортирует internal/api).
const (
	headerExecutionID = "X-Execution-Id"
	headerTraceID     = "X-Trace-Id"
)

// --- Response types ---

// StepResponse — шаг workflow из API.
type StepResponse struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	ResultPath string `json:"result_path,omitempty"`
	TimeoutSec int    `json:"timeout_sec,omitempty"`
}

// WorkflowResponse — развёрнутый workflow из API.
type WorkflowResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Output      string         `json:"output,omitempty"`
	TimeoutSec  int            `json:"timeout_sec,omitempty"`
	Steps       []StepResponse `json:"steps"`
}

// InvokeResponse — ответ trigger.
type InvokeResponse struct {
	StatusCode  int
	ExecutionID string
	TraceID     string
	ContentType string
	Body        []byte
}

// APIError — ошибка, возвращённая API.
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Kind        string `json:"kind,omitempty"`
	Step        string `json:"step,omitempty"`
	Message     string `json:"message"`
	ExecutionID string `json:"execution_id,omitempty"`
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Relay API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Больше максимального таймаута выполнения.
			Timeout: 6 * time.Minute,
		},
	}
}

// Invoke запускает workflow через GET /.
// Для ответов 4xx/5xx возвращается *APIError вместе с InvokeResponse.
func (c *Client) Invoke(ctx context.Context, query url.Values, traceParent string) (*InvokeResponse, error) {
	path := "/"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if traceParent != "" {
		req.Header.Set("traceparent", traceParent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &InvokeResponse{
		StatusCode:  resp.StatusCode,
		ExecutionID: resp.Header.Get(headerExecutionID),
		TraceID:     resp.Header.Get(headerTraceID),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}

	if resp.StatusCode >= 400 {
		return out, decodeError(resp.StatusCode, body)
	}
	return out, nil
}

// GetWorkflow возвращает развёрнутый workflow.
func (c *Client) GetWorkflow(ctx context.Context) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get(ctx, "/api/v1/workflow", &wf)
	return &wf, err
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, body)
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error.Message == "" {
		return &APIError{StatusCode: status, Code: "HTTP_ERROR", Message: http.StatusText(status)}
	}
	er.Error.StatusCode = status
	return &er.Error
}
