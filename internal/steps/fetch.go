package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

const (
	// Значения по умолчанию.
	defaultDialTimeout = 10 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
	maxErrorBody       = 512
)

// Ошибки upstream.
var (
	// ErrUpstreamUnavailable — не удалось соединиться (DNS, connect, TLS, reset).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamTimeout — upstream не ответил за бюджет шага.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrUpstreamError — upstream ответил не-2xx статусом.
	ErrUpstreamError = errors.New("upstream error")
)

// UpstreamStatusError — ответ upstream с не-2xx статусом.
type UpstreamStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream responded HTTP %d: %s", e.StatusCode, e.Status)
}

// Unwrap позволяет проверять errors.Is(err, ErrUpstreamError).
func (e *UpstreamStatusError) Unwrap() error {
	return ErrUpstreamError
}

// FetchStep — единственный исходящий GET к upstream.
//
// URL задаётся статически в Definition, из входящего запроса
// может прийти только query (при passthrough_query: true).
// Повторов нет: любая ошибка терминальна для выполнения.
//
// Outputs (записываются по result_path, по умолчанию $.http):
//
//	{
//	    "status_code": 200,
//	    "headers": {"Date": ["Tue, 01 Jan 2024 12:00:00 GMT"], ...},
//	    "body": "Sunny +18°C"   // или распарсенный JSON
//	}
type FetchStep struct {
	client *http.Client
}

// NewFetchStep создаёт новый FetchStep.
// Таймауты задаются через context, поэтому у клиента нет Timeout.
func NewFetchStep(client *http.Client) *FetchStep {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   defaultDialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: defaultDialTimeout,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &FetchStep{client: client}
}

// Kind возвращает тип шага.
func (s *FetchStep) Kind() domain.StepKind {
	return domain.StepKindFetch
}

// Execute выполняет GET запрос.
func (s *FetchStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	cfg := req.Step.Fetch
	if cfg == nil {
		return nil, fmt.Errorf("%w: fetch block is required", ErrInvalidConfig)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	target, err := buildURL(cfg, req.Trigger)
	if err != nil {
		return nil, err
	}

	stepCtx, cancel := withBudget(ctx, req.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(stepCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrInvalidConfig, err)
	}
	for key, value := range cfg.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, stepCtx, err)
	}
	defer resp.Body.Close()

	// Читаем на байт больше лимита, чтобы отличить полный ответ от обрезанного
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, classifyTransportError(ctx, stepCtx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(bodyBytes), maxErrorBody),
		}
	}

	if len(bodyBytes) > maxResponseBody {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrUpstreamError, maxResponseBody)
	}

	return &Response{Output: buildOutputs(resp, bodyBytes)}, nil
}

// buildURL добавляет query входящего запроса к статическому URL.
// Хост и путь всегда берутся из конфигурации.
func buildURL(cfg *domain.FetchConfig, trigger domain.Trigger) (string, error) {
	if !cfg.PassthroughQuery || len(trigger.Query) == 0 {
		return cfg.URL, nil
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("%w: parse url: %v", ErrInvalidConfig, err)
	}

	query := u.Query()
	for key, values := range trigger.Query {
		for _, v := range values {
			query.Add(key, v)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// classifyTransportError различает отмену выполнения, таймаут шага и недоступность.
func classifyTransportError(runCtx, stepCtx context.Context, err error) error {
	// Общий таймаут или отмена — решает Orchestrator
	if runCtx.Err() != nil {
		return cancelled(runCtx)
	}

	if errors.Is(stepCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

// buildOutputs формирует outputs из HTTP-ответа.
func buildOutputs(resp *http.Response, bodyBytes []byte) map[string]any {
	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			// Если не удалось распарсить JSON, возвращаем как строку
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	headers := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		headers[key] = list
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
