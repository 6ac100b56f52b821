package telemetry

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Заголовки трассировки.
const (
	// HeaderTraceParent — W3C traceparent.
	HeaderTraceParent = "traceparent"

	// HeaderTraceID — упрощённый заголовок с идентификатором трассы.
	HeaderTraceID = "X-Trace-Id"
)

const ctxSpan ctxKey = "span"

// Span — один участок трассы.
//
// Спаны не экспортируются во внешний коллектор: начало и конец
// пишутся в лог с trace_id и span_id, по которым их можно связать.
type Span struct {
	Name     string
	TraceID  string
	SpanID   string
	ParentID string
	Start    time.Time

	logger *slog.Logger
	attrs  []any
}

// NewTraceID генерирует идентификатор трассы (32 hex символа).
func NewTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func newSpanID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}

// ParseTraceParent извлекает trace id и parent span id из W3C traceparent.
// Формат: 00-<32 hex>-<16 hex>-<2 hex>.
func ParseTraceParent(header string) (traceID, parentID string, ok bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 || len(parts[0]) != 2 || len(parts[1]) != 32 || len(parts[2]) != 16 || len(parts[3]) != 2 {
		return "", "", false
	}
	if !isHex(parts[1]) || !isHex(parts[2]) {
		return "", "", false
	}
	if parts[1] == strings.Repeat("0", 32) {
		return "", "", false
	}
	return strings.ToLower(parts[1]), strings.ToLower(parts[2]), true
}

// TraceParent форматирует заголовок traceparent для спана.
func (s *Span) TraceParent() string {
	return "00-" + s.TraceID + "-" + s.SpanID + "-01"
}

// StartSpan начинает спан. Если в ctx уже есть спан, новый становится
// его потомком. traceID используется только для корневого спана
// (пустой — сгенерировать новый).
func StartSpan(ctx context.Context, name, traceID string, attrs ...any) (context.Context, *Span) {
	span := &Span{
		Name:   name,
		SpanID: newSpanID(),
		Start:  time.Now(),
		attrs:  attrs,
	}

	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else if traceID != "" {
		span.TraceID = traceID
	} else {
		span.TraceID = NewTraceID()
	}

	span.logger = FromContext(ctx).With("trace_id", span.TraceID, "span_id", span.SpanID)
	span.logger.Debug("span started", append([]any{"span", name, "parent_id", span.ParentID}, attrs...)...)

	return context.WithValue(ctx, ctxSpan, span), span
}

// End завершает спан и пишет его длительность в лог.
func (s *Span) End(err error) time.Duration {
	elapsed := time.Since(s.Start)
	args := append([]any{"span", s.Name, "duration_ms", elapsed.Milliseconds()}, s.attrs...)
	if err != nil {
		s.logger.Debug("span failed", append(args, "error", err)...)
	} else {
		s.logger.Debug("span finished", args...)
	}
	return elapsed
}

// Logger возвращает логгер с полями спана.
func (s *Span) Logger() *slog.Logger {
	return s.logger
}

// SpanFromContext возвращает текущий спан или nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(ctxSpan).(*Span)
	return span
}

// TraceIDFromContext возвращает trace id текущего спана (или пустую строку).
func TraceIDFromContext(ctx context.Context) string {
	if span := SpanFromContext(ctx); span != nil {
		return span.TraceID
	}
	return ""
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}
