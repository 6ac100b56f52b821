package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
)

func TestEventRoutingKey(t *testing.T) {
	tests := []struct {
		event domain.ExecutionEvent
		want  RoutingKey
	}{
		{domain.ExecutionEvent{Workflow: "weather", Type: domain.EventStepFailed}, "execution.weather.StepFailed"},
		{domain.ExecutionEvent{Workflow: "a.b#c", Type: domain.EventExecutionStarted}, "execution.a_b_c.ExecutionStarted"},
		{domain.ExecutionEvent{Type: domain.EventExecutionSucceeded}, "execution.unknown.ExecutionSucceeded"},
	}

	for _, tt := range tests {
		if got := EventRoutingKey(tt.event); got != tt.want {
			t.Errorf("EventRoutingKey() = %s, want %s", got, tt.want)
		}
	}
}

func TestDecodeEvent(t *testing.T) {
	event := domain.ExecutionEvent{
		ExecutionID: "exec-1",
		Workflow:    "weather",
		Type:        domain.EventStepSucceeded,
		Seq:         3,
		StepID:      "fetch",
		StepKind:    domain.StepKindFetch,
		Timestamp:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := json.Marshal(&Message{ID: "m1", Type: MessageTypeExecutionEvent, Payload: event})
	if err != nil {
		t.Fatal(err)
	}

	got, err := DecodeEvent(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ExecutionID != "exec-1" || got.Seq != 3 || got.StepKind != domain.StepKindFetch {
		t.Errorf("unexpected event: %+v", got)
	}
	if !got.Timestamp.Equal(event.Timestamp) {
		t.Errorf("timestamp lost: %v", got.Timestamp)
	}
}

func TestDecodeEvent_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{`},
		{"foreign type", `{"type":"other","payload":{}}`},
		{"bad payload", `{"type":"execution.event","payload":"text"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeEvent([]byte(tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBackoff_Next(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second},
		{10, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := b.next(tt.attempt); got != tt.want {
			t.Errorf("next(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	if got := (Backoff{}).next(0); got != DefaultBackoff.Initial {
		t.Errorf("zero Backoff next(0) = %v, want %v", got, DefaultBackoff.Initial)
	}
}

func TestTail_Drain(t *testing.T) {
	var got []domain.ExecutionEvent
	tail := NewTail(nil, TailConfig{
		Handler: func(ctx context.Context, event domain.ExecutionEvent) error {
			got = append(got, event)
			if event.Seq == 2 {
				return errors.New("handler failed")
			}
			return nil
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if tail.cfg.Pattern != RoutingKeyAllExecutions {
		t.Errorf("default pattern = %s, want %s", tail.cfg.Pattern, RoutingKeyAllExecutions)
	}

	encode := func(seq int) []byte {
		body, err := json.Marshal(&Message{
			Type:    MessageTypeExecutionEvent,
			Payload: domain.ExecutionEvent{ExecutionID: "exec-1", Seq: seq},
		})
		if err != nil {
			t.Fatal(err)
		}
		return body
	}

	deliveries := make(chan amqp.Delivery, 4)
	deliveries <- amqp.Delivery{Body: encode(1)}
	deliveries <- amqp.Delivery{Body: []byte("garbage")}
	deliveries <- amqp.Delivery{Body: encode(2)}
	deliveries <- amqp.Delivery{Body: encode(3)}
	close(deliveries)

	// Битое сообщение и ошибка Handler не останавливают чтение
	err := tail.drain(context.Background(), deliveries)
	if !errors.Is(err, errDeliveriesClosed) {
		t.Fatalf("drain error = %v, want errDeliveriesClosed", err)
	}

	if len(got) != 3 {
		t.Fatalf("handled %d events, want 3", len(got))
	}
	for i, event := range got {
		if event.Seq != i+1 {
			t.Errorf("event %d seq = %d", i, event.Seq)
		}
	}
}

func TestTail_DrainCancelled(t *testing.T) {
	tail := NewTail(nil, TailConfig{
		Handler: func(ctx context.Context, event domain.ExecutionEvent) error { return nil },
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tail.drain(ctx, make(chan amqp.Delivery))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("drain error = %v, want context.Canceled", err)
	}
}
