package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"payrollforms/internal/core"
	"payrollforms/internal/log"

	"github.com/rabbitmq/amqp091-go"
)

func newTestClient() *Client {
	return &Client{
		url:          "amqp://localhost",
		exchangeName: "payrollforms",
		queueName:    "forms_saved",
		logger:       log.Discard(),
	}
}

func TestFormsSavedMessageRoundTrip(t *testing.T) {
	s := core.NewStore()
	r := core.NewRecord("form_1739525400000", time.Date(2025, 2, 14, 9, 30, 0, 0, time.UTC), "2025-02")
	r.Content = "payslip"
	if err := s.Add(r); err != nil {
		t.Fatalf("add: %v", err)
	}

	msg := NewFormsSavedMessage("local", s)
	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	back, err := FormsSavedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if back.Backend != "local" {
		t.Errorf("backend = %q", back.Backend)
	}
	got, ok := back.Records[r.ID]
	if !ok || got.Content != "payslip" || got.MonthKey != "2025-02" {
		t.Fatalf("record lost in transit: %+v", back.Records)
	}
	if !got.CreatedAt.Equal(r.CreatedAt.Time) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, r.CreatedAt)
	}
}

func TestFormsSavedMessageFromJSON(t *testing.T) {
	msg, err := FormsSavedMessageFromJSON([]byte(`{"backend":"local"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Records == nil || len(msg.Records) != 0 {
		t.Fatalf("missing records should decode as empty map, got %#v", msg.Records)
	}
	if _, err := FormsSavedMessageFromJSON([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestCircuitBreaker(t *testing.T) {
	c := newTestClient()

	if c.isCircuitOpen() {
		t.Fatal("circuit should start closed")
	}
	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatal("circuit should stay closed below the failure threshold")
	}
	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatal("circuit should open at the failure threshold")
	}

	c.recordSuccess()
	if c.isCircuitOpen() {
		t.Fatal("success should close the circuit")
	}
	if c.failureCount != 0 {
		t.Errorf("failure count = %d, want 0", c.failureCount)
	}
}

func TestCircuitBreakerHalfOpensAfterTimeout(t *testing.T) {
	c := newTestClient()
	for i := 0; i < maxFailures; i++ {
		c.recordFailure()
	}
	c.lastFailure = time.Now().Add(-openTimeout - time.Second)

	if c.isCircuitOpen() {
		t.Fatal("circuit should half-open after the timeout")
	}
	if c.state != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", c.state)
	}
}

func TestPublishFailsFast(t *testing.T) {
	msg := NewFormsSavedMessage("local", core.NewStore())

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := newTestClient().PublishFormsSaved(ctx, msg); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("open circuit", func(t *testing.T) {
		c := newTestClient()
		for i := 0; i < maxFailures; i++ {
			c.recordFailure()
		}
		if err := c.PublishFormsSaved(context.Background(), msg); !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("expected ErrCircuitOpen, got %v", err)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		if err := newTestClient().PublishFormsSaved(context.Background(), msg); err == nil {
			t.Fatal("expected error without a channel")
		}
	})
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, maxBackoff},
		{50, maxBackoff},
	}
	for _, tt := range tests {
		if got := exponentialBackoff(tt.attempt); got != tt.want {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{amqp091.ErrClosed, true},
		{fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("PRECONDITION_FAILED"), false},
	}
	for _, tt := range tests {
		if got := isConnectionError(tt.err); got != tt.want {
			t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestConsumeWithoutConnection(t *testing.T) {
	err := newTestClient().ConsumeFormsSaved(context.Background(), func(context.Context, *FormsSavedMessage) error { return nil })
	if err == nil {
		t.Fatal("expected error without a channel")
	}
}

func TestCloseWithoutConnection(t *testing.T) {
	if err := newTestClient().Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
