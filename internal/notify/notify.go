// Package notify emits best-effort user notifications. The core only emits
// events to a Sink; whether the sink posts to the notification function,
// publishes to Kafka, or drops events is an integration decision.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

const (
	EventLeadsFound = "leads_found"
	EventLowCredits = "low_credits"
)

// Event is one notification dispatch.
type Event struct {
	Type   string         `json:"event_type"`
	UserID string         `json:"user_id"`
	Data   map[string]any `json:"data,omitempty"`
}

// Sink delivers events somewhere. Failures are the caller's to ignore.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// HTTPSink posts events to the sibling send-notification function.
type HTTPSink struct {
	url    string
	client *http.Client
}

func NewHTTPSink(url string) *HTTPSink {
	return &HTTPSink{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *HTTPSink) Send(ctx context.Context, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification request failed with status %d", resp.StatusCode)
	}
	return nil
}

// KafkaSink publishes events to a notification topic.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Send(ctx context.Context, event Event) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(event.UserID),
		Value: sarama.StringEncoder(eventBytes),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish notification event: %w", err)
	}
	return nil
}

// MockSink records events for tests.
type MockSink struct {
	mu     sync.Mutex
	Events []Event
}

func (m *MockSink) Send(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

// Notifier wraps a sink with fire-and-forget semantics: send failures are
// logged, never propagated.
type Notifier struct {
	sink Sink
}

func NewNotifier(sink Sink) *Notifier {
	return &Notifier{sink: sink}
}

func (n *Notifier) LeadsFound(ctx context.Context, userID string, count int, campaignID string) {
	data := map[string]any{"count": count}
	if campaignID != "" {
		data["campaign_id"] = campaignID
	}
	n.emit(ctx, Event{Type: EventLeadsFound, UserID: userID, Data: data})
}

func (n *Notifier) LowCredits(ctx context.Context, userID string, remaining, limit int) {
	n.emit(ctx, Event{Type: EventLowCredits, UserID: userID, Data: map[string]any{
		"remaining": remaining,
		"limit":     limit,
	}})
}

func (n *Notifier) emit(ctx context.Context, event Event) {
	if n == nil || n.sink == nil {
		return
	}
	if err := n.sink.Send(ctx, event); err != nil {
		slog.Error("Notification dispatch failed", "event_type", event.Type, "user_id", event.UserID, "error", err)
	}
}
