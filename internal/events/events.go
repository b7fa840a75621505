// Package events publishes notifications about completed viewshed
// computations to Kafka, the log, or nowhere.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/banshee-data/viewshed/internal/monitoring"
	"github.com/banshee-data/viewshed/internal/timeutil"
)

// TypeViewshedComputed is emitted after every successful computation.
const TypeViewshedComputed = "viewshed.computed"

// Event is the envelope written to every sink.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps a payload with a fresh ID and the clock's current time.
func NewEvent(clock timeutil.Clock, eventType string, payload any) Event {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return Event{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Timestamp: clock.Now().UTC(),
		Payload:   payload,
	}
}

// ComputedPayload summarises one viewshed computation.
type ComputedPayload struct {
	ObserverLat     float64 `json:"observer_lat"`
	ObserverLon     float64 `json:"observer_lon"`
	MaxRadiusKm     float64 `json:"max_radius_km"`
	Algorithm       string  `json:"algorithm"`
	VisibleCells    int     `json:"visible_cells"`
	TotalCells      int     `json:"total_cells"`
	VisibleFraction float64 `json:"visible_fraction"`
	CellSizeM       float64 `json:"cell_size_m"`
	ElapsedMs       float64 `json:"elapsed_ms"`
}

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

func validate(event Event) error {
	if event.EventID == "" || event.Type == "" {
		return fmt.Errorf("event missing required fields: event_id=%q, type=%q", event.EventID, event.Type)
	}
	return nil
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON events to a single topic, keyed by event type.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher returns a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

// Publish marshals and writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if err := validate(event); err != nil {
		return err
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type),
		Value: msg,
	}); err != nil {
		return fmt.Errorf("write to topic %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher writes events through monitoring.Logf.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	if err := validate(event); err != nil {
		return err
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	monitoring.Logf("[events] %s %s", event.Type, msg)
	return nil
}

func (LogPublisher) Close() error { return nil }

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// MemoryPublisher records events in memory. Useful in tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned from Publish instead of recording.
	Err error
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

// Events returns a copy of the recorded events.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// New picks a publisher for the configured brokers: Kafka when any are
// set, otherwise the log.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return LogPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
