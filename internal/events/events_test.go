package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/viewshed/internal/monitoring"
	"github.com/banshee-data/viewshed/internal/timeutil"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() Event {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewEvent(clock, TypeViewshedComputed, ComputedPayload{
		ObserverLat:  40.1,
		ObserverLon:  -111.6,
		Algorithm:    "radial",
		VisibleCells: 12,
		TotalCells:   25,
	})
}

func TestNewEvent(t *testing.T) {
	ev := sampleEvent()
	assert.Len(t, ev.EventID, 36)
	assert.Equal(t, TypeViewshedComputed, ev.Type)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), ev.Timestamp)

	other := NewEvent(nil, "x", nil)
	assert.NotEqual(t, ev.EventID, other.EventID)
	assert.False(t, other.Timestamp.IsZero())
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "viewshed-events"}

	ev := sampleEvent()
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte(TypeViewshedComputed), w.msgs[0].Key)

	var decoded struct {
		EventID string          `json:"event_id"`
		Type    string          `json:"type"`
		Payload ComputedPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, ev.EventID, decoded.EventID)
	assert.Equal(t, 12, decoded.Payload.VisibleCells)
	assert.Equal(t, "radial", decoded.Payload.Algorithm)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_Errors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w, topic: "viewshed-events"}

	err := p.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "viewshed-events")
	assert.Contains(t, err.Error(), "broker down")

	err = p.Publish(context.Background(), Event{Type: TypeViewshedComputed})
	assert.ErrorContains(t, err, "missing required fields")
}

func TestNewKafkaPublisher(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "topic-a")
	kw, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "topic-a", kw.Topic)
	assert.Equal(t, "localhost:9092", kw.Addr.String())
}

func TestNew(t *testing.T) {
	assert.IsType(t, LogPublisher{}, New(nil, "t"))
	assert.IsType(t, &KafkaPublisher{}, New([]string{"k:9092"}, "t"))
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	prev := monitoring.Logf
	monitoring.SetLogger(monitoring.WriterLogger(&buf, ""))
	defer func() { monitoring.Logf = prev }()

	require.NoError(t, LogPublisher{}.Publish(context.Background(), sampleEvent()))
	out := buf.String()
	assert.True(t, strings.Contains(out, "[events] viewshed.computed {"), out)
	assert.Contains(t, out, `"visible_cells":12`)

	assert.Error(t, LogPublisher{}.Publish(context.Background(), Event{}))
}

func TestMemoryAndNopPublishers(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, NopPublisher{}.Publish(ctx, Event{}))
	assert.NoError(t, NopPublisher{}.Close())

	p := &MemoryPublisher{}
	require.NoError(t, p.Publish(ctx, sampleEvent()))
	require.Len(t, p.Events(), 1)

	p.Err = errors.New("nope")
	assert.Error(t, p.Publish(ctx, sampleEvent()))
	assert.Len(t, p.Events(), 1)
}
