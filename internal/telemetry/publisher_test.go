package telemetry

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/protocol"
	"github.com/skybridge-obs/skybridge-core/internal/telescope"
)

// fakeBus records published messages.
type fakeBus struct {
	mu       sync.Mutex
	messages []busMessage
}

type busMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (b *fakeBus) Publish(topic string, payload []byte, qos byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, busMessage{topic: topic, payload: payload, qos: qos, retained: retained})
	return nil
}

func (b *fakeBus) snapshot() []busMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]busMessage, len(b.messages))
	copy(out, b.messages)
	return out
}

func waitForMessages(t *testing.T, bus *fakeBus, want int) []busMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msgs := bus.snapshot()
		if len(msgs) >= want {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d messages, have %d", want, len(bus.snapshot()))
	return nil
}

func TestPublisherNotify(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, 1, nil)
	defer p.Close()

	at := time.Date(2026, 3, 14, 21, 30, 0, 0, time.UTC)
	p.Notify(telescope.Event{Type: telescope.EventConnected, Slot: 4, Name: "Dome", At: at})

	msgs := waitForMessages(t, bus, 2)

	status := msgs[0]
	if status.topic != "skybridge/telescope/4/status" {
		t.Errorf("status topic = %q, want %q", status.topic, "skybridge/telescope/4/status")
	}
	if !status.retained {
		t.Error("status message not retained")
	}
	if status.qos != 1 {
		t.Errorf("status qos = %d, want 1", status.qos)
	}

	var got statusMessage
	if err := json.Unmarshal(status.payload, &got); err != nil {
		t.Fatalf("status payload not valid JSON: %v", err)
	}
	if got.Slot != 4 || got.Name != "Dome" || got.Status != "connected" {
		t.Errorf("status payload = %+v", got)
	}
	if got.At != "2026-03-14T21:30:00Z" {
		t.Errorf("at = %q, want %q", got.At, "2026-03-14T21:30:00Z")
	}
	if !strings.HasPrefix(got.EventID, "evt-") {
		t.Errorf("event_id = %q, want evt- prefix", got.EventID)
	}

	event := msgs[1]
	if event.topic != "skybridge/system/event/telescope_connected" {
		t.Errorf("event topic = %q", event.topic)
	}
	if event.retained {
		t.Error("system event should not be retained")
	}
}

func TestPublisherNotifyDisconnected(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, 0, nil)
	defer p.Close()

	p.Notify(telescope.Event{Type: telescope.EventDisconnected, Slot: 9, Name: "East", At: time.Now().UTC()})

	msgs := waitForMessages(t, bus, 2)

	var got statusMessage
	if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if got.Status != "disconnected" {
		t.Errorf("status = %q, want %q", got.Status, "disconnected")
	}
	if msgs[1].topic != "skybridge/system/event/telescope_disconnected" {
		t.Errorf("event topic = %q", msgs[1].topic)
	}
}

func TestPublisherSample(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, 1, nil)
	defer p.Close()

	observed := time.Date(2026, 3, 14, 21, 31, 0, 0, time.UTC)
	p.Sample(2, "Sim", telescope.PositionSample{
		Direction:  protocol.VectorFromRADec(6, 0),
		Status:     1,
		ObservedAt: observed,
	})

	msgs := waitForMessages(t, bus, 1)

	if msgs[0].topic != "skybridge/telescope/2/position" {
		t.Errorf("topic = %q, want %q", msgs[0].topic, "skybridge/telescope/2/position")
	}
	if msgs[0].retained {
		t.Error("position message should not be retained")
	}

	var got positionMessage
	if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if got.Slot != 2 || got.Name != "Sim" {
		t.Errorf("payload = %+v", got)
	}
	if got.RAHours < 5.999999 || got.RAHours > 6.000001 {
		t.Errorf("ra_hours = %v, want 6", got.RAHours)
	}
	if got.DeviceStatus != 1 {
		t.Errorf("device_status = %d, want 1", got.DeviceStatus)
	}
	if got.ObservedAt != "2026-03-14T21:31:00Z" {
		t.Errorf("observed_at = %q", got.ObservedAt)
	}
}

func TestPublisherCloseDrains(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, 1, nil)

	for i := 0; i < 10; i++ {
		p.Sample(1, "Sim", telescope.PositionSample{
			Direction:  protocol.Vec3{Z: 1},
			ObservedAt: time.Now().UTC(),
		})
	}
	p.Close()

	if got := len(bus.snapshot()); got != 10 {
		t.Errorf("published %d messages after Close, want 10", got)
	}
}

// failingBus always rejects publishes.
type failingBus struct {
	mu    sync.Mutex
	count int
}

func (b *failingBus) Publish(string, []byte, byte, bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	return errors.New("broker gone")
}

func (b *failingBus) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func TestPublisherContinuesAfterError(t *testing.T) {
	bus := &failingBus{}
	p := NewPublisher(bus, 1, nil)

	for i := 0; i < 3; i++ {
		p.Sample(1, "Sim", telescope.PositionSample{Direction: protocol.Vec3{Z: 1}})
	}
	p.Close()

	if got := bus.calls(); got != 3 {
		t.Errorf("publish attempts = %d, want 3", got)
	}
}

// blockingBus blocks every publish until released.
type blockingBus struct {
	release chan struct{}
	mu      sync.Mutex
	count   int
}

func (b *blockingBus) Publish(string, []byte, byte, bool) error {
	<-b.release
	b.mu.Lock()
	b.count++
	b.mu.Unlock()
	return nil
}

func (b *blockingBus) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func TestPublisherDropsWhenFull(t *testing.T) {
	bus := &blockingBus{release: make(chan struct{})}
	p := NewPublisher(bus, 1, nil)

	// One message can be in flight and publishQueueSize can be queued;
	// anything beyond that must be dropped, not block the caller.
	for i := 0; i < publishQueueSize+8; i++ {
		p.Sample(1, "Sim", telescope.PositionSample{Direction: protocol.Vec3{Z: 1}})
	}

	close(bus.release)
	p.Close()

	got := bus.calls()
	if got < publishQueueSize || got > publishQueueSize+1 {
		t.Errorf("published %d messages, want %d or %d", got, publishQueueSize, publishQueueSize+1)
	}
}
