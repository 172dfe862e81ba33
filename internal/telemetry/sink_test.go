package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/protocol"
	"github.com/skybridge-obs/skybridge-core/internal/telescope"
)

type positionWrite struct {
	slot       int
	name       string
	raHours    float64
	decDegrees float64
	status     int32
	observedAt time.Time
}

type eventWrite struct {
	slot      int
	name      string
	eventType string
	at        time.Time
}

// fakeWriter records backend writes.
type fakeWriter struct {
	mu        sync.Mutex
	positions []positionWrite
	events    []eventWrite
}

func (w *fakeWriter) WritePosition(slot int, name string, raHours, decDegrees float64, deviceStatus int32, observedAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.positions = append(w.positions, positionWrite{
		slot: slot, name: name, raHours: raHours, decDegrees: decDegrees,
		status: deviceStatus, observedAt: observedAt,
	})
}

func (w *fakeWriter) WriteConnectionEvent(slot int, name string, eventType string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, eventWrite{slot: slot, name: name, eventType: eventType, at: at})
}

func (w *fakeWriter) counts() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.positions), len(w.events)
}

func TestSinkNotify(t *testing.T) {
	w := &fakeWriter{}
	s := NewSink(w, nil)

	at := time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)
	s.Notify(telescope.Event{Type: telescope.EventConnected, Slot: 5, Name: "West", At: at})
	s.Close()

	if _, events := w.counts(); events != 1 {
		t.Fatalf("events = %d, want 1", events)
	}
	got := w.events[0]
	if got.slot != 5 || got.name != "West" || got.eventType != "telescope_connected" {
		t.Errorf("event = %+v", got)
	}
	if !got.at.Equal(at) {
		t.Errorf("at = %v, want %v", got.at, at)
	}
}

func TestSinkSample(t *testing.T) {
	w := &fakeWriter{}
	s := NewSink(w, nil)

	observed := time.Date(2026, 3, 14, 22, 1, 0, 0, time.UTC)
	s.Sample(2, "Sim", telescope.PositionSample{
		Direction:  protocol.VectorFromRADec(5.5, -5.4),
		Status:     2,
		ObservedAt: observed,
	})
	s.Close()

	if positions, _ := w.counts(); positions != 1 {
		t.Fatalf("positions = %d, want 1", positions)
	}
	got := w.positions[0]
	if got.slot != 2 || got.name != "Sim" || got.status != 2 {
		t.Errorf("position = %+v", got)
	}
	if got.raHours < 5.499999 || got.raHours > 5.500001 {
		t.Errorf("ra = %v, want 5.5", got.raHours)
	}
	if got.decDegrees < -5.400001 || got.decDegrees > -5.399999 {
		t.Errorf("dec = %v, want -5.4", got.decDegrees)
	}
	if !got.observedAt.Equal(observed) {
		t.Errorf("observedAt = %v, want %v", got.observedAt, observed)
	}
}

func TestSinkCloseDrains(t *testing.T) {
	w := &fakeWriter{}
	s := NewSink(w, nil)

	for i := 0; i < 10; i++ {
		s.Sample(1, "Sim", telescope.PositionSample{Direction: protocol.Vec3{Z: 1}})
	}
	s.Notify(telescope.Event{Type: telescope.EventDisconnected, Slot: 1, Name: "Sim", At: time.Now().UTC()})
	s.Close()

	positions, events := w.counts()
	if positions != 10 || events != 1 {
		t.Errorf("positions = %d, events = %d, want 10 and 1", positions, events)
	}
}

// stallingWriter blocks every write until released.
type stallingWriter struct {
	release chan struct{}
	mu      sync.Mutex
	count   int
}

func (w *stallingWriter) WritePosition(int, string, float64, float64, int32, time.Time) {
	<-w.release
	w.mu.Lock()
	w.count++
	w.mu.Unlock()
}

func (w *stallingWriter) WriteConnectionEvent(int, string, string, time.Time) {
	<-w.release
	w.mu.Lock()
	w.count++
	w.mu.Unlock()
}

func (w *stallingWriter) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

func TestSinkDropsWhenFull(t *testing.T) {
	w := &stallingWriter{release: make(chan struct{})}
	s := NewSink(w, nil)

	for i := 0; i < publishQueueSize+8; i++ {
		s.Sample(1, "Sim", telescope.PositionSample{Direction: protocol.Vec3{Z: 1}})
	}

	close(w.release)
	s.Close()

	got := w.calls()
	if got < publishQueueSize || got > publishQueueSize+1 {
		t.Errorf("writes = %d, want %d or %d", got, publishQueueSize, publishQueueSize+1)
	}
}
