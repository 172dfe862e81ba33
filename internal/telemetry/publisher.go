package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skybridge-obs/skybridge-core/internal/infrastructure/mqtt"
	"github.com/skybridge-obs/skybridge-core/internal/telescope"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// publishQueueSize bounds pending broker messages. The fanout drops
// rather than stall the communication loop when the broker backs up.
const publishQueueSize = 64

// MessageBus is the publishing surface the fanout writes through,
// satisfied by *mqtt.Client.
type MessageBus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Publisher forwards connection events and position samples to the
// MQTT broker. It implements telescope.Notifier and telescope.Sampler.
//
// Both callbacks run with the registry mutex held, so messages are
// queued and published from a background goroutine.
type Publisher struct {
	bus    MessageBus
	topics mqtt.Topics
	qos    byte
	logger Logger

	queue chan outbound
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

type outbound struct {
	topic    string
	payload  []byte
	retained bool
}

// statusMessage is the retained per-slot connection status payload.
type statusMessage struct {
	EventID string `json:"event_id"`
	Slot    int    `json:"slot"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	At      string `json:"at"`
}

// positionMessage is the per-slot position sample payload. Both the
// unit vector and the derived RA/dec are included so consumers can
// pick whichever frame suits them.
type positionMessage struct {
	Slot         int     `json:"slot"`
	Name         string  `json:"name"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Z            float64 `json:"z"`
	RAHours      float64 `json:"ra_hours"`
	DecDegrees   float64 `json:"dec_degrees"`
	DeviceStatus int32   `json:"device_status"`
	ObservedAt   string  `json:"observed_at"`
}

// NewPublisher starts the background broker writer.
func NewPublisher(bus MessageBus, qos byte, logger Logger) *Publisher {
	if logger == nil {
		logger = noopLogger{}
	}
	p := &Publisher{
		bus:    bus,
		qos:    qos,
		logger: logger,
		queue:  make(chan outbound, publishQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Notify publishes a retained status message for the slot and mirrors
// the event on the system event topic.
func (p *Publisher) Notify(e telescope.Event) {
	status := "disconnected"
	if e.Type == telescope.EventConnected {
		status = "connected"
	}
	msg := statusMessage{
		EventID: "evt-" + uuid.NewString()[:8],
		Slot:    e.Slot,
		Name:    e.Name,
		Status:  status,
		At:      e.At.UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	p.enqueue(outbound{topic: p.topics.TelescopeStatus(e.Slot), payload: payload, retained: true})
	p.enqueue(outbound{topic: p.topics.SystemEvent(string(e.Type)), payload: payload})
}

// Sample publishes a position message for the slot.
func (p *Publisher) Sample(slot int, name string, s telescope.PositionSample) {
	ra, dec := s.Direction.RADec()
	msg := positionMessage{
		Slot:         slot,
		Name:         name,
		X:            s.Direction.X,
		Y:            s.Direction.Y,
		Z:            s.Direction.Z,
		RAHours:      ra,
		DecDegrees:   dec,
		DeviceStatus: s.Status,
		ObservedAt:   s.ObservedAt.UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	p.enqueue(outbound{topic: p.topics.TelescopePosition(slot), payload: payload})
}

// Close drains the queue and stops the writer.
func (p *Publisher) Close() {
	p.once.Do(func() {
		close(p.stop)
	})
	<-p.done
}

func (p *Publisher) enqueue(m outbound) {
	select {
	case p.queue <- m:
	default:
		p.logger.Warn("telemetry queue full, dropping message", "topic", m.topic)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case m := <-p.queue:
			p.publish(m)
		case <-p.stop:
			for {
				select {
				case m := <-p.queue:
					p.publish(m)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) publish(m outbound) {
	if err := p.bus.Publish(m.topic, m.payload, p.qos, m.retained); err != nil {
		p.logger.Warn("mqtt publish failed", "topic", m.topic, "error", err)
	}
}
