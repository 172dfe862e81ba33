package telemetry

import (
	"sync"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/telescope"
)

// TimeSeriesWriter is the backend surface the sink writes through,
// satisfied by both *influxdb.Client and *tsdb.Client.
type TimeSeriesWriter interface {
	WritePosition(slot int, name string, raHours, decDegrees float64, deviceStatus int32, observedAt time.Time)
	WriteConnectionEvent(slot int, name string, eventType string, at time.Time)
}

// Sink bridges registry callbacks to a time-series backend. It
// implements telescope.Notifier and telescope.Sampler. Backend writes
// are batched, but a full batch flushes synchronously over HTTP, so
// all writes happen on a background goroutine.
type Sink struct {
	writer TimeSeriesWriter
	logger Logger

	queue chan sinkWrite
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

type sinkWrite struct {
	position  bool
	slot      int
	name      string
	raHours   float64
	decDeg    float64
	devStatus int32
	eventType string
	at        time.Time
}

// NewSink starts the background writer.
func NewSink(writer TimeSeriesWriter, logger Logger) *Sink {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Sink{
		writer: writer,
		logger: logger,
		queue:  make(chan sinkWrite, publishQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Notify records a connection lifecycle event.
func (s *Sink) Notify(e telescope.Event) {
	s.enqueue(sinkWrite{
		slot:      e.Slot,
		name:      e.Name,
		eventType: string(e.Type),
		at:        e.At,
	})
}

// Sample records a position sample.
func (s *Sink) Sample(slot int, name string, sample telescope.PositionSample) {
	ra, dec := sample.Direction.RADec()
	s.enqueue(sinkWrite{
		position:  true,
		slot:      slot,
		name:      name,
		raHours:   ra,
		decDeg:    dec,
		devStatus: sample.Status,
		at:        sample.ObservedAt,
	})
}

// Close drains the queue and stops the writer.
func (s *Sink) Close() {
	s.once.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Sink) enqueue(w sinkWrite) {
	select {
	case s.queue <- w:
	default:
		s.logger.Warn("telemetry queue full, dropping write", "slot", w.slot)
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for {
		select {
		case w := <-s.queue:
			s.write(w)
		case <-s.stop:
			for {
				select {
				case w := <-s.queue:
					s.write(w)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) write(w sinkWrite) {
	if w.position {
		s.writer.WritePosition(w.slot, w.name, w.raHours, w.decDeg, w.devStatus, w.at)
		return
	}
	s.writer.WriteConnectionEvent(w.slot, w.name, w.eventType, w.at)
}
