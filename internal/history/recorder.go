package history

import (
	"context"
	"sync"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/telescope"
)

// Logger defines the logging interface used by the Recorder.
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

const (
	recorderQueueSize = 64
	recordTimeout     = 5 * time.Second
)

// Recorder decouples history writes from the communication loop. The
// registry calls Notify with its mutex held, so entries are queued and
// a background goroutine performs the SQL; a full queue drops the
// entry with a warning rather than stalling a tick.
type Recorder struct {
	repo   Repository
	logger Logger

	queue chan Entry
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewRecorder starts the background writer.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan Entry, recorderQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Notify implements the registry's connection event consumer.
func (r *Recorder) Notify(e telescope.Event) {
	r.enqueue(Entry{
		Slot:      e.Slot,
		Kind:      string(e.Type),
		Name:      e.Name,
		CreatedAt: e.At,
	})
}

// RecordCommand queues a command record issued through a control
// surface. Kind is KindGoto or KindSync; detail carries the requested
// coordinates.
func (r *Recorder) RecordCommand(slot int, name, kind string, detail map[string]any) {
	r.enqueue(Entry{
		Slot:      slot,
		Kind:      kind,
		Name:      name,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
}

// Close drains the queue and stops the background writer. Entries
// enqueued after Close are dropped.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.stop)
	})
	<-r.done
}

func (r *Recorder) enqueue(e Entry) {
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("event history queue full, dropping entry", "kind", e.Kind, "slot", e.Slot)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case e := <-r.queue:
			r.record(e)
		case <-r.stop:
			// Write out what is already queued before exiting.
			for {
				select {
				case e := <-r.queue:
					r.record(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) record(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.repo.Record(ctx, &e); err != nil {
		r.logger.Warn("recording event history", "kind", e.Kind, "slot", e.Slot, "error", err)
	}
}
