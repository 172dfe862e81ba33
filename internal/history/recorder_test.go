package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/telescope"
)

func waitForEntries(t *testing.T, repo Repository, want int) []Entry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := repo.List(context.Background(), Filter{})
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("fewer than %d entries recorded before timeout", want)
	return nil
}

func TestRecorderWritesQueuedEntries(t *testing.T) {
	repo := NewSQLiteRepository(setupHistoryTestDB(t))
	rec := NewRecorder(repo, nil)
	defer rec.Close()

	at := time.Date(2026, 8, 25, 21, 0, 0, 0, time.UTC)
	rec.Notify(telescope.Event{
		Type: telescope.EventConnected,
		Slot: 4,
		Name: "Dome",
		At:   at,
	})
	rec.RecordCommand(4, "Dome", KindGoto, map[string]any{"ra_hours": 2.0})

	got := waitForEntries(t, repo, 2)

	var connected, slew *Entry
	for i := range got {
		switch got[i].Kind {
		case KindConnected:
			connected = &got[i]
		case KindGoto:
			slew = &got[i]
		}
	}
	if connected == nil || slew == nil {
		t.Fatalf("entries = %+v, want connected and goto", got)
	}
	if connected.Slot != 4 || connected.Name != "Dome" || !connected.CreatedAt.Equal(at) {
		t.Errorf("connected entry = %+v", connected)
	}
	if slew.Detail["ra_hours"] != 2.0 {
		t.Errorf("goto detail = %+v, want ra_hours 2", slew.Detail)
	}
}

func TestRecorderCloseDrains(t *testing.T) {
	repo := NewSQLiteRepository(setupHistoryTestDB(t))
	rec := NewRecorder(repo, nil)

	for i := 0; i < 10; i++ {
		rec.RecordCommand(1, "Sim", KindSync, nil)
	}
	rec.Close()

	got, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("List() = %d entries after Close, want 10", len(got))
	}
}

// blockingRepo holds every Record call until release is closed.
type blockingRepo struct {
	release chan struct{}

	mu  sync.Mutex
	got []Entry
}

func (b *blockingRepo) Record(_ context.Context, e *Entry) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, *e)
	return nil
}

func (b *blockingRepo) List(context.Context, Filter) ([]Entry, error) { return nil, nil }

func (b *blockingRepo) Prune(context.Context, time.Duration) (int64, error) { return 0, nil }

func (b *blockingRepo) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func TestRecorderDropsWhenFull(t *testing.T) {
	repo := &blockingRepo{release: make(chan struct{})}
	rec := NewRecorder(repo, nil)

	sent := recorderQueueSize + 8
	for i := 0; i < sent; i++ {
		rec.RecordCommand(1, "Sim", KindGoto, nil)
	}

	close(repo.release)
	rec.Close()

	// The queue holds recorderQueueSize entries plus at most one in
	// flight; the rest were dropped without blocking the caller.
	got := repo.count()
	if got < recorderQueueSize || got > recorderQueueSize+1 {
		t.Errorf("recorded %d entries, want %d or %d", got, recorderQueueSize, recorderQueueSize+1)
	}
}
