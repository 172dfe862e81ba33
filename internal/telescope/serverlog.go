package telescope

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// serverLog is the per-slot sink for spawned server output. The stdout
// and stderr capture goroutines write concurrently, so writes are
// serialized here; the buffer is flushed on close. Each start truncates
// the previous session's log.
type serverLog struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

// serverLogPath returns the log file location for a slot.
func serverLogPath(dir string, slot int) string {
	return filepath.Join(dir, fmt.Sprintf("telescope_server_%d.log", slot))
}

func openServerLog(dir string, slot int) (*serverLog, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	path := serverLogPath(dir, slot)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &serverLog{file: f, w: bufio.NewWriter(f)}, nil
}

func (l *serverLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (l *serverLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
