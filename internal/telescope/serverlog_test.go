package telescope

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestServerLogTruncatesPerSession(t *testing.T) {
	dir := t.TempDir()

	first, err := openServerLog(dir, 4)
	if err != nil {
		t.Fatalf("openServerLog() error: %v", err)
	}
	if _, err := first.Write([]byte("previous session\n")); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := openServerLog(dir, 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := second.Write([]byte("current session\n")); err != nil {
		t.Fatal(err)
	}
	if err := second.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(serverLogPath(dir, 4))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "current session\n" {
		t.Errorf("log content = %q, want %q", got, "current session\n")
	}
}

func TestServerLogConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	l, err := openServerLog(dir, 1)
	if err != nil {
		t.Fatalf("openServerLog() error: %v", err)
	}

	// Two writers, like the stdout and stderr capture goroutines.
	const lines = 200
	var wg sync.WaitGroup
	for _, tag := range []string{"out", "err"} {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()
			for i := 0; i < lines; i++ {
				if _, err := l.Write([]byte(tag + "\n")); err != nil {
					t.Errorf("Write() error: %v", err)
					return
				}
			}
		}(tag)
	}
	wg.Wait()

	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(serverLogPath(dir, 1))
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(got) != 2*lines {
		t.Fatalf("got %d lines, want %d", len(got), 2*lines)
	}
	for i, line := range got {
		if line != "out" && line != "err" {
			t.Fatalf("line %d interleaved: %q", i, line)
		}
	}
}

func TestServerLogCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")

	l, err := openServerLog(dir, 7)
	if err != nil {
		t.Fatalf("openServerLog() error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(serverLogPath(dir, 7)); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
