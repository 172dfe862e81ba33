package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/process"
)

// Readiness polling for spawned device servers.
const (
	readyPollInterval = 100 * time.Millisecond
	readyDialTimeout  = 500 * time.Millisecond
)

// server spawns a device server executable and bridges to it over
// loopback TCP. The child is owned exclusively by this transport: it is
// started before the socket dials and terminated on Close.
type server struct {
	*socket
	proc *process.Manager
}

func newServer(cfg Config) (*server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	args := []string{"--port=" + strconv.Itoa(cfg.Port)}
	if cfg.Device != "" {
		args = append(args, "--serial="+cfg.Device)
	}
	if cfg.Delay > 0 {
		args = append(args, fmt.Sprintf("--delay-us=%d", cfg.Delay.Microseconds()))
	}

	proc := process.NewManager(process.Config{
		Name:            fmt.Sprintf("slot-%d-server", cfg.Slot),
		Binary:          cfg.ServerBinary,
		Args:            args,
		GracefulTimeout: cfg.StopGracePeriod,
		Output:          cfg.ServerLog,
	})
	proc.SetLogger(cfg.Logger)

	// The child deliberately outlives a crashed parent; its lifetime is
	// bound to Close, not to a context.
	if err := proc.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailure, err)
	}

	if err := waitForReady(proc, cfg.Host, cfg.Port, cfg.ReadinessTimeout); err != nil {
		// Roll back: no orphan process may survive a failed construction.
		if stopErr := proc.Stop(); stopErr != nil {
			cfg.Logger.Warn("stopping device server after failed readiness check",
				"slot", cfg.Slot,
				"error", stopErr,
			)
		}
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailure, err)
	}

	cfg.Logger.Info("device server ready",
		"slot", cfg.Slot,
		"binary", cfg.ServerBinary,
		"port", cfg.Port,
	)

	return &server{
		socket: newSocket(cfg),
		proc:   proc,
	}, nil
}

// waitForReady polls until the spawned server accepts TCP connections.
func waitForReady(proc *process.Manager, host string, port int, timeout time.Duration) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	deadline := time.Now().Add(timeout)

	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for device server on %s after %v", addr, timeout)
		}

		// A dead child will never start listening.
		if !proc.IsRunning() {
			if lastErr := proc.LastError(); lastErr != nil {
				return fmt.Errorf("device server exited: %w", lastErr)
			}
			return errors.New("device server exited before becoming ready")
		}

		conn, err := net.DialTimeout("tcp", addr, readyDialTimeout)
		if err == nil {
			conn.Close()
			return nil
		}

		time.Sleep(readyPollInterval)
	}
}

// Communicate adds child supervision to the socket tick: a server that
// has exited cannot come back, so the slot fails instead of redialing
// a port no one listens on.
func (s *server) Communicate(now time.Time) error {
	if s.proc.Status() == process.StatusFailed && s.socket.Status() != StatusFailed {
		exitErr := s.proc.LastError()
		s.socket.fail(fmt.Errorf("device server exited: %w", exitErr))
		return fmt.Errorf("slot %d: device server exited: %w", s.cfg.Slot, ErrSpawnFailure)
	}
	return s.socket.Communicate(now)
}

// Close tears down the socket first, then the child process through the
// grace path. An unconfirmed kill propagates so the owner can report
// the stop as unclean.
func (s *server) Close() error {
	_ = s.socket.Close()

	if err := s.proc.Stop(); err != nil {
		return fmt.Errorf("slot %d: %w", s.cfg.Slot, err)
	}
	return nil
}

// ProcessStats reports the child process state for status surfaces.
func (s *server) ProcessStats() process.Stats {
	return s.proc.Stats()
}
