package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/skybridge-obs/skybridge-core/internal/protocol"
)

// serialPort is the slice of go.bug.st/serial.Port this transport
// needs. Tests substitute a fake.
type serialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(time.Duration) error
}

// serialLink speaks the wire protocol directly over a serial port.
// The port is opened synchronously at construction; a port that breaks
// afterwards fails the slot rather than being reopened, since blindly
// reattaching to a serial adapter can seize a device another process
// now owns.
type serialLink struct {
	cfg    Config
	logger Logger

	mu      sync.Mutex
	port    serialPort
	status  Status
	decoder protocol.Decoder
	readBuf []byte
	pending *pendingGoto
	last    *PositionSample
	closed  bool
}

func newSerial(cfg Config) (*serialLink, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrConnectFailure, cfg.Device, err)
	}

	cfg.Logger.Info("serial port open",
		"slot", cfg.Slot,
		"device", cfg.Device,
		"baud", cfg.BaudRate,
	)

	return newSerialWithPort(cfg, port), nil
}

func newSerialWithPort(cfg Config, port serialPort) *serialLink {
	return &serialLink{
		cfg:     cfg,
		logger:  cfg.Logger,
		port:    port,
		status:  StatusConnected,
		readBuf: make([]byte, readBufferSize),
	}
}

func (s *serialLink) Communicate(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.status != StatusConnected {
		return nil
	}

	if err := s.drainLocked(now); err != nil {
		return err
	}
	if s.status == StatusConnected {
		s.flushLocked()
	}
	return nil
}

// drainLocked reads buffered bytes off the port. go.bug.st reports a
// read timeout as (0, nil), which ends the drain for this tick.
func (s *serialLink) drainLocked(now time.Time) error {
	if err := s.port.SetReadTimeout(drainWindow); err != nil {
		s.failLocked(err)
		return fmt.Errorf("slot %d: %w", s.cfg.Slot, err)
	}

	for {
		n, err := s.port.Read(s.readBuf)
		if n > 0 {
			s.decoder.Feed(s.readBuf[:n])
			if ferr := s.consumeFramesLocked(now); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			s.failLocked(err)
			return fmt.Errorf("slot %d: %w", s.cfg.Slot, err)
		}
		if n == 0 {
			return nil // timeout, drained for this tick
		}
	}
}

func (s *serialLink) consumeFramesLocked(now time.Time) error {
	for {
		frame, err := s.decoder.Next()
		if err != nil {
			s.failLocked(err)
			return fmt.Errorf("slot %d: %w", s.cfg.Slot, err)
		}
		if frame == nil {
			return nil
		}

		report, err := protocol.ParsePositionReport(frame)
		if errors.Is(err, protocol.ErrUnknownType) {
			s.logger.Debug("skipping unknown message type",
				"slot", s.cfg.Slot,
				"type", protocol.FrameType(frame),
			)
			continue
		}
		if err != nil {
			s.failLocked(err)
			return fmt.Errorf("slot %d: %w", s.cfg.Slot, err)
		}

		s.last = &PositionSample{
			Direction:  report.Direction,
			Status:     report.Status,
			ObservedAt: report.Time,
			ReceivedAt: now,
		}
	}
}

// flushLocked writes the queued goto. Frames are 20 bytes; the OS tty
// buffer absorbs them without blocking.
func (s *serialLink) flushLocked() {
	if s.pending == nil {
		return
	}
	cmd := *s.pending

	if _, err := s.port.Write(protocol.EncodeGoto(cmd.target, cmd.at)); err != nil {
		s.failLocked(err)
		return
	}
	s.pending = nil
	s.logger.Debug("goto transmitted", "slot", s.cfg.Slot)
}

func (s *serialLink) failLocked(err error) {
	s.logger.Error("serial transport failed",
		"slot", s.cfg.Slot,
		"device", s.cfg.Device,
		"error", err,
	)
	s.port.Close()
	s.decoder.Reset()
	s.pending = nil
	s.status = StatusFailed
}

func (s *serialLink) SendGoto(target protocol.Vec3, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.status != StatusConnected {
		return
	}
	s.pending = &pendingGoto{target: target, at: at}
}

// SyncPosition is not expressible on the wire; serial devices cannot be
// synced from here.
func (s *serialLink) SyncPosition(protocol.Vec3) bool {
	return false
}

func (s *serialLink) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *serialLink) Position() (PositionSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return PositionSample{}, false
	}
	return *s.last, true
}

func (s *serialLink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.pending = nil
	if s.status != StatusFailed {
		s.port.Close()
	}
	s.status = StatusDisconnected
	return nil
}
