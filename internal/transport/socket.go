package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/protocol"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// pendingGoto is the queued slew command. At most one is held; a newer
// command supersedes an untransmitted one.
type pendingGoto struct {
	target protocol.Vec3
	at     time.Time
}

// socket speaks the wire protocol over TCP. It backs the remote kind
// directly and the local kind through the server transport.
//
// Dialing is asynchronous: the transport starts in Connecting and the
// dial goroutine moves it to Connected or Failed, observed by the owner
// on its next tick. A connection lost after being established goes to
// Disconnected and is re-dialed on a fixed cadence; a connection that
// never established, or a desynchronised stream, is Failed and stays
// so until the slot is stopped.
type socket struct {
	cfg    Config
	logger Logger

	mu          sync.Mutex
	conn        net.Conn
	status      Status
	everUp      bool
	dialing     bool
	lastAttempt time.Time
	decoder     protocol.Decoder
	readBuf     []byte
	pending     *pendingGoto
	last        *PositionSample

	done *closeOnce

	framesRx      atomic.Uint64
	unknownFrames atomic.Uint64
	gotosTx       atomic.Uint64
	reconnects    atomic.Uint64
	lastActivity  atomic.Int64
}

func newSocket(cfg Config) *socket {
	s := &socket{
		cfg:         cfg,
		logger:      cfg.Logger,
		status:      StatusConnecting,
		readBuf:     make([]byte, readBufferSize),
		lastAttempt: time.Now(),
		done:        newCloseOnce(),
	}
	s.dialing = true
	go s.dial(false)
	return s
}

func (s *socket) addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// dial connects in the background and publishes the outcome.
func (s *socket) dial(redial bool) {
	conn, err := net.DialTimeout("tcp", s.addr(), s.cfg.ConnectTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialing = false

	if s.isClosed() {
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		if s.everUp {
			// Established once: keep trying on the redial cadence.
			s.status = StatusDisconnected
			s.logger.Debug("redial failed",
				"slot", s.cfg.Slot,
				"address", s.addr(),
				"error", err,
			)
		} else {
			s.status = StatusFailed
			s.logger.Warn("connection failed",
				"slot", s.cfg.Slot,
				"address", s.addr(),
				"error", err,
			)
		}
		return
	}

	s.conn = conn
	s.status = StatusConnected
	s.everUp = true
	s.decoder.Reset()
	s.lastActivity.Store(time.Now().Unix())
	if redial {
		s.reconnects.Add(1)
	}

	s.logger.Info("connected",
		"slot", s.cfg.Slot,
		"address", s.addr(),
	)
}

// Communicate drains inbound reports and flushes the queued command.
// All I/O shares one small absolute deadline per tick.
func (s *socket) Communicate(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}

	switch s.status {
	case StatusFailed, StatusConnecting:
		return nil
	case StatusDisconnected:
		if !s.dialing && now.Sub(s.lastAttempt) >= defaultReconnectDelay {
			s.lastAttempt = now
			s.dialing = true
			s.status = StatusConnecting
			go s.dial(true)
		}
		return nil
	}

	if err := s.drainLocked(now); err != nil {
		return err
	}
	if s.status == StatusConnected {
		s.flushLocked(now)
	}
	return nil
}

// drainLocked reads whatever the device has sent without blocking the
// tick. A framing error fails the transport; a broken connection moves
// it to Disconnected for redial.
func (s *socket) drainLocked(now time.Time) error {
	if err := s.conn.SetReadDeadline(now.Add(drainWindow)); err != nil {
		s.lostLocked(now, err)
		return nil
	}

	for {
		n, err := s.conn.Read(s.readBuf)
		if n > 0 {
			s.decoder.Feed(s.readBuf[:n])
			if ferr := s.consumeFramesLocked(now); ferr != nil {
				return ferr
			}
		}
		if err == nil {
			continue
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil // drained for this tick
		}
		s.lostLocked(now, err)
		return nil
	}
}

// consumeFramesLocked parses every complete frame in the decoder.
func (s *socket) consumeFramesLocked(now time.Time) error {
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
			s.unknownFrames.Add(1)
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
		s.framesRx.Add(1)
		s.lastActivity.Store(now.Unix())
	}
}

// flushLocked transmits the queued goto, if any.
func (s *socket) flushLocked(now time.Time) {
	if s.pending == nil {
		return
	}
	cmd := *s.pending

	frame := protocol.EncodeGoto(cmd.target, cmd.at)
	if err := s.conn.SetWriteDeadline(now.Add(defaultWriteTimeout)); err != nil {
		s.lostLocked(now, err)
		return
	}
	if _, err := s.conn.Write(frame); err != nil {
		s.lostLocked(now, err)
		return
	}

	s.pending = nil
	s.gotosTx.Add(1)
	s.lastActivity.Store(now.Unix())
	s.logger.Debug("goto transmitted", "slot", s.cfg.Slot)
}

// lostLocked handles a broken connection: drop it and schedule redial.
// The queued command is discarded with it; a command aimed at a dead
// link must not fire minutes later on a fresh one.
func (s *socket) lostLocked(now time.Time, err error) {
	s.logger.Warn("connection lost",
		"slot", s.cfg.Slot,
		"address", s.addr(),
		"error", err,
	)
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.decoder.Reset()
	s.pending = nil
	s.status = StatusDisconnected
	s.lastAttempt = now
}

// fail moves the transport to Failed from outside the tick path.
func (s *socket) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusFailed {
		return
	}
	s.failLocked(err)
}

// failLocked moves the transport to its terminal failed state.
func (s *socket) failLocked(err error) {
	s.logger.Error("transport failed",
		"slot", s.cfg.Slot,
		"address", s.addr(),
		"error", err,
	)
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.decoder.Reset()
	s.pending = nil
	s.status = StatusFailed
}

func (s *socket) SendGoto(target protocol.Vec3, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() || s.status == StatusFailed {
		return
	}
	s.pending = &pendingGoto{target: target, at: at}
}

// SyncPosition is not part of the wire protocol; socket devices cannot
// be synced from here.
func (s *socket) SyncPosition(protocol.Vec3) bool {
	return false
}

func (s *socket) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *socket) Position() (PositionSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return PositionSample{}, false
	}
	return *s.last, true
}

func (s *socket) Close() error {
	s.done.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.pending = nil
	s.status = StatusDisconnected
	return nil
}

func (s *socket) isClosed() bool {
	select {
	case <-s.done.Done():
		return true
	default:
		return false
	}
}

func (s *socket) Stats() Stats {
	return Stats{
		FramesRx:      s.framesRx.Load(),
		UnknownFrames: s.unknownFrames.Load(),
		GotosTx:       s.gotosTx.Load(),
		Reconnects:    s.reconnects.Load(),
		LastActivity:  time.Unix(s.lastActivity.Load(), 0),
	}
}
