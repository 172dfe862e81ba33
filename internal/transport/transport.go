package transport

import (
	"fmt"
	"io"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/protocol"
)

// Status is the connection state of a transport.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusFailed       Status = "failed"
)

// Connection kinds dispatched by the factory.
const (
	// KindLocal spawns a device server process and connects to it over
	// loopback TCP.
	KindLocal = "local"

	// KindRemote connects to an already running device server over TCP.
	KindRemote = "remote"

	// KindSerial talks to the mount directly over a serial port.
	KindSerial = "serial"

	// KindASCOMLocal and KindASCOMRemote drive an ASCOM Alpaca HTTP
	// endpoint, on this machine or elsewhere.
	KindASCOMLocal  = "ascom_local"
	KindASCOMRemote = "ascom_remote"

	// KindVirtual is the in-process simulated mount.
	KindVirtual = "virtual"
)

// KnownKind reports whether kind is one the factory can construct.
func KnownKind(kind string) bool {
	switch kind {
	case KindLocal, KindRemote, KindSerial, KindASCOMLocal, KindASCOMRemote, KindVirtual:
		return true
	}
	return false
}

// PositionSample is the last position received from a device.
type PositionSample struct {
	// Direction is the reported pointing direction as a unit vector.
	Direction protocol.Vec3 `json:"direction"`

	// Status is the device status code from the report, 0 when healthy.
	Status int32 `json:"status"`

	// ObservedAt is the device-side timestamp of the report.
	ObservedAt time.Time `json:"observed_at"`

	// ReceivedAt is when this process received the report.
	ReceivedAt time.Time `json:"received_at"`
}

// Transport is a live communication channel to one telescope. A
// transport belongs to exactly one slot; the registry is the only
// caller of Communicate and Close, so implementations synchronise only
// against their own background goroutines (dialers, HTTP pollers).
type Transport interface {
	// Communicate performs one bounded tick: drain pending inbound
	// data, update the last known position, flush the queued command.
	// It never blocks beyond a small read/write deadline. A returned
	// error means the transport has failed and stays failed.
	Communicate(now time.Time) error

	// SendGoto queues a slew command. A queued command that has not
	// been transmitted yet is superseded.
	SendGoto(target protocol.Vec3, at time.Time)

	// SyncPosition tells the device its current pointing matches
	// target. Returns false when the variant cannot sync.
	SyncPosition(target protocol.Vec3) bool

	// Status returns the current connection state.
	Status() Status

	// Position returns the last known position, false before the
	// first report.
	Position() (PositionSample, bool)

	// Close releases the channel and any owned process. Idempotent.
	Close() error
}

// Logger is the logging seam for transports.
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

// Default timeouts for transport construction and I/O.
const (
	defaultConnectTimeout   = 10 * time.Second
	defaultReadinessTimeout = 10 * time.Second
	defaultWriteTimeout     = time.Second
	defaultReconnectDelay   = 5 * time.Second
	defaultBaudRate         = 9600

	// drainWindow bounds the inbound drain each tick. Reads share one
	// absolute deadline so a chatty device cannot monopolise the tick.
	drainWindow = time.Millisecond

	readBufferSize = 512
)

// Config carries everything the factory needs to build one transport.
type Config struct {
	// Slot is the owning slot, used only for logging.
	Slot int

	// Name is the display name, used only for logging.
	Name string

	// Kind selects the variant (Kind* constants).
	Kind string

	// Host and Port address the device server for local/remote kinds.
	Host string
	Port int

	// Device is the serial port path for the serial kind.
	Device string

	// BaudRate for the serial kind. Defaults to 9600.
	BaudRate int

	// Delay is the device time lag; the Alpaca variants use it as
	// their poll cadence.
	Delay time.Duration

	// BaseURL is the Alpaca server root, e.g. "http://127.0.0.1:11111".
	BaseURL string

	// APIDevice is the Alpaca telescope device number.
	APIDevice int

	// ServerBinary is the device server executable for the local kind.
	ServerBinary string

	// ServerLog receives the spawned server's stdout/stderr when set.
	ServerLog io.Writer

	// ConnectTimeout bounds dials and the Alpaca connect call.
	ConnectTimeout time.Duration

	// ReadinessTimeout bounds the wait for a spawned server to accept
	// connections.
	ReadinessTimeout time.Duration

	// StopGracePeriod bounds SIGTERM-to-SIGKILL escalation for the
	// spawned server.
	StopGracePeriod time.Duration

	// Logger receives transport events. Defaults to a no-op.
	Logger Logger
}

// Validate checks the fields required by the configured kind.
func (c Config) Validate() error {
	switch c.Kind {
	case KindLocal:
		if c.ServerBinary == "" {
			return fmt.Errorf("kind %s: server binary required", c.Kind)
		}
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("kind %s: port %d out of range", c.Kind, c.Port)
		}
	case KindRemote:
		if c.Host == "" {
			return fmt.Errorf("kind %s: host required", c.Kind)
		}
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("kind %s: port %d out of range", c.Kind, c.Port)
		}
	case KindSerial:
		if c.Device == "" {
			return fmt.Errorf("kind %s: serial device required", c.Kind)
		}
	case KindASCOMLocal, KindASCOMRemote:
		if c.BaseURL == "" {
			return fmt.Errorf("kind %s: base URL required", c.Kind)
		}
	case KindVirtual:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.ReadinessTimeout == 0 {
		c.ReadinessTimeout = defaultReadinessTimeout
	}
	if c.BaudRate == 0 {
		c.BaudRate = defaultBaudRate
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// New constructs the transport for cfg.Kind. Construction failures
// leave no partial resources behind: a spawned process that never
// became reachable is terminated before New returns.
func New(cfg Config) (Transport, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindRemote:
		return newSocket(cfg), nil
	case KindLocal:
		return newServer(cfg)
	case KindSerial:
		return newSerial(cfg)
	case KindASCOMLocal, KindASCOMRemote:
		return newAlpaca(cfg)
	case KindVirtual:
		return newVirtual(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
