package telescope

import (
	"fmt"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/catalog"
	"github.com/skybridge-obs/skybridge-core/internal/transport"
)

// Slot bounds. Slot numbers are stable operator-facing identifiers, so
// the range is fixed rather than growing with use.
const (
	MinSlot = 1
	MaxSlot = 9
)

// PositionSample re-exports the transport sample type so hosts of the
// registry do not need to import the transport package.
type PositionSample = transport.PositionSample

// Delay bounds in microseconds.
const (
	MinDelay = 1
	MaxDelay = 10_000_000
)

// Equinox frame tags. Carried through to clients, never converted.
const (
	EquinoxJ2000 = "J2000"
	EquinoxJNow  = "JNow"
)

// Description is the persisted per-slot telescope record. Stored as a
// value; every accessor hands out copies.
type Description struct {
	// Name is the operator-facing display name.
	Name string `json:"name"`

	// Kind selects the transport variant (transport.Kind* constants).
	Kind string `json:"kind"`

	// Host and Port address the device server for local/remote kinds.
	// For local, Port is the listen port handed to the spawned server.
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// Device is the serial port path for the serial kind.
	Device string `json:"device,omitempty"`

	// DeviceModel names the catalog entry that resolves the server
	// executable for the local kind.
	DeviceModel string `json:"device_model,omitempty"`

	// ServerExecutable overrides the catalog's executable when set.
	ServerExecutable string `json:"server,omitempty"`

	// Delay is the device poll delay in microseconds.
	Delay int64 `json:"delay,omitempty"`

	// Equinox tags the coordinate frame, J2000 (default) or JNow.
	Equinox string `json:"equinox,omitempty"`

	// BaseURL and APIDevice address an ASCOM Alpaca endpoint.
	BaseURL   string `json:"base_url,omitempty"`
	APIDevice int    `json:"api_device,omitempty"`

	// ConnectAtStartup starts this slot automatically when the core
	// boots.
	ConnectAtStartup bool `json:"connect_at_startup,omitempty"`
}

// Validate checks the description for a start or an API write. Adding
// to a slot never validates; only starting and the API surface do.
func (d Description) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !transport.KnownKind(d.Kind) {
		return fmt.Errorf("unknown kind %q", d.Kind)
	}

	switch d.Kind {
	case transport.KindLocal:
		if d.DeviceModel == "" && d.ServerExecutable == "" {
			return fmt.Errorf("kind %s: device model or server executable required", d.Kind)
		}
		if d.Port < 1 || d.Port > 65535 {
			return fmt.Errorf("kind %s: port %d out of range", d.Kind, d.Port)
		}
	case transport.KindRemote:
		if d.Host == "" {
			return fmt.Errorf("kind %s: host required", d.Kind)
		}
		if d.Port < 1 || d.Port > 65535 {
			return fmt.Errorf("kind %s: port %d out of range", d.Kind, d.Port)
		}
	case transport.KindSerial:
		if d.Device == "" {
			return fmt.Errorf("kind %s: serial device required", d.Kind)
		}
	case transport.KindASCOMLocal, transport.KindASCOMRemote:
		if d.BaseURL == "" {
			return fmt.Errorf("kind %s: base URL required", d.Kind)
		}
		if d.APIDevice < 0 {
			return fmt.Errorf("kind %s: api device %d out of range", d.Kind, d.APIDevice)
		}
	}

	if d.Delay != 0 && (d.Delay < MinDelay || d.Delay > MaxDelay) {
		return fmt.Errorf("delay %d out of range [%d, %d]", d.Delay, MinDelay, MaxDelay)
	}
	if d.Equinox != "" && d.Equinox != EquinoxJ2000 && d.Equinox != EquinoxJNow {
		return fmt.Errorf("unknown equinox %q", d.Equinox)
	}
	return nil
}

// withDefaults returns a copy with unset optional fields filled in.
func (d Description) withDefaults() Description {
	if d.Delay == 0 {
		d.Delay = catalog.DefaultDelayMicroseconds
	}
	if d.Equinox == "" {
		d.Equinox = EquinoxJ2000
	}
	return d
}

// DelayDuration returns the poll delay as a time.Duration.
func (d Description) DelayDuration() time.Duration {
	return time.Duration(d.Delay) * time.Microsecond
}

// DefaultPort returns the conventional device server port for a slot.
func DefaultPort(slot int) int {
	return 10000 + slot
}

func validSlot(slot int) bool {
	return slot >= MinSlot && slot <= MaxSlot
}
