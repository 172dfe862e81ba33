package transport

import (
	"math"
	"sync"
	"time"

	"github.com/skybridge-obs/skybridge-core/internal/protocol"
)

// Device status codes reported by the simulated mount in its position
// samples.
const (
	DeviceStatusStopped int32 = 0
	DeviceStatusMoving  int32 = 1
)

// virtualSlewRate is the simulated slew speed in radians per second.
const virtualSlewRate = math.Pi / 6

// maxVirtualStep caps the time step so a stalled tick cannot teleport
// the mount.
const maxVirtualStep = time.Second

// virtual is the in-process simulated mount. It is always reachable,
// slews toward goto targets along the great circle at a fixed rate and
// accepts sync. Useful for exercising the full control path without
// hardware.
type virtual struct {
	cfg    Config
	logger Logger

	mu       sync.Mutex
	status   Status
	current  protocol.Vec3
	target   protocol.Vec3
	moving   bool
	last     *PositionSample
	lastTick time.Time
	closed   bool
}

func newVirtual(cfg Config) *virtual {
	// Parked at the north celestial pole.
	home := protocol.Vec3{Z: 1}
	return &virtual{
		cfg:     cfg,
		logger:  cfg.Logger,
		status:  StatusConnected,
		current: home,
		target:  home,
	}
}

func (v *virtual) Communicate(now time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}

	dt := maxVirtualStep
	if !v.lastTick.IsZero() {
		if elapsed := now.Sub(v.lastTick); elapsed < dt {
			dt = elapsed
		}
	}
	v.lastTick = now

	if v.moving {
		v.current = stepToward(v.current, v.target, virtualSlewRate*dt.Seconds())
		if angleBetween(v.current, v.target) < 1e-9 {
			v.current = v.target
			v.moving = false
			v.logger.Debug("simulated slew complete", "slot", v.cfg.Slot)
		}
	}

	deviceStatus := DeviceStatusStopped
	if v.moving {
		deviceStatus = DeviceStatusMoving
	}
	v.last = &PositionSample{
		Direction:  v.current,
		Status:     deviceStatus,
		ObservedAt: now,
		ReceivedAt: now,
	}
	return nil
}

func (v *virtual) SendGoto(target protocol.Vec3, _ time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	normalized := target.Normalized()
	if normalized.IsZero() {
		return
	}
	v.target = normalized
	v.moving = true
}

// SyncPosition repositions the simulated axes instantly.
func (v *virtual) SyncPosition(target protocol.Vec3) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	normalized := target.Normalized()
	if normalized.IsZero() {
		return false
	}
	v.current = normalized
	v.target = normalized
	v.moving = false
	return true
}

func (v *virtual) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

func (v *virtual) Position() (PositionSample, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.last == nil {
		return PositionSample{}, false
	}
	return *v.last, true
}

func (v *virtual) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.status = StatusDisconnected
	return nil
}

// angleBetween returns the great-circle angle between two unit vectors.
func angleBetween(a, b protocol.Vec3) float64 {
	dot := a.X*b.X + a.Y*b.Y + a.Z*b.Z
	if dot > 1 {
		dot = 1
	}
	if dot < -1 {
		dot = -1
	}
	return math.Acos(dot)
}

// stepToward rotates unit vector a toward unit vector b by step
// radians along the great circle, clamping at b.
func stepToward(a, b protocol.Vec3, step float64) protocol.Vec3 {
	angle := angleBetween(a, b)
	if angle <= step {
		return b
	}

	sinAngle := math.Sin(angle)
	if sinAngle < 1e-12 {
		// Antipodal: detour through an orthogonal axis.
		detour := protocol.Vec3{X: 1}
		if math.Abs(a.X) > 0.9 {
			detour = protocol.Vec3{Y: 1}
		}
		return stepToward(a, detour, step)
	}

	fa := math.Sin(angle-step) / sinAngle
	fb := math.Sin(step) / sinAngle
	return protocol.Vec3{
		X: fa*a.X + fb*b.X,
		Y: fa*a.Y + fb*b.Y,
		Z: fa*a.Z + fb*b.Z,
	}.Normalized()
}
