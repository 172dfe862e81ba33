package telescope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skybridge-obs/skybridge-core/internal/protocol"
)

// ErrNoDirection is returned when a coordinate payload carries neither a
// vector nor an RA/dec pair.
var ErrNoDirection = errors.New("telescope: direction required (x/y/z or ra_hours/dec_degrees)")

// DirectionRequest is the coordinate payload accepted by the control
// surfaces (REST bodies and MQTT command messages). Callers supply either
// an explicit equatorial unit vector or an RA/dec pair; when both forms
// are present the vector wins.
type DirectionRequest struct {
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Z          *float64 `json:"z,omitempty"`
	RAHours    *float64 `json:"ra_hours,omitempty"`
	DecDegrees *float64 `json:"dec_degrees,omitempty"`
}

// Vector resolves the request to a unit direction vector.
func (r DirectionRequest) Vector() (protocol.Vec3, error) {
	if r.X != nil && r.Y != nil && r.Z != nil {
		v := protocol.Vec3{X: *r.X, Y: *r.Y, Z: *r.Z}
		if v.IsZero() {
			return protocol.Vec3{}, errors.New("telescope: zero direction vector")
		}
		return v.Normalized(), nil
	}
	if r.RAHours != nil && r.DecDegrees != nil {
		return protocol.VectorFromRADec(*r.RAHours, *r.DecDegrees), nil
	}
	return protocol.Vec3{}, ErrNoDirection
}

// ParseDirection decodes a JSON coordinate payload into a unit vector.
// Both payload forms are accepted:
//
//	{"x": -0.5, "y": 0.7, "z": 0.5}
//	{"ra_hours": 5.5, "dec_degrees": -5.4}
func ParseDirection(payload []byte) (protocol.Vec3, error) {
	var req DirectionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return protocol.Vec3{}, fmt.Errorf("telescope: invalid direction payload: %w", err)
	}
	return req.Vector()
}
