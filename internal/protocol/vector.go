package protocol

import "math"

// Vec3 is a direction in space as a 3D unit vector in rectangular
// equatorial coordinates. The frame tag (J2000 or JNow) travels with the
// slot description, not with the vector; this package never converts
// between frames.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Length returns the Euclidean length of the vector.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalized returns the vector scaled to unit length.
// The zero vector is returned unchanged.
func (v Vec3) Normalized() Vec3 {
	length := v.Length()
	if length == 0 {
		return v
	}
	return Vec3{X: v.X / length, Y: v.Y / length, Z: v.Z / length}
}

// IsZero reports whether all components are zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Angles converts the vector to right ascension and declination in
// radians. RA is normalised to [0, 2π); Dec is in [-π/2, π/2].
// The zero vector yields (0, 0).
func (v Vec3) Angles() (ra, dec float64) {
	ra = math.Atan2(v.Y, v.X)
	if ra < 0 {
		ra += 2 * math.Pi
	}
	dec = math.Atan2(v.Z, math.Sqrt(v.X*v.X+v.Y*v.Y))
	return ra, dec
}

// VectorFromAngles builds a unit direction vector from right ascension
// and declination in radians.
func VectorFromAngles(ra, dec float64) Vec3 {
	cosDec := math.Cos(dec)
	return Vec3{
		X: math.Cos(ra) * cosDec,
		Y: math.Sin(ra) * cosDec,
		Z: math.Sin(dec),
	}
}

// VectorFromRADec builds a unit direction vector from right ascension in
// hours and declination in degrees, the units GUIs and catalogs use.
func VectorFromRADec(raHours, decDegrees float64) Vec3 {
	const (
		hoursToRadians   = math.Pi / 12
		degreesToRadians = math.Pi / 180
	)
	return VectorFromAngles(raHours*hoursToRadians, decDegrees*degreesToRadians)
}

// RADec converts the vector to right ascension in hours [0, 24) and
// declination in degrees [-90, 90].
func (v Vec3) RADec() (raHours, decDegrees float64) {
	ra, dec := v.Angles()
	return ra * 12 / math.Pi, dec * 180 / math.Pi
}

// Angle fixed-point conversion factor: 0x80000000 units per π radians,
// so a uint32 right ascension spans the full circle and an int32
// declination spans ±π/2 at 0x40000000.
const angleUnitsPerRadian = float64(0x80000000) / math.Pi

// packAngles converts RA/Dec radians to the wire fixed-point form.
func packAngles(ra, dec float64) (raInt uint32, decInt int32) {
	raInt = uint32(math.Floor(0.5 + ra*angleUnitsPerRadian))
	decInt = int32(math.Floor(0.5 + dec*angleUnitsPerRadian))
	return raInt, decInt
}

// unpackAngles converts the wire fixed-point form to RA/Dec radians.
func unpackAngles(raInt uint32, decInt int32) (ra, dec float64) {
	ra = float64(raInt) / angleUnitsPerRadian
	dec = float64(decInt) / angleUnitsPerRadian
	return ra, dec
}
