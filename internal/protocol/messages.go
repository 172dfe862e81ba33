package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Wire format shared by all messages: a little-endian header of
//
//	LENGTH uint16   total frame size including this header
//	TYPE   uint16   message type
//
// followed by the type-specific payload. Type 0 is a slew command when
// sent to a device and a position report when received from one.
const (
	// HeaderSize is the fixed size of the LENGTH+TYPE prefix.
	HeaderSize = 4

	// MaxFrameSize bounds any frame on the wire. Larger declared
	// lengths indicate a desynchronised or hostile stream.
	MaxFrameSize = 120

	// MsgTypeGoto identifies a slew command (client to device).
	MsgTypeGoto uint16 = 0

	// MsgTypePosition identifies a position report (device to client).
	MsgTypePosition uint16 = 0

	// GotoFrameSize is the exact size of a slew command frame.
	GotoFrameSize = 20

	// PositionFrameSize is the exact size of a position report frame.
	PositionFrameSize = 24
)

// StatusOK is the STATUS value a healthy device reports alongside its
// position. Non-zero values are device-defined problem codes.
const StatusOK int32 = 0

// GotoCommand is a decoded slew command.
type GotoCommand struct {
	Time      time.Time
	Direction Vec3
}

// PositionReport is a decoded device position report.
type PositionReport struct {
	Time      time.Time
	Direction Vec3
	Status    int32
}

// EncodeGoto builds a slew command frame for the given target direction.
// The timestamp travels as microseconds since the Unix epoch.
func EncodeGoto(target Vec3, at time.Time) []byte {
	ra, dec := target.Angles()
	raInt, decInt := packAngles(ra, dec)

	buf := make([]byte, GotoFrameSize)
	binary.LittleEndian.PutUint16(buf[0:2], GotoFrameSize)
	binary.LittleEndian.PutUint16(buf[2:4], MsgTypeGoto)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(at.UnixMicro()))
	binary.LittleEndian.PutUint32(buf[12:16], raInt)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(decInt))
	return buf
}

// EncodeCurrentPosition builds a position report frame as a device would
// send it. Used by the simulated mount and by test harnesses standing in
// for real devices.
func EncodeCurrentPosition(direction Vec3, status int32, at time.Time) []byte {
	ra, dec := direction.Angles()
	raInt, decInt := packAngles(ra, dec)

	buf := make([]byte, PositionFrameSize)
	binary.LittleEndian.PutUint16(buf[0:2], PositionFrameSize)
	binary.LittleEndian.PutUint16(buf[2:4], MsgTypePosition)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(at.UnixMicro()))
	binary.LittleEndian.PutUint32(buf[12:16], raInt)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(decInt))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(status))
	return buf
}

// FrameType returns the TYPE field of a complete frame.
func FrameType(frame []byte) uint16 {
	return binary.LittleEndian.Uint16(frame[2:4])
}

// ParseGoto decodes a slew command frame.
func ParseGoto(frame []byte) (GotoCommand, error) {
	if err := checkFrame(frame, MsgTypeGoto, GotoFrameSize); err != nil {
		return GotoCommand{}, err
	}

	us := int64(binary.LittleEndian.Uint64(frame[4:12]))
	raInt := binary.LittleEndian.Uint32(frame[12:16])
	decInt := int32(binary.LittleEndian.Uint32(frame[16:20]))
	ra, dec := unpackAngles(raInt, decInt)

	return GotoCommand{
		Time:      time.UnixMicro(us).UTC(),
		Direction: VectorFromAngles(ra, dec),
	}, nil
}

// ParsePositionReport decodes a position report frame.
func ParsePositionReport(frame []byte) (PositionReport, error) {
	if err := checkFrame(frame, MsgTypePosition, PositionFrameSize); err != nil {
		return PositionReport{}, err
	}

	us := int64(binary.LittleEndian.Uint64(frame[4:12]))
	raInt := binary.LittleEndian.Uint32(frame[12:16])
	decInt := int32(binary.LittleEndian.Uint32(frame[16:20]))
	status := int32(binary.LittleEndian.Uint32(frame[20:24]))
	ra, dec := unpackAngles(raInt, decInt)

	return PositionReport{
		Time:      time.UnixMicro(us).UTC(),
		Direction: VectorFromAngles(ra, dec),
		Status:    status,
	}, nil
}

func checkFrame(frame []byte, wantType uint16, wantSize int) error {
	if len(frame) < HeaderSize {
		return fmt.Errorf("%w: frame of %d bytes", ErrFraming, len(frame))
	}
	declared := int(binary.LittleEndian.Uint16(frame[0:2]))
	if declared != len(frame) {
		return fmt.Errorf("%w: declared length %d in frame of %d bytes", ErrFraming, declared, len(frame))
	}
	if got := FrameType(frame); got != wantType {
		return fmt.Errorf("%w: type %d", ErrUnknownType, got)
	}
	if len(frame) != wantSize {
		return fmt.Errorf("%w: type %d frame of %d bytes, want %d", ErrFraming, wantType, len(frame), wantSize)
	}
	return nil
}
