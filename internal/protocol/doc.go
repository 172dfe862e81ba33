// Package protocol implements the binary telescope client protocol
// spoken over TCP between the core and telescope server processes or
// remote devices.
//
// Every message starts with a little-endian LENGTH uint16 (including
// the header itself) and TYPE uint16. Type 0 carries a slew command in
// the client-to-device direction and a position report in the
// device-to-client direction. Angles travel as fixed-point integers
// with 0x80000000 units per π radians; timestamps as microseconds since
// the Unix epoch.
//
// The package is pure encoding and math. It holds no sockets and no
// state beyond the Decoder's read buffer.
package protocol
