// Package wire implements the firmware framing protocol: command frames
// outbound, fixed-size acknowledgments inbound, and the connection
// handshake.
//
// All integers are big-endian. An outbound frame is:
//
//	seq uint32 | len uint8 | payload | crc uint16
//
// where payload is the command encoding (opcode byte plus, for moves, scaled
// coordinates and speed) and crc is CRC-16/CCITT-FALSE over everything
// before it. An inbound acknowledgment is exactly six bytes:
//
//	seq uint32 | status uint8 | code uint8
//
// Coordinates travel as signed hundredths of a millimetre and speeds as
// tenths of a millimetre per second; values on that grid round-trip
// exactly through encode/decode.
package wire
