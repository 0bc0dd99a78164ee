package protocol

import (
	"encoding/binary"
	"fmt"
)

// TFTP opcodes, RFC 1350 read side only (RRQ/DATA/ACK/ERROR).
const (
	TFTPOpRRQ   uint16 = 1
	TFTPOpDATA  uint16 = 3
	TFTPOpACK   uint16 = 4
	TFTPOpERROR uint16 = 5

	TFTPPort       = 69
	TFTPBlockSize  = 512
	tftpHeaderSize = 4
)

// TFTPRRQ is a decoded read request: the filename the device asked for and
// its requested transfer mode ("octet", "netascii", ...).
type TFTPRRQ struct {
	Filename string
	Mode     string
}

// DecodeTFTPRRQ parses an RRQ packet body (opcode already stripped by the
// caller via DecodeTFTPOpcode).
func DecodeTFTPRRQ(b []byte) (*TFTPRRQ, error) {
	fields, err := splitNulTerminated(b, 2)
	if err != nil {
		return nil, fmt.Errorf("tftp: rrq: %w", err)
	}
	return &TFTPRRQ{Filename: fields[0], Mode: fields[1]}, nil
}

// EncodeTFTPRRQ builds an RRQ packet, the client side of the exchange. The
// core never sends one; this exists for tests that need to inject the
// requests real devices make.
func EncodeTFTPRRQ(filename, mode string) []byte {
	buf := make([]byte, 2, 2+len(filename)+1+len(mode)+1)
	binary.BigEndian.PutUint16(buf[0:2], TFTPOpRRQ)
	buf = append(buf, filename...)
	buf = append(buf, 0)
	buf = append(buf, mode...)
	buf = append(buf, 0)
	return buf
}

func splitNulTerminated(b []byte, n int) ([]string, error) {
	fields := make([]string, 0, n)
	start := 0
	for i, c := range b {
		if c != 0 {
			continue
		}
		fields = append(fields, string(b[start:i]))
		start = i + 1
		if len(fields) == n {
			return fields, nil
		}
	}
	return nil, fmt.Errorf("expected %d NUL-terminated fields, got %d", n, len(fields))
}

// DecodeTFTPOpcode reads the 2-byte opcode prefix shared by every TFTP
// packet type.
func DecodeTFTPOpcode(b []byte) (uint16, []byte, error) {
	if len(b) < 2 {
		return 0, nil, fmt.Errorf("tftp: short packet (%d bytes)", len(b))
	}
	return binary.BigEndian.Uint16(b[0:2]), b[2:], nil
}

// DecodeTFTPACK parses an ACK packet body.
func DecodeTFTPACK(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("tftp: short ack (%d bytes)", len(b))
	}
	return binary.BigEndian.Uint16(b[0:2]), nil
}

// EncodeTFTPACK builds an ACK packet for block, the client side of the
// exchange; exists for tests injecting device behaviour.
func EncodeTFTPACK(block uint16) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], TFTPOpACK)
	binary.BigEndian.PutUint16(buf[2:4], block)
	return buf
}

// EncodeTFTPDATA builds a DATA packet for block with up to TFTPBlockSize
// bytes of payload. A payload shorter than TFTPBlockSize signals end of
// transfer per RFC 1350.
func EncodeTFTPDATA(block uint16, payload []byte) []byte {
	buf := make([]byte, tftpHeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], TFTPOpDATA)
	binary.BigEndian.PutUint16(buf[2:4], block)
	copy(buf[4:], payload)
	return buf
}

// EncodeTFTPError builds an ERROR packet (code 0 = "Not defined" is the only
// code this core ever needs to emit; a missing image is handled upstream of
// the TFTP driver as a NO_FLASH classification instead).
func EncodeTFTPError(code uint16, message string) []byte {
	buf := make([]byte, tftpHeaderSize+len(message)+1)
	binary.BigEndian.PutUint16(buf[0:2], TFTPOpERROR)
	binary.BigEndian.PutUint16(buf[2:4], code)
	copy(buf[4:], message)
	return buf
}
