package protocol

import (
	"encoding/binary"
	"fmt"
)

// UDPHeader is a decoded UDP header.
type UDPHeader struct {
	SourcePort uint16
	DestPort   uint16
	Length     uint16
}

// DecodeUDP parses a UDP header from b (the IPv4 payload) and returns the
// header and the payload that follows it.
func DecodeUDP(b []byte) (*UDPHeader, []byte, error) {
	if len(b) < 8 {
		return nil, nil, fmt.Errorf("udp: short header (%d bytes)", len(b))
	}

	h := &UDPHeader{
		SourcePort: binary.BigEndian.Uint16(b[0:2]),
		DestPort:   binary.BigEndian.Uint16(b[2:4]),
		Length:     binary.BigEndian.Uint16(b[4:6]),
	}

	if int(h.Length) < 8 || int(h.Length) > len(b) {
		return nil, nil, fmt.Errorf("udp: bad length %d (have %d bytes)", h.Length, len(b))
	}

	return h, b[8:h.Length], nil
}
