package protocol

import (
	"encoding/binary"
	"fmt"
)

// IPv4Header is the minimal subset of an IPv4 header the TFTP-client
// delivery path needs: no options, no fragmentation support (the devices
// this targets never fragment a TFTP exchange).
type IPv4Header struct {
	TotalLength uint16
	Protocol    uint8
	SourceIP    [4]byte
	DestIP      [4]byte
}

const (
	// ProtoUDP is the IPv4 protocol number for UDP, the only transport the
	// core's TFTP path needs to recognise.
	ProtoUDP      = 17
	ipv4ProtoUDP  = ProtoUDP
	ipv4HeaderLen = 20
)

// DecodeIPv4 parses a minimal IPv4 header and returns it along with the
// offset of the payload that follows it. A header whose checksum does not
// verify is rejected.
func DecodeIPv4(b []byte) (*IPv4Header, int, error) {
	if len(b) < ipv4HeaderLen {
		return nil, 0, fmt.Errorf("ipv4: short header (%d bytes)", len(b))
	}

	versionIHL := b[0]
	version := versionIHL >> 4
	ihl := int(versionIHL&0x0f) * 4
	if version != 4 {
		return nil, 0, fmt.Errorf("ipv4: unexpected version %d", version)
	}
	if ihl < ipv4HeaderLen || len(b) < ihl {
		return nil, 0, fmt.Errorf("ipv4: bad header length %d", ihl)
	}
	if ipChecksum(b[:ihl]) != 0 {
		return nil, 0, fmt.Errorf("ipv4: bad header checksum")
	}

	h := &IPv4Header{
		TotalLength: binary.BigEndian.Uint16(b[2:4]),
		Protocol:    b[9],
	}
	copy(h.SourceIP[:], b[12:16])
	copy(h.DestIP[:], b[16:20])

	return h, ihl, nil
}

// EncodeIPv4UDP builds a minimal, option-free IPv4/UDP header carrying
// payload. The checksum is computed over the header only, per RFC 791 (UDP
// carries its own optional checksum, set to zero here as RFC 768 permits
// over IPv4).
func EncodeIPv4UDP(src, dst [4]byte, srcPort, dstPort uint16, payload []byte) ([]byte, error) {
	udpLen := 8 + len(payload)
	totalLen := ipv4HeaderLen + udpLen
	if totalLen > 0xffff {
		return nil, fmt.Errorf("ipv4: payload too large (%d bytes)", len(payload))
	}

	buf := make([]byte, totalLen)

	buf[0] = 0x45 // version 4, IHL 5 (20 bytes)
	buf[1] = 0    // DSCP/ECN
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(buf[4:6], 0) // identification
	binary.BigEndian.PutUint16(buf[6:8], 0) // flags/fragment offset
	buf[8] = 64                             // TTL
	buf[9] = ipv4ProtoUDP
	// checksum at buf[10:12] filled in below
	copy(buf[12:16], src[:])
	copy(buf[16:20], dst[:])

	csum := ipChecksum(buf[:ipv4HeaderLen])
	binary.BigEndian.PutUint16(buf[10:12], csum)

	udp := buf[ipv4HeaderLen:]
	binary.BigEndian.PutUint16(udp[0:2], srcPort)
	binary.BigEndian.PutUint16(udp[2:4], dstPort)
	binary.BigEndian.PutUint16(udp[4:6], uint16(udpLen))
	binary.BigEndian.PutUint16(udp[6:8], 0) // checksum disabled
	copy(udp[8:], payload)

	return buf, nil
}

func ipChecksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
