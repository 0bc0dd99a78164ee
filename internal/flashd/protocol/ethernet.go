// Package protocol parses and emits the wire formats the core touches:
// Ethernet and ARP via the mdlayher codecs, and the IPv4/UDP/TFTP framing
// that RFC 1350's read side needs (hand-rolled: no library in the example
// corpus or the wider ecosystem covers this minimal a subset of IPv4/UDP/TFTP,
// and bit-exact framing here is a core, compatibility-critical concern, not
// an ambient one).
package protocol

import (
	"fmt"
	"net"

	"github.com/mdlayher/ethernet"
)

// EtherTypeARP and EtherTypeIPv4 are the two frame types the core dispatches
// on.
const (
	EtherTypeARP  = ethernet.EtherTypeARP
	EtherTypeIPv4 = ethernet.EtherTypeIPv4
)

// DecodeEthernet unmarshals a raw frame read from the transport.
func DecodeEthernet(b []byte) (*ethernet.Frame, error) {
	f := new(ethernet.Frame)
	if err := f.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("ethernet: %w", err)
	}
	return f, nil
}

// EncodeEthernet marshals a frame for transmission.
func EncodeEthernet(dst, src net.HardwareAddr, etherType ethernet.EtherType, payload []byte) ([]byte, error) {
	f := &ethernet.Frame{
		Destination: dst,
		Source:      src,
		EtherType:   etherType,
		Payload:     payload,
	}
	return f.MarshalBinary()
}
