package protocol

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/mdlayher/arp"
)

// ARPRequest identifies an ARP opcode=REQUEST packet, the only opcode every
// router-class fingerprint tests for.
const ARPRequest = uint16(arp.OperationRequest)

// DecodedARP is the subset of an ARP packet the fingerprint predicates and
// detect_post hooks need, with addresses normalised to fixed-size arrays for
// cheap comparison and use as map/struct fields.
type DecodedARP struct {
	Operation          uint16
	SenderHardwareAddr [6]byte
	SenderIP           [4]byte
	TargetHardwareAddr [6]byte
	TargetIP           [4]byte
}

// DecodeARP unmarshals an ARP packet carried as an Ethernet payload.
func DecodeARP(b []byte) (*DecodedARP, error) {
	p := new(arp.Packet)
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("arp: %w", err)
	}

	d := &DecodedARP{Operation: uint16(p.Operation)}
	copy(d.SenderHardwareAddr[:], p.SenderHardwareAddr)
	copy(d.TargetHardwareAddr[:], p.TargetHardwareAddr)
	if p.SenderIP.Is4() {
		d.SenderIP = p.SenderIP.As4()
	}
	if p.TargetIP.Is4() {
		d.TargetIP = p.TargetIP.As4()
	}
	return d, nil
}

// EncodeARPReply synthesises a solicited/gratuitous ARP reply: sender =
// (senderIP, senderMAC), target = (targetIP, targetMAC). Used by the
// TFTP-client delivery driver to impersonate the device's expected gateway.
func EncodeARPReply(senderMAC net.HardwareAddr, senderIP [4]byte, targetMAC net.HardwareAddr, targetIP [4]byte) ([]byte, error) {
	p, err := arp.NewPacket(
		arp.OperationReply,
		senderMAC, netip.AddrFrom4(senderIP),
		targetMAC, netip.AddrFrom4(targetIP),
	)
	if err != nil {
		return nil, fmt.Errorf("arp: build reply: %w", err)
	}
	return p.MarshalBinary()
}

// EncodeARPRequest synthesises an ARP request. The devices this core
// recognises carry a fingerprint literal (e.g. "OM2PV4") in the target
// hardware address field rather than a real MAC, so targetMAC here is
// whatever 6-byte pattern the caller needs to embed.
func EncodeARPRequest(senderMAC net.HardwareAddr, senderIP [4]byte, targetMAC net.HardwareAddr, targetIP [4]byte) ([]byte, error) {
	p, err := arp.NewPacket(
		arp.OperationRequest,
		senderMAC, netip.AddrFrom4(senderIP),
		targetMAC, netip.AddrFrom4(targetIP),
	)
	if err != nil {
		return nil, fmt.Errorf("arp: build request: %w", err)
	}
	return p.MarshalBinary()
}
