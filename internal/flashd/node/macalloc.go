package node

import "fmt"

// MACAllocator hands out synthesised local MAC addresses for new nodes, one
// per matched device, from the locally-administered pool
// 00:ba:be:ca:??:??.
//
// The original increments only the trailing byte of a fixed 6-byte address,
// giving 256 addresses before it silently wraps and collides. Per the
// acknowledged open question in §9 ("Local MAC exhaustion"), this widens the
// counter to the low two bytes (65536 addresses) and refuses further
// allocation once exhausted instead of wrapping.
type MACAllocator struct {
	base      [4]byte
	next      uint32
	exhausted bool
}

// NewMACAllocator returns an allocator seeded at 00:ba:be:ca:00:00.
func NewMACAllocator() *MACAllocator {
	return &MACAllocator{base: [4]byte{0x00, 0xba, 0xbe, 0xca}}
}

// ErrPoolExhausted is returned once all 65536 local addresses are in use.
var ErrPoolExhausted = fmt.Errorf("local MAC address pool exhausted")

// Allocate returns the next local MAC address, or ErrPoolExhausted once the
// 16-bit counter has wrapped.
func (a *MACAllocator) Allocate() ([6]byte, error) {
	if a.exhausted {
		return [6]byte{}, ErrPoolExhausted
	}

	var mac [6]byte
	copy(mac[:4], a.base[:])
	mac[4] = byte(a.next >> 8)
	mac[5] = byte(a.next)

	a.next++
	if a.next > 0xffff {
		a.exhausted = true
	}

	return mac, nil
}

// Remaining returns how many addresses are still available.
func (a *MACAllocator) Remaining() int {
	if a.exhausted {
		return 0
	}
	return 0x10000 - int(a.next)
}
