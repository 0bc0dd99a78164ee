// Package node models one discovered device and the registry that tracks
// every device seen on the wire.
package node

import (
	"time"

	"apflash.dev/apflash/internal/flashd/profile"
)

// ImageState tracks an in-progress TFTP delivery: how much has gone out, the
// last block the device acknowledged, and the bytes to resend on a
// duplicate ACK or retransmit timeout.
type ImageState struct {
	Payload         []byte
	ClientPort      uint16
	TotalBytesSent  uint64
	LastBlockAcked  uint16
	LastBlockSent   uint16
	LastBlockData   []byte
	LastTransmit    time.Time
	TransferStarted bool
}

// Node is one device discovered on the segment, identified by the hardware
// address it first appeared with.
type Node struct {
	HisMAC [6]byte
	OurMAC [6]byte

	Profile *profile.Profile
	Priv    Priv

	HisIP [4]byte
	OurIP [4]byte

	Status    Status
	FlashMode profile.FlashMode

	Image ImageState
}

// Reset clears a node back to its pre-detection state. Used only for the
// MR500 re-entry rule: that class reuses the same MAC across flash
// sessions, so on completion the node is rewound rather than retired (§3).
func (n *Node) Reset() {
	n.Status = StatusUnknown
	n.FlashMode = profile.FlashModeUnknown
	n.Image = ImageState{}
}

// maskedEqual reports whether mac and other are equal once both are masked
// with mask.
func maskedEqual(mac, other, mask [6]byte) bool {
	for i := 0; i < 6; i++ {
		if mac[i]&mask[i] != other[i]&mask[i] {
			return false
		}
	}
	return true
}
