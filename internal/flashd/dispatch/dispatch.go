// Package dispatch applies the router profile table to inbound ARP frames,
// binding a matching node to its profile and image, or classifying it
// NO_FLASH when no usable image exists.
package dispatch

import (
	"fmt"

	"apflash.dev/apflash/internal/flashd/image"
	"apflash.dev/apflash/internal/flashd/node"
	"apflash.dev/apflash/internal/flashd/profile"
	"apflash.dev/apflash/internal/flashd/protocol"
	"apflash.dev/apflash/internal/logging"
	"apflash.dev/apflash/internal/metrics"
)

// Dispatcher iterates the profile table in its fixed order and binds the
// first match.
type Dispatcher struct {
	Images *image.Registry
	MACs   *node.MACAllocator
	Log    *logging.Logger
}

// New returns a Dispatcher over the given image registry and local MAC
// allocator.
func New(images *image.Registry, macs *node.MACAllocator) *Dispatcher {
	return &Dispatcher{
		Images: images,
		MACs:   macs,
		Log:    logging.WithComponent("dispatch"),
	}
}

// Dispatch applies every profile's fingerprint predicate to arp in the
// table's fixed order. On the first match it resolves the image, assigns
// n's profile, private state and peer addresses, and returns true. It
// returns false if no profile matches, if the matched class has no image
// (n is then declared NO_FLASH), or if the local MAC pool is exhausted (n is
// then left unbound).
func (d *Dispatcher) Dispatch(n *node.Node, arp *protocol.DecodedARP) bool {
	for _, p := range profile.Table {
		if !p.DetectMain(arp.Operation, arp.TargetIP, arp.TargetHardwareAddr) {
			continue
		}

		if !d.resolveImage(n, p) {
			return false
		}

		if n.OurMAC == ([6]byte{}) {
			mac, err := d.MACs.Allocate()
			if err != nil {
				d.Log.Error("local MAC pool exhausted, dropping detection", "mac", fmt.Sprintf("%x", n.HisMAC), "error", err)
				metrics.Get().RecordFrameDropped("mac_pool_exhausted")
				return false
			}
			n.OurMAC = mac
		}

		n.Profile = p
		n.FlashMode = p.FlashMode
		assignPriv(n, p)

		d.Log.Info("router detected",
			"mac", fmt.Sprintf("%x", n.HisMAC),
			"class", p.Desc)
		metrics.Get().RecordDetection(p.Desc)

		applyDetectPost(n, arp)
		return true
	}

	return false
}

// resolveImage looks up the image this profile needs. It returns false (and
// classifies the node NO_FLASH) when no image is available at all, or when
// a CE container has no sub-image for this profile's lookup key.
func (d *Dispatcher) resolveImage(n *node.Node, p *profile.Profile) bool {
	if p.Image == image.ClassNone {
		d.noImage(n, p, "none")
		return false
	}
	if _, ok := d.Images.ResolvePayload(p.Image, p.LookupDesc()); !ok {
		d.noImage(n, p, p.Image.String())
		return false
	}
	return true
}

func (d *Dispatcher) noImage(n *node.Node, p *profile.Profile, imageClass string) {
	d.Log.Warn("no image available for detected class",
		"mac", fmt.Sprintf("%x", n.HisMAC),
		"class", p.Desc,
		"image_class", imageClass)
	n.Status = node.StatusNoFlash
	metrics.Get().RecordFrameDropped("no_image")
}

func assignPriv(n *node.Node, p *profile.Profile) {
	switch p.Priv {
	case profile.PrivKindMR500:
		n.Priv = &node.MR500Priv{}
	case profile.PrivKindOM2PFamily:
		n.Priv = &node.OM2PFamilyPriv{}
	case profile.PrivKindRedBoot:
		n.Priv = &node.RedBootPriv{}
	case profile.PrivKindTFTPServer:
		n.Priv = &node.TFTPServerPriv{}
	}
}

// applyDetectPost mirrors tftp_client_detect_post: every TFTP_CLIENT class
// extracts the peer's source/target IP from the triggering ARP request and
// promotes the node to DETECTED.
func applyDetectPost(n *node.Node, arp *protocol.DecodedARP) {
	if n.FlashMode != profile.FlashModeTFTPClient {
		return
	}
	n.HisIP = arp.SenderIP
	n.OurIP = arp.TargetIP
	n.Status = node.StatusDetected
}
