// Package delivery implements the TFTP-client delivery driver: the dominant
// recovery mode, where a booting device ARPs for its gateway and opens a
// TFTP read request for its firmware. The driver impersonates that gateway
// and serves the image (§4.3).
package delivery

import (
	"fmt"
	"net"
	"time"

	"apflash.dev/apflash/internal/clock"
	"apflash.dev/apflash/internal/flashd/image"
	"apflash.dev/apflash/internal/flashd/node"
	"apflash.dev/apflash/internal/flashd/profile"
	"apflash.dev/apflash/internal/flashd/protocol"
	"apflash.dev/apflash/internal/logging"
	"apflash.dev/apflash/internal/metrics"
)

// mr500FlashSeconds and otherClassFlashSeconds are the per-class completion
// offsets from §4.3. They are deliberate, class-specific constants and must
// not be merged or generalised.
const (
	mr500FlashSeconds        = 45
	otherClassFlashSeconds   = 10
	completionBytesPerSecond = 65536
)

// TFTPClient drives detect→flash→complete for every TFTP_CLIENT profile.
type TFTPClient struct {
	Images *image.Registry
	Clock  clock.Clock
	Log    *logging.Logger
}

// New returns a TFTP-client delivery driver.
func New(images *image.Registry, clk clock.Clock) *TFTPClient {
	return &TFTPClient{
		Images: images,
		Clock:  clk,
		Log:    logging.WithComponent("tftp-client"),
	}
}

// OnDetected transitions a freshly-detected node into FLASHING, stamps its
// start_flash timestamp and returns the synthesised ARP reply frame that
// claims the peer's expected gateway address (obligation 1 in §4.3).
func (d *TFTPClient) OnDetected(n *node.Node) ([]byte, error) {
	if n.Status != node.StatusDetected || n.FlashMode != profile.FlashModeTFTPClient {
		return nil, nil
	}

	now := d.Clock.Now()
	switch priv := n.Priv.(type) {
	case *node.MR500Priv:
		priv.StartFlash = now
	case *node.OM2PFamilyPriv:
		priv.StartFlash = now
	default:
		return nil, fmt.Errorf("tftp-client: unexpected priv type %T for %s", n.Priv, n.Profile.Desc)
	}

	n.Status = node.StatusFlashing
	metrics.Get().FlashesStarted.WithLabelValues(n.Profile.Desc).Inc()

	return d.buildARPReply(n)
}

// AnswerARPRequest answers a subsequent ARP request for our_ip_addr the same
// way as OnDetected's initial reply (obligation 2).
func (d *TFTPClient) AnswerARPRequest(n *node.Node) ([]byte, error) {
	return d.buildARPReply(n)
}

func (d *TFTPClient) buildARPReply(n *node.Node) ([]byte, error) {
	arpReply, err := protocol.EncodeARPReply(
		net.HardwareAddr(n.OurMAC[:]), n.OurIP,
		net.HardwareAddr(n.HisMAC[:]), n.HisIP,
	)
	if err != nil {
		return nil, err
	}

	frame, err := protocol.EncodeEthernet(
		net.HardwareAddr(n.HisMAC[:]), net.HardwareAddr(n.OurMAC[:]),
		protocol.EtherTypeARP, arpReply,
	)
	if err != nil {
		return nil, err
	}

	metrics.Get().ARPRepliesSent.Inc()
	return frame, nil
}

// HandleRRQ answers a TFTP read request: locates the payload for this
// node's class (direct image, or CE sub-image keyed by LookupDesc), and
// replies with DATA block 1 (obligation 3).
func (d *TFTPClient) HandleRRQ(n *node.Node, clientPort uint16) ([]byte, error) {
	payload, ok := d.lookupPayload(n.Profile)
	if !ok {
		return nil, fmt.Errorf("tftp-client: no payload for class %s", n.Profile.Desc)
	}

	n.Image.Payload = payload
	n.Image.ClientPort = clientPort
	n.Image.TransferStarted = true

	return d.sendBlock(n, 1)
}

func (d *TFTPClient) lookupPayload(p *profile.Profile) ([]byte, bool) {
	return d.Images.ResolvePayload(p.Image, p.LookupDesc())
}

// HandleACK answers ACK(block) with DATA(block+1), or retransmits the last
// DATA on a duplicate ACK (obligations 4 and 7; idempotence per §8).
func (d *TFTPClient) HandleACK(n *node.Node, block uint16) ([]byte, error) {
	if block != n.Image.LastBlockSent {
		// Duplicate or out-of-order ACK: retransmit, do not advance.
		ipFrame, err := protocol.EncodeIPv4UDP(n.OurIP, n.HisIP, protocol.TFTPPort, n.Image.ClientPort, n.Image.LastBlockData)
		if err != nil {
			return nil, err
		}
		metrics.Get().RetransmitsTotal.WithLabelValues(n.Profile.Desc).Inc()
		return protocol.EncodeEthernet(
			net.HardwareAddr(n.HisMAC[:]), net.HardwareAddr(n.OurMAC[:]),
			protocol.EtherTypeIPv4, ipFrame,
		)
	}

	n.Image.LastBlockAcked = block
	next := block + 1 // wraps at 65535 per §4.3 obligation 6

	if n.Status == node.StatusFinished {
		// Final short block already sent and acked: nothing more to do.
		return nil, nil
	}

	return d.sendBlock(n, next)
}

func (d *TFTPClient) sendBlock(n *node.Node, block uint16) ([]byte, error) {
	start := int(n.Image.TotalBytesSent)
	end := start + protocol.TFTPBlockSize
	if end > len(n.Image.Payload) {
		end = len(n.Image.Payload)
	}
	chunk := n.Image.Payload[start:end]

	n.Image.TotalBytesSent += uint64(len(chunk))
	n.Image.LastBlockSent = block
	n.Image.LastBlockData = protocol.EncodeTFTPDATA(block, chunk)
	n.Image.LastTransmit = d.Clock.Now()

	if len(chunk) < protocol.TFTPBlockSize {
		n.Status = node.StatusFinished
	}

	metrics.Get().BytesSent.WithLabelValues(n.Profile.Desc).Add(float64(len(chunk)))

	tftpFrame := n.Image.LastBlockData
	ipFrame, err := protocol.EncodeIPv4UDP(n.OurIP, n.HisIP, protocol.TFTPPort, n.Image.ClientPort, tftpFrame)
	if err != nil {
		return nil, err
	}

	return protocol.EncodeEthernet(
		net.HardwareAddr(n.HisMAC[:]), net.HardwareAddr(n.OurMAC[:]),
		protocol.EtherTypeIPv4, ipFrame,
	)
}

// RetransmitIfDue resends the last DATA block on the supervisor's 250ms
// tick, the implicit retransmit clock the original relies on (§9
// "Retransmit timing").
func (d *TFTPClient) RetransmitIfDue(n *node.Node, thresholdMillis int64) ([]byte, error) {
	if n.Status != node.StatusFlashing || !n.Image.TransferStarted {
		return nil, nil
	}
	if d.Clock.Since(n.Image.LastTransmit).Milliseconds() < thresholdMillis {
		return nil, nil
	}

	ipFrame, err := protocol.EncodeIPv4UDP(n.OurIP, n.HisIP, protocol.TFTPPort, n.Image.ClientPort, n.Image.LastBlockData)
	if err != nil {
		return nil, err
	}
	metrics.Get().RetransmitsTotal.WithLabelValues(n.Profile.Desc).Inc()

	return protocol.EncodeEthernet(
		net.HardwareAddr(n.HisMAC[:]), net.HardwareAddr(n.OurMAC[:]),
		protocol.EtherTypeIPv4, ipFrame,
	)
}

// CheckCompletion applies the completion heuristic: MR500 at
// start_flash+45s+bytes/65536, every other TFTP_CLIENT class at
// start_flash+10s+bytes/65536. On completion it logs, moves to REBOOTED
// (rewinding MR500 to UNKNOWN/UNKNOWN per its re-entry quirk instead), and
// increments the flashed-node count.
func (d *TFTPClient) CheckCompletion(n *node.Node) {
	if n.Status != node.StatusFinished || n.FlashMode != profile.FlashModeTFTPClient {
		return
	}

	startFlash, offsetSeconds, ok := flashTimingFor(n)
	if !ok {
		return
	}

	elapsedBudget := offsetSeconds + int64(n.Image.TotalBytesSent/completionBytesPerSecond)
	if d.Clock.Since(startFlash).Seconds() < float64(elapsedBudget) {
		return
	}

	d.Log.Info("flash complete, device ready to unplug",
		"mac", fmt.Sprintf("%x", n.HisMAC),
		"class", n.Profile.Desc)

	n.Status = node.StatusRebooted
	if n.Profile == profile.MR500 {
		// MR500 devices share one MAC across flash sessions; treat the next
		// frame from it as a fresh device rather than a stale one.
		n.Reset()
	}

	metrics.Get().RecordFlashComplete(n.Profile.Desc)
}

func flashTimingFor(n *node.Node) (startFlash time.Time, offsetSeconds int64, ok bool) {
	switch priv := n.Priv.(type) {
	case *node.MR500Priv:
		return priv.StartFlash, mr500FlashSeconds, true
	case *node.OM2PFamilyPriv:
		return priv.StartFlash, otherClassFlashSeconds, true
	default:
		return time.Time{}, 0, false
	}
}
