// Package supervisor runs the main loop: timed read, timeout-driven
// maintenance, frame dispatch, until the process is asked to stop (§4.6).
package supervisor

import (
	"context"
	"fmt"
	"net"
	"time"

	"apflash.dev/apflash/internal/clock"
	"apflash.dev/apflash/internal/flashd/delivery"
	"apflash.dev/apflash/internal/flashd/dispatch"
	"apflash.dev/apflash/internal/flashd/node"
	"apflash.dev/apflash/internal/flashd/profile"
	"apflash.dev/apflash/internal/flashd/protocol"
	"apflash.dev/apflash/internal/logging"
	"apflash.dev/apflash/internal/metrics"
)

// tick is the residual-read budget reset on every timeout, per §4.6: the
// granularity at which periodic probes, completion checks, and TFTP
// retransmits fire.
const tick = 250 * time.Millisecond

// Transport is the subset of transport.Conn the loop depends on, narrowed so
// tests can substitute a fake without opening a real raw socket.
type Transport interface {
	Read(buf []byte, budget *time.Duration) (int, error)
	Write(frame []byte) error
	HardwareAddr() net.HardwareAddr
}

// Loop is the supervisor's runtime state: one raw socket, one node registry,
// one dispatcher, one delivery driver. It is not safe for concurrent use;
// the cooperative single-threaded model (§5) is the point.
type Loop struct {
	Transport  Transport
	Registry   *node.Registry
	Dispatcher *dispatch.Dispatcher
	Delivery   *delivery.TFTPClient
	Clock      clock.Clock
	Log        *logging.Logger

	localMAC [6]byte
	buf      []byte
}

// New assembles a supervisor loop. localMAC is the argument passed to every
// profile's DetectPre hook once per slow tick; no profile in the table
// currently sets one.
func New(transport Transport, registry *node.Registry, dispatcher *dispatch.Dispatcher, driver *delivery.TFTPClient, clk clock.Clock) *Loop {
	return &Loop{
		Transport:  transport,
		Registry:   registry,
		Dispatcher: dispatcher,
		Delivery:   driver,
		Clock:      clk,
		Log:        logging.WithComponent("supervisor"),
		localMAC:   [6]byte(transport.HardwareAddr()),
		buf:        make([]byte, 65536),
	}
}

// Run drives the loop until ctx is cancelled (typically by SIGINT/SIGTERM
// via signal.NotifyContext at the caller). A read error is logged and the
// tick budget reset; it does not end the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.Log.Info("supervisor started")
	budget := tick

	for {
		select {
		case <-ctx.Done():
			l.Log.Info("supervisor stopping", "reason", ctx.Err())
			return nil
		default:
		}

		n, err := l.Transport.Read(l.buf, &budget)
		if err != nil {
			l.Log.Error("read failed", "error", err)
			budget = tick
			continue
		}

		if n == 0 {
			for _, p := range profile.Table {
				if p.DetectPre == nil {
					continue
				}
				for _, frame := range p.DetectPre(l.localMAC) {
					l.write(frame)
				}
			}
			l.maintain()
			budget = tick
			continue
		}

		l.handleFrame(l.buf[:n])
	}
}

// maintain runs once per slow tick: it drives delivery-side state
// transitions (DETECTED→FLASHING, retransmit-on-timeout, completion
// heuristic) across every tracked node, and refreshes the gauges.
func (l *Loop) maintain() {
	metrics.Get().SupervisorTicks.Inc()

	l.Registry.Each(func(n *node.Node) {
		switch n.Status {
		case node.StatusDetected:
			l.engage(n)
		case node.StatusFlashing:
			l.retransmit(n)
		case node.StatusFinished:
			l.Delivery.CheckCompletion(n)
		}
	})

	metrics.Get().NodesActive.Set(float64(l.Registry.Len()))
	metrics.Get().MACPoolFree.Set(float64(l.Dispatcher.MACs.Remaining()))
}

// engage fires the mode-specific DETECTED→FLASHING transition (§4.5). An
// UNKNOWN flash_mode at this point is a logged error; the node is abandoned
// rather than retried, since there is no profile left to drive it.
func (l *Loop) engage(n *node.Node) {
	switch n.FlashMode {
	case profile.FlashModeTFTPClient:
		frame, err := l.Delivery.OnDetected(n)
		if err != nil {
			l.Log.Error("tftp-client engage failed", "mac", fmt.Sprintf("%x", n.HisMAC), "error", err)
			return
		}
		l.write(frame)
	case profile.FlashModeRedBoot, profile.FlashModeTFTPServer:
		// Out of scope: no driver to engage these modes (§1).
	default:
		l.Log.Error("detected node has no flash mode", "mac", fmt.Sprintf("%x", n.HisMAC))
		n.Status = node.StatusNoFlash
	}
}

func (l *Loop) retransmit(n *node.Node) {
	if n.FlashMode != profile.FlashModeTFTPClient {
		return
	}
	frame, err := l.Delivery.RetransmitIfDue(n, tick.Milliseconds())
	if err != nil {
		l.Log.Error("retransmit failed", "mac", fmt.Sprintf("%x", n.HisMAC), "error", err)
		return
	}
	l.write(frame)
}

// handleFrame decodes one Ethernet frame and routes it to the ARP or
// IPv4/UDP/TFTP branch. Malformed frames are dropped and counted, never
// fatal to the loop.
func (l *Loop) handleFrame(raw []byte) {
	frame, err := protocol.DecodeEthernet(raw)
	if err != nil {
		metrics.Get().RecordFrameDropped("bad_ethernet")
		return
	}

	switch frame.EtherType {
	case protocol.EtherTypeARP:
		l.handleARP(frame.Payload)
	case protocol.EtherTypeIPv4:
		l.handleIPv4(frame.Source, frame.Payload)
	}
}

func (l *Loop) handleARP(payload []byte) {
	arp, err := protocol.DecodeARP(payload)
	if err != nil {
		metrics.Get().RecordFrameDropped("bad_arp")
		return
	}

	n := l.Registry.Get(arp.SenderHardwareAddr)

	switch n.Status {
	case node.StatusUnknown:
		l.Dispatcher.Dispatch(n, arp)
	case node.StatusFlashing:
		if n.FlashMode != profile.FlashModeTFTPClient {
			return
		}
		frame, err := l.Delivery.AnswerARPRequest(n)
		if err != nil {
			l.Log.Error("arp reply failed", "mac", fmt.Sprintf("%x", n.HisMAC), "error", err)
			return
		}
		l.write(frame)
	}
}

func (l *Loop) handleIPv4(srcMAC net.HardwareAddr, payload []byte) {
	ipHdr, offset, err := protocol.DecodeIPv4(payload)
	if err != nil {
		metrics.Get().RecordFrameDropped("bad_ipv4")
		return
	}
	if ipHdr.Protocol != protocol.ProtoUDP {
		return
	}

	udpHdr, udpPayload, err := protocol.DecodeUDP(payload[offset:])
	if err != nil {
		metrics.Get().RecordFrameDropped("bad_udp")
		return
	}
	if udpHdr.DestPort != protocol.TFTPPort {
		return
	}

	var macKey [6]byte
	copy(macKey[:], srcMAC)
	n := l.Registry.Find(macKey)
	if n == nil || n.Status != node.StatusFlashing || n.FlashMode != profile.FlashModeTFTPClient {
		metrics.Get().RecordFrameDropped("tftp_unknown_node")
		return
	}

	opcode, body, err := protocol.DecodeTFTPOpcode(udpPayload)
	if err != nil {
		metrics.Get().RecordFrameDropped("bad_tftp")
		return
	}

	var frame []byte
	switch opcode {
	case protocol.TFTPOpRRQ:
		frame, err = l.Delivery.HandleRRQ(n, udpHdr.SourcePort)
	case protocol.TFTPOpACK:
		var block uint16
		block, err = protocol.DecodeTFTPACK(body)
		if err == nil {
			frame, err = l.Delivery.HandleACK(n, block)
		}
	default:
		return
	}

	if err != nil {
		l.Log.Error("tftp exchange failed", "mac", fmt.Sprintf("%x", n.HisMAC), "error", err)
		return
	}
	l.write(frame)
}

func (l *Loop) write(frame []byte) {
	if frame == nil {
		return
	}
	if err := l.Transport.Write(frame); err != nil {
		l.Log.Error("write failed", "error", err)
	}
}
