// Package transport opens the raw Ethernet interface the supervisor loop
// reads and writes frames on, using the same mdlayher/packet raw-socket
// technique the teacher's DHCP sniffer uses for promiscuous-mode frame
// capture.
package transport

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/mdlayher/packet"
)

// ethPAll is ETH_P_ALL: every frame wakes the socket, regardless of
// ethertype, since the core needs to see ARP requests and TFTP-carrying
// IPv4/UDP frames on the same interface.
const ethPAll = 0x0003

// Conn is a raw L2 socket on one interface.
type Conn struct {
	conn *packet.Conn
	ifi  *net.Interface
}

// Open binds a raw socket to iface in promiscuous mode.
func Open(ifaceName string) (*Conn, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, err
	}

	conn, err := packet.Listen(ifi, packet.Raw, ethPAll, nil)
	if err != nil {
		return nil, err
	}

	if err := conn.SetPromiscuous(true); err != nil {
		conn.Close()
		return nil, err
	}

	return &Conn{conn: conn, ifi: ifi}, nil
}

// Close releases the socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// HardwareAddr returns the interface's own hardware address.
func (c *Conn) HardwareAddr() net.HardwareAddr {
	return c.ifi.HardwareAddr
}

// Read implements the residual-timeout read contract from §4.6: it blocks
// until a frame arrives or budget elapses, whichever comes first, shrinking
// budget by however long the read actually took. It returns (0, nil) on
// timeout with no data, matching the supervisor's "n == 0 ⇒ slow tick"
// convention.
func (c *Conn) Read(buf []byte, budget *time.Duration) (int, error) {
	start := time.Now()
	deadline := start.Add(*budget)

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}

	n, _, err := c.conn.ReadFrom(buf)
	elapsed := time.Since(start)

	if elapsed >= *budget {
		*budget = 0
	} else {
		*budget -= elapsed
	}

	if err != nil {
		if isTimeout(err) {
			return 0, nil
		}
		return 0, err
	}

	return n, nil
}

// Write sends a raw Ethernet frame.
func (c *Conn) Write(frame []byte) error {
	addr := &packet.Addr{HardwareAddr: c.ifi.HardwareAddr}
	_, err := c.conn.WriteTo(frame, addr)
	return err
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
