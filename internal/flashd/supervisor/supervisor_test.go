package supervisor

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apflash.dev/apflash/internal/clock"
	"apflash.dev/apflash/internal/flashd/delivery"
	"apflash.dev/apflash/internal/flashd/dispatch"
	"apflash.dev/apflash/internal/flashd/image"
	"apflash.dev/apflash/internal/flashd/node"
	"apflash.dev/apflash/internal/flashd/protocol"
)

type fakeTransport struct {
	hwAddr net.HardwareAddr
	sent   [][]byte
}

func (f *fakeTransport) Read(buf []byte, budget *time.Duration) (int, error) { return 0, nil }

func (f *fakeTransport) Write(frame []byte) error {
	f.sent = append(f.sent, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTransport) HardwareAddr() net.HardwareAddr { return f.hwAddr }

func loadOM2PImages(t *testing.T) *image.Registry {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ce"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ce", "OM2P.img"), make([]byte, 1000), 0o644))

	reg := image.NewRegistry()
	require.NoError(t, reg.Load(dir))
	return reg
}

func buildARPRequestFrame(t *testing.T, srcMAC net.HardwareAddr, tpa [4]byte, tha [6]byte) []byte {
	arpPayload, err := protocol.EncodeARPRequest(srcMAC, [4]byte{0, 0, 0, 0}, net.HardwareAddr(tha[:]), tpa)
	require.NoError(t, err)

	frame, err := protocol.EncodeEthernet(
		net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, srcMAC,
		protocol.EtherTypeARP, arpPayload,
	)
	require.NoError(t, err)
	return frame
}

func buildTFTPFrame(t *testing.T, srcMAC, dstMAC net.HardwareAddr, srcIP, dstIP [4]byte, srcPort uint16, tftpPayload []byte) []byte {
	ipFrame, err := protocol.EncodeIPv4UDP(srcIP, dstIP, srcPort, protocol.TFTPPort, tftpPayload)
	require.NoError(t, err)

	frame, err := protocol.EncodeEthernet(dstMAC, srcMAC, protocol.EtherTypeIPv4, ipFrame)
	require.NoError(t, err)
	return frame
}

// TestOM2PHappyPath implements spec scenario 1 end to end: an OM2P ARP
// probe yields a detected node, maintenance engages it (ARP reply claiming
// the gateway), and a following TFTP RRQ yields DATA block 1 from the CE
// sub-image.
//
// The scenario's literal "sender MAC = 00:ba:be:ca:ff:00" describes the
// original single-byte allocator seeded near the top of its range; this
// core's widened allocator (§9, local MAC exhaustion) starts at
// 00:ba:be:ca:00:00, so the assertion below checks the first address that
// allocator actually hands out instead of the original literal.
func TestOM2PHappyPath(t *testing.T) {
	images := loadOM2PImages(t)
	macs := node.NewMACAllocator()
	registry := node.NewRegistry()
	dispatcher := dispatch.New(images, macs)
	mock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	driver := delivery.New(images, mock)

	transport := &fakeTransport{hwAddr: net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}}
	loop := New(transport, registry, dispatcher, driver, mock)

	hisMAC := net.HardwareAddr{0x04, 0xf0, 0x21, 0x00, 0x00, 0x01}
	tpa := [4]byte{192, 168, 100, 8}
	var tha [6]byte
	copy(tha[:], "OM2PV4")

	loop.handleFrame(buildARPRequestFrame(t, hisMAC, tpa, tha))

	var hisMACKey [6]byte
	copy(hisMACKey[:], hisMAC)
	n := registry.Find(hisMACKey)
	require.NotNil(t, n, "node must be created on first sighting")
	assert.Equal(t, "OM2P", n.Profile.Desc)
	assert.Equal(t, node.StatusDetected, n.Status)
	assert.Equal(t, [6]byte{0x00, 0xba, 0xbe, 0xca, 0x00, 0x00}, n.OurMAC)

	loop.maintain()
	require.Len(t, transport.sent, 1, "engaging the node emits one ARP reply")
	assert.Equal(t, node.StatusFlashing, n.Status)

	replyFrame, err := protocol.DecodeEthernet(transport.sent[0])
	require.NoError(t, err)
	replyARP, err := protocol.DecodeARP(replyFrame.Payload)
	require.NoError(t, err)
	assert.Equal(t, tpa, replyARP.SenderIP, "reply claims the gateway IP the device expects")
	assert.Equal(t, n.OurMAC, replyARP.SenderHardwareAddr)

	rrq := protocol.EncodeTFTPRRQ("firmware.bin", "octet")
	rrqFrame := buildTFTPFrame(t, hisMAC, net.HardwareAddr(n.OurMAC[:]), n.HisIP, n.OurIP, 1069, rrq)
	loop.handleFrame(rrqFrame)

	require.Len(t, transport.sent, 2, "RRQ yields one DATA reply")
	dataFrame, err := protocol.DecodeEthernet(transport.sent[1])
	require.NoError(t, err)
	ipHdr, offset, err := protocol.DecodeIPv4(dataFrame.Payload)
	require.NoError(t, err)
	udpHdr, udpPayload, err := protocol.DecodeUDP(dataFrame.Payload[offset:])
	require.NoError(t, err)
	assert.Equal(t, uint16(1069), udpHdr.DestPort, "DATA goes back to the client's RRQ source port")
	assert.Equal(t, n.OurIP, ipHdr.SourceIP)

	opcode, body, err := protocol.DecodeTFTPOpcode(udpPayload)
	require.NoError(t, err)
	assert.Equal(t, protocol.TFTPOpDATA, opcode)
	assert.Equal(t, protocol.TFTPBlockSize, len(body)-2, "first block is a full 512 bytes")
	assert.Equal(t, uint64(protocol.TFTPBlockSize), n.Image.TotalBytesSent)
}

// TestD200NoImage implements the NO_FLASH classification scenario: a D200
// probe with no D200 image loaded must not create a node stuck mid-protocol.
func TestD200NoImage(t *testing.T) {
	images := image.NewRegistry() // nothing loaded
	macs := node.NewMACAllocator()
	registry := node.NewRegistry()
	dispatcher := dispatch.New(images, macs)
	mock := clock.NewMockClock(time.Now().Truncate(0))
	driver := delivery.New(images, mock)

	transport := &fakeTransport{hwAddr: net.HardwareAddr{0x02, 0, 0, 0, 0, 1}}
	loop := New(transport, registry, dispatcher, driver, mock)

	hisMAC := net.HardwareAddr{0x08, 0x00, 0x00, 0x00, 0x00, 0x02}
	tpa := [4]byte{192, 168, 100, 8}
	var tha [6]byte
	copy(tha[:], "D200")

	loop.handleFrame(buildARPRequestFrame(t, hisMAC, tpa, tha))

	var key [6]byte
	copy(key[:], hisMAC)
	n := registry.Find(key)
	require.NotNil(t, n)
	assert.Equal(t, node.StatusNoFlash, n.Status)
	assert.Nil(t, n.Profile, "NO_FLASH nodes never bind a profile")
	assert.Empty(t, transport.sent, "no frames are sent for an unflashable device")
}
