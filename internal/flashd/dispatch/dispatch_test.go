package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apflash.dev/apflash/internal/flashd/image"
	"apflash.dev/apflash/internal/flashd/node"
	"apflash.dev/apflash/internal/flashd/profile"
	"apflash.dev/apflash/internal/flashd/protocol"
)

func loadImages(t *testing.T, files map[string][]byte) *image.Registry {
	t.Helper()
	dir := t.TempDir()
	if len(files) > 0 {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "ce"), 0o755))
		for name, data := range files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "ce", name+".img"), data, 0o644))
		}
	}
	reg := image.NewRegistry()
	require.NoError(t, reg.Load(dir))
	return reg
}

func d200ARP(senderMAC [6]byte) *protocol.DecodedARP {
	return &protocol.DecodedARP{
		Operation:          protocol.ARPRequest,
		SenderHardwareAddr: senderMAC,
		SenderIP:           [4]byte{192, 168, 100, 50},
		TargetIP:           [4]byte{192, 168, 100, 8},
		TargetHardwareAddr: func() [6]byte { var t [6]byte; copy(t[:], "D200"); return t }(),
	}
}

func TestDispatch_MatchesAndAllocatesMAC(t *testing.T) {
	images := loadImages(t, map[string][]byte{"D200": {1, 2, 3}})
	d := New(images, node.NewMACAllocator())

	n := &node.Node{HisMAC: [6]byte{0x04, 0xf0, 0x21, 0, 0, 1}}
	matched := d.Dispatch(n, d200ARP(n.HisMAC))

	require.True(t, matched)
	assert.Equal(t, "D200", n.Profile.Desc)
	assert.NotEqual(t, [6]byte{}, n.OurMAC)
	assert.Equal(t, [6]byte{0x00, 0xba, 0xbe, 0xca, 0x00, 0x00}, n.OurMAC)
	assert.Equal(t, node.StatusDetected, n.Status)
	assert.IsType(t, &node.OM2PFamilyPriv{}, n.Priv)
}

func TestDispatch_NoImageMarksNoFlash(t *testing.T) {
	images := loadImages(t, nil)
	d := New(images, node.NewMACAllocator())

	n := &node.Node{HisMAC: [6]byte{0x04, 0xf0, 0x21, 0, 0, 2}}
	matched := d.Dispatch(n, d200ARP(n.HisMAC))

	assert.False(t, matched)
	assert.Equal(t, node.StatusNoFlash, n.Status)
	assert.Equal(t, [6]byte{}, n.OurMAC)
}

func TestDispatch_NoProfileMatches(t *testing.T) {
	images := loadImages(t, nil)
	d := New(images, node.NewMACAllocator())

	n := &node.Node{HisMAC: [6]byte{0x04, 0xf0, 0x21, 0, 0, 3}}
	arp := &protocol.DecodedARP{
		Operation: protocol.ARPRequest,
		TargetIP:  [4]byte{10, 0, 0, 1},
	}

	assert.False(t, d.Dispatch(n, arp))
	assert.Nil(t, n.Profile)
}

func TestDispatch_RedBootAndTFTPServerAreReachable(t *testing.T) {
	images := loadImages(t, map[string][]byte{"RedBoot": {1}, "UBNT": {1}})

	d := New(images, node.NewMACAllocator())
	redbootNode := &node.Node{HisMAC: [6]byte{0x04, 0xf0, 0x21, 0, 0, 5}}
	matched := d.Dispatch(redbootNode, &protocol.DecodedARP{
		Operation: protocol.ARPRequest,
		TargetIP:  [4]byte{192, 168, 97, 8},
	})
	require.True(t, matched)
	assert.Equal(t, profile.FlashModeRedBoot, redbootNode.FlashMode)
	assert.IsType(t, &node.RedBootPriv{}, redbootNode.Priv)

	d2 := New(images, node.NewMACAllocator())
	ubntNode := &node.Node{HisMAC: [6]byte{0x04, 0xf0, 0x21, 0, 0, 6}}
	matched = d2.Dispatch(ubntNode, &protocol.DecodedARP{
		Operation: protocol.ARPRequest,
		TargetIP:  [4]byte{192, 168, 96, 8},
	})
	require.True(t, matched)
	assert.Equal(t, profile.FlashModeTFTPServer, ubntNode.FlashMode)
	assert.IsType(t, &node.TFTPServerPriv{}, ubntNode.Priv)
}

func TestDispatch_MACPoolExhaustedDrops(t *testing.T) {
	images := loadImages(t, map[string][]byte{"D200": {1, 2, 3}})
	macs := node.NewMACAllocator()
	for macs.Remaining() > 0 {
		_, err := macs.Allocate()
		require.NoError(t, err)
	}

	d := New(images, macs)
	n := &node.Node{HisMAC: [6]byte{0x04, 0xf0, 0x21, 0, 0, 4}}

	matched := d.Dispatch(n, d200ARP(n.HisMAC))
	assert.False(t, matched)
	assert.Equal(t, [6]byte{}, n.OurMAC)
	assert.Nil(t, n.Profile)
}
