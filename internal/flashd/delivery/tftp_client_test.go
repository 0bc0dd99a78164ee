package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apflash.dev/apflash/internal/clock"
	"apflash.dev/apflash/internal/flashd/image"
	"apflash.dev/apflash/internal/flashd/node"
	"apflash.dev/apflash/internal/flashd/profile"
)

func newFlashingMR500(t0 time.Time, bytesSent uint64) *node.Node {
	return &node.Node{
		HisMAC:  [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		OurMAC:  [6]byte{0x00, 0xba, 0xbe, 0xca, 0x00, 0x01},
		Profile: profile.MR500,
		Priv:    &node.MR500Priv{StartFlash: t0},
		Status:  node.StatusFinished,
		FlashMode: profile.FlashModeTFTPClient,
		Image: node.ImageState{
			TotalBytesSent: bytesSent,
		},
	}
}

func newFlashingOM5P(t0 time.Time, bytesSent uint64) *node.Node {
	return &node.Node{
		HisMAC:  [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x56},
		OurMAC:  [6]byte{0x00, 0xba, 0xbe, 0xca, 0x00, 0x02},
		Profile: profile.OM5P,
		Priv:    &node.OM2PFamilyPriv{StartFlash: t0},
		Status:  node.StatusFinished,
		FlashMode: profile.FlashModeTFTPClient,
		Image: node.ImageState{
			TotalBytesSent: bytesSent,
		},
	}
}

// TestCheckCompletion_MR500 implements spec scenario 2: with
// total_bytes_sent = 50*65536 and start_flash = T0, completion fires at
// T0+95s but not at T0+94s, and rewinds the node via the MR500 re-entry
// rule.
func TestCheckCompletion_MR500(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	const bytesSent = 50 * 65536

	mock := clock.NewMockClock(t0)
	driver := New(image.NewRegistry(), mock)

	n := newFlashingMR500(t0, bytesSent)

	mock.Set(t0.Add(94 * time.Second))
	driver.CheckCompletion(n)
	assert.Equal(t, node.StatusFinished, n.Status, "must not complete one second early")

	mock.Set(t0.Add(95 * time.Second))
	driver.CheckCompletion(n)
	assert.Equal(t, node.StatusUnknown, n.Status, "MR500 re-entry rewinds to UNKNOWN")
	assert.Equal(t, profile.FlashModeUnknown, n.FlashMode)
	assert.Equal(t, uint64(0), n.Image.TotalBytesSent)
}

// TestCheckCompletion_OM5P implements spec scenario 3: the same conditions
// fire at T0+10s+50s = T0+60s for every non-MR500 TFTP_CLIENT class.
func TestCheckCompletion_OM5P(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	const bytesSent = 50 * 65536

	mock := clock.NewMockClock(t0)
	driver := New(image.NewRegistry(), mock)

	n := newFlashingOM5P(t0, bytesSent)

	mock.Set(t0.Add(59 * time.Second))
	driver.CheckCompletion(n)
	assert.Equal(t, node.StatusFinished, n.Status)

	mock.Set(t0.Add(60 * time.Second))
	driver.CheckCompletion(n)
	assert.Equal(t, node.StatusRebooted, n.Status)
	// Only MR500 rewinds; other classes stay REBOOTED.
	assert.Equal(t, profile.FlashModeTFTPClient, n.FlashMode)
}

func TestHandleACK_DuplicateRetransmitsWithoutAdvancing(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := clock.NewMockClock(t0)
	reg := image.NewRegistry()
	driver := New(reg, mock)

	n := &node.Node{
		HisMAC:    [6]byte{0, 1, 2, 3, 4, 5},
		OurMAC:    [6]byte{0, 0xba, 0xbe, 0xca, 0, 1},
		HisIP:     [4]byte{192, 168, 1, 2},
		OurIP:     [4]byte{192, 168, 1, 1},
		Profile:   profile.OM5P,
		Status:    node.StatusFlashing,
		FlashMode: profile.FlashModeTFTPClient,
	}
	n.Image.Payload = make([]byte, 1000)
	n.Image.LastBlockSent = 3
	n.Image.LastBlockData = []byte{0, 3, 0, 3, 1, 2, 3}

	frame, err := driver.HandleACK(n, 1) // stale ACK, not the last block sent
	require.NoError(t, err)
	assert.NotNil(t, frame)
	assert.Equal(t, uint16(3), n.Image.LastBlockSent, "duplicate ACK must not advance the block counter")
}

func TestHandleRRQ_NoImageReturnsError(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := clock.NewMockClock(t0)
	reg := image.NewRegistry() // empty: no images loaded

	n := &node.Node{
		HisMAC:  [6]byte{0, 1, 2, 3, 4, 5},
		OurMAC:  [6]byte{0, 0xba, 0xbe, 0xca, 0, 1},
		Profile: profile.MR500,
	}

	driver := New(reg, mock)
	_, err := driver.HandleRRQ(n, 4096)
	assert.Error(t, err)
}
