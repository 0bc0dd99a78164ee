package node

import "time"

// Priv is the per-node private state a matched profile carries. The
// original C layout packs a profile-sized scratch region contiguously after
// each node struct and hands out sub-slices by iteration offset; here each
// profile family gets its own concrete type instead, selected by
// profile.PrivKind when the node's profile is assigned (§9).
type Priv interface {
	isNodePriv()
}

// MR500Priv backs the MR500 class, which runs its own completion constants
// and re-entry rule (§4.3, §3).
type MR500Priv struct {
	StartFlash time.Time
}

func (*MR500Priv) isNodePriv() {}

// OM2PFamilyPriv backs every other TFTP_CLIENT class (MR600/900/1750,
// OM2P/5P variants, A-series, P60, D200, G200, Zyxel), which all share one
// completion formula.
type OM2PFamilyPriv struct {
	StartFlash time.Time
}

func (*OM2PFamilyPriv) isNodePriv() {}

// RedBootPriv is a placeholder for the RedBoot telnet delivery driver, which
// is out of scope for this core (§1); it exists so the tagged union has a
// slot for that flash mode without pretending the driver is implemented.
type RedBootPriv struct {
	ConnectAttempted bool
}

func (*RedBootPriv) isNodePriv() {}

// TFTPServerPriv mirrors RedBootPriv for the reverse TFTP-server delivery
// path, also out of scope.
type TFTPServerPriv struct {
	UploadStarted bool
}

func (*TFTPServerPriv) isNodePriv() {}
