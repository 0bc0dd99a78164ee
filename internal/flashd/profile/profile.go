// Package profile holds the static table of router fingerprints: one entry
// per hardware class, each carrying the ARP recognition rule, MAC-identity
// mask, delivery mode, and image reference for that class.
//
// The original C implementation gave each class its own detect_main function
// pointer, even though every one of them performs the same three checks
// (opcode, target IP, target hardware address pattern). Here that becomes one
// generic predicate driven by per-profile data, per the sum-type redesign
// called for when a tagged union replaces function-pointer dispatch.
package profile

import "apflash.dev/apflash/internal/flashd/image"

// FlashMode is the delivery channel a detected node will use.
type FlashMode int

const (
	FlashModeUnknown FlashMode = iota
	FlashModeTFTPClient
	FlashModeTFTPServer
	FlashModeRedBoot
)

func (m FlashMode) String() string {
	switch m {
	case FlashModeTFTPClient:
		return "tftp-client"
	case FlashModeTFTPServer:
		return "tftp-server"
	case FlashModeRedBoot:
		return "redboot"
	default:
		return "unknown"
	}
}

// PrivKind selects which tagged-union variant of per-node private state a
// profile allocates (§9 "flexible-array private data" redesign).
type PrivKind int

const (
	PrivKindNone PrivKind = iota
	PrivKindMR500
	PrivKindOM2PFamily
	PrivKindRedBoot
	PrivKindTFTPServer
)

// THAMatcher reports whether an ARP target-hardware-address slot matches a
// class's wire-level fingerprint.
type THAMatcher func(tha [6]byte) bool

// Profile is one static, immutable router-class definition.
type Profile struct {
	Desc      string
	MACMask   [6]byte
	TargetIP  [4]byte
	THAMatch  THAMatcher
	Image     image.Class
	ImageDesc string // override key for CE sub-image lookup; empty means use Desc
	FlashMode FlashMode
	Priv      PrivKind

	// DetectPre is invoked once per slow tick with the process's current
	// local MAC, for classes that solicit beacons instead of waiting for
	// one (RedBoot, reverse TFTP-server). Nil for ARP-fingerprinted classes.
	DetectPre func(localMAC [6]byte) [][]byte
}

// LookupDesc returns the key used to find this profile's sub-image inside a
// multi-device CE container: ImageDesc if set, else Desc. Recovered from the
// original's `image_desc ? image_desc : desc` fallback — A40 devices, for
// example, are flashed with the A60 image under this rule.
func (p *Profile) LookupDesc() string {
	if p.ImageDesc != "" {
		return p.ImageDesc
	}
	return p.Desc
}

// DetectMain is the fingerprint predicate shared by every ARP-based class:
// opcode must be REQUEST, the target protocol address must equal the class's
// recovery IP, and the target hardware address must satisfy THAMatch.
func (p *Profile) DetectMain(op uint16, tpa [4]byte, tha [6]byte) bool {
	const arpOpRequest = 1
	if op != arpOpRequest {
		return false
	}
	if tpa != p.TargetIP {
		return false
	}
	if p.THAMatch == nil {
		return false
	}
	return p.THAMatch(tha)
}

func literalTHA(s string) THAMatcher {
	var pattern [6]byte
	copy(pattern[:], s)
	return func(tha [6]byte) bool { return tha == pattern }
}

func zeroTHA() THAMatcher {
	return func(tha [6]byte) bool { return tha == [6]byte{} }
}

func anyOf(matchers ...THAMatcher) THAMatcher {
	return func(tha [6]byte) bool {
		for _, m := range matchers {
			if m(tha) {
				return true
			}
		}
		return false
	}
}

func anyTHA() THAMatcher {
	return func(tha [6]byte) bool { return true }
}

var (
	mr500IP = [4]byte{192, 168, 99, 8}
	om2pIP  = [4]byte{192, 168, 100, 8}
	zyxelIP = [4]byte{192, 168, 1, 99}

	maskF8 = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xf8}
	maskF0 = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xf0}
	maskFF = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
)

// MR500 has no THA requirement at all; its image is a raw U-Boot blob
// (img_uboot in the original), not a CE container.
var MR500 = &Profile{
	Desc:      "MR500 router",
	MACMask:   maskF8,
	TargetIP:  mr500IP,
	THAMatch:  anyTHA(),
	Image:     image.ClassUBoot,
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindMR500,
}

var MR600 = &Profile{
	Desc:      "MR600",
	MACMask:   maskF0,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("MR600"),
	Image:     image.ClassCE,
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var MR900 = &Profile{
	Desc:      "MR900",
	MACMask:   maskF0,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("MR900"),
	Image:     image.ClassCE,
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var MR1750 = &Profile{
	Desc:      "MR1750",
	MACMask:   maskF0,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("MR1750"),
	Image:     image.ClassCE,
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

// OM2P accepts either the original all-zero THA or the v4 revision's
// "OM2PV4" literal, combined by disjunction.
var OM2P = &Profile{
	Desc:      "OM2P",
	MACMask:   maskF8,
	TargetIP:  om2pIP,
	THAMatch:  anyOf(zeroTHA(), literalTHA("OM2PV4")),
	Image:     image.ClassCE,
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

// A40 shares the A60 firmware image; a genuine hardware-sharing quirk, not a
// typo (see LookupDesc).
var A40 = &Profile{
	Desc:      "A40",
	MACMask:   maskF0,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("A40"),
	Image:     image.ClassCE,
	ImageDesc: "A60",
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var A60 = &Profile{
	Desc:      "A60",
	MACMask:   maskF0,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("A60"),
	Image:     image.ClassCE,
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var A42 = &Profile{
	Desc:      "A42",
	MACMask:   maskF0,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("A42"),
	Image:     image.ClassCE,
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var A62 = &Profile{
	Desc:      "A62",
	MACMask:   maskF0,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("A62"),
	Image:     image.ClassCE,
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var OM5P = &Profile{
	Desc:      "OM5P",
	MACMask:   maskF8,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("OM5P"),
	Image:     image.ClassCE,
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var OM5PAN = &Profile{
	Desc:      "OM5P-AN",
	MACMask:   maskF0,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("OM5PAN"),
	Image:     image.ClassCE,
	ImageDesc: "OM5P",
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var OM5PAC = &Profile{
	Desc:      "OM5P-AC",
	MACMask:   maskF0,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("OM5PAC"),
	Image:     image.ClassCE,
	ImageDesc: "OM5PAC",
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var P60 = &Profile{
	Desc:      "P60",
	MACMask:   maskF8,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("P60"),
	Image:     image.ClassCE,
	ImageDesc: "P60",
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var D200 = &Profile{
	Desc:      "D200",
	MACMask:   maskFF,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("D200"),
	Image:     image.ClassCE,
	ImageDesc: "D200",
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var G200 = &Profile{
	Desc:      "G200",
	MACMask:   maskFF,
	TargetIP:  om2pIP,
	THAMatch:  literalTHA("G200"),
	Image:     image.ClassCE,
	ImageDesc: "G200",
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var Zyxel = &Profile{
	Desc:      "Zyxel",
	MACMask:   maskFF,
	TargetIP:  zyxelIP,
	THAMatch:  zeroTHA(),
	Image:     image.ClassZyxel,
	ImageDesc: "Zyxel",
	FlashMode: FlashModeTFTPClient,
	Priv:      PrivKindOM2PFamily,
}

var (
	redbootIP    = [4]byte{192, 168, 97, 8}
	tftpServerIP = [4]byte{192, 168, 96, 8}
)

// RedBoot corresponds to &redboot in router_types.c's table. Its delivery
// driver (telnet-over-TCP flash commands) is explicitly out of scope (§1),
// so its protocol internals here are a stub: the recovery IP and THA
// pattern are placeholders since router_redboot.c's actual fingerprint
// isn't in the pack, kept only so the profile table entry exists and the
// RedBoot state-machine branch and Priv variant are reachable.
var RedBoot = &Profile{
	Desc:      "RedBoot",
	MACMask:   maskFF,
	TargetIP:  redbootIP,
	THAMatch:  zeroTHA(),
	Image:     image.ClassCE,
	ImageDesc: "RedBoot",
	FlashMode: FlashModeRedBoot,
	Priv:      PrivKindRedBoot,
}

// TFTPServer corresponds to &ubnt in router_types.c's table: a class
// recovered by writing to it as a reverse TFTP server rather than acting as
// one. Same stub status as RedBoot — wired into the table and the
// state machine, protocol internals not implemented (§1).
var TFTPServer = &Profile{
	Desc:      "UBNT",
	MACMask:   maskFF,
	TargetIP:  tftpServerIP,
	THAMatch:  zeroTHA(),
	Image:     image.ClassCE,
	ImageDesc: "UBNT",
	FlashMode: FlashModeTFTPServer,
	Priv:      PrivKindTFTPServer,
}

// Table is the fixed iteration order used by the detection dispatcher. Order
// matters: OM2P and OM5P share a target IP and are disambiguated only by
// THA, so neither may be reordered past the other without changing which
// profile a borderline frame matches first.
var Table = []*Profile{
	MR500,
	MR600,
	MR900,
	MR1750,
	OM2P,
	A40,
	A60,
	A42,
	A62,
	OM5P,
	OM5PAN,
	OM5PAC,
	P60,
	D200,
	G200,
	Zyxel,
	RedBoot,
	TFTPServer,
}

// Validate checks the startup invariant every profile must satisfy: a
// non-empty image reference and a non-zero MAC mask. Mirrors
// router_types_init's abort-on-violation behaviour.
func Validate() error {
	for _, p := range Table {
		if p.Image == image.ClassNone {
			return &InvalidProfileError{Profile: p.Desc, Reason: "no image attribute set"}
		}
		if p.MACMask == ([6]byte{}) {
			return &InvalidProfileError{Profile: p.Desc, Reason: "no mac address mask set"}
		}
	}
	return nil
}

// InvalidProfileError reports a profile that fails Validate.
type InvalidProfileError struct {
	Profile string
	Reason  string
}

func (e *InvalidProfileError) Error() string {
	return "profile " + e.Profile + ": " + e.Reason
}
