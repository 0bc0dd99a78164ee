// Package image loads firmware image files from disk into typed containers
// and exposes file size, type, and a lookup from device description to
// payload bytes. The container formats themselves (CE/combined, U-Boot,
// Zyxel) are external collaborators per the spec's scope: this package
// treats a CE container as a directory of one file per device description
// rather than parsing any particular on-disk framing, since that framing is
// explicitly out of scope and summarised only by the interface the core
// calls (file_size, type, lookup-by-description).
package image

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Class identifies which image a router profile references.
type Class int

const (
	ClassNone Class = iota
	ClassUBoot
	ClassCE
	ClassZyxel
)

func (c Class) String() string {
	switch c {
	case ClassUBoot:
		return "uboot"
	case ClassCE:
		return "ce"
	case ClassZyxel:
		return "zyxel"
	default:
		return "none"
	}
}

// SubImage is one device's payload inside a CE container, identified by a
// stable synthetic UUID so callers can track a delivery without re-deriving
// its description key.
type SubImage struct {
	ID   uuid.UUID
	Desc string
	Data []byte
}

// Registry holds every loaded image, read-only after Load returns.
type Registry struct {
	mu sync.RWMutex

	uboot     []byte
	zyxel     []byte
	ce        map[string]SubImage
	overrides map[string][]byte
}

// NewRegistry returns an empty registry; call Load to populate it.
func NewRegistry() *Registry {
	return &Registry{ce: make(map[string]SubImage), overrides: make(map[string][]byte)}
}

// Override points one router class's image lookup key at a specific file on
// disk, taking priority over whatever Load found under the class's normal
// convention. Class is matched case-insensitively against a profile's
// LookupDesc().
type Override struct {
	Class string
	Path  string
}

// ApplyOverrides reads each override's file and records it, replacing
// whatever ResolvePayload would otherwise have returned for that class. Call
// after Load; overrides persist across repeated calls (last write wins per
// class).
func (r *Registry) ApplyOverrides(overrides []Override) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range overrides {
		data, err := os.ReadFile(o.Path)
		if err != nil {
			return fmt.Errorf("image: override %q: %w", o.Class, err)
		}
		r.overrides[strings.ToLower(o.Class)] = data
	}
	return nil
}

// Load reads uboot.img and zyxel.img directly from dir, and treats
// dir/ce/<desc>.img as the CE sub-image for device description <desc>.
// Missing files leave the corresponding class empty rather than erroring;
// an empty image is a valid (if unflashable) configuration per §4.1's
// NO_FLASH classification path.
func (r *Registry) Load(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, err := os.ReadFile(filepath.Join(dir, "uboot.img")); err == nil {
		r.uboot = b
	} else if !os.IsNotExist(err) {
		return err
	}

	if b, err := os.ReadFile(filepath.Join(dir, "zyxel.img")); err == nil {
		r.zyxel = b
	} else if !os.IsNotExist(err) {
		return err
	}

	ceDir := filepath.Join(dir, "ce")
	entries, err := os.ReadDir(ceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		desc := stripExt(e.Name())
		data, err := os.ReadFile(filepath.Join(ceDir, e.Name()))
		if err != nil {
			return err
		}
		r.ce[desc] = SubImage{
			ID:   uuid.NewSHA1(uuid.Nil, []byte(desc)),
			Desc: desc,
			Data: data,
		}
	}

	return nil
}

func stripExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

// FileSize returns the size of the image for a whole-blob class (UBoot,
// Zyxel). CE containers have no single size; use LookupCE for per-device
// sizes.
func (r *Registry) FileSize(class Class) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch class {
	case ClassUBoot:
		return len(r.uboot)
	case ClassZyxel:
		return len(r.zyxel)
	default:
		return 0
	}
}

// Lookup returns the payload for a whole-blob class, or false if empty.
func (r *Registry) Lookup(class Class) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch class {
	case ClassUBoot:
		return r.uboot, len(r.uboot) > 0
	case ClassZyxel:
		return r.zyxel, len(r.zyxel) > 0
	default:
		return nil, false
	}
}

// LookupCE returns the sub-image for a CE container keyed by device
// description (profile.LookupDesc()), or false if no such sub-image was
// loaded. This is the "no matching image for this class" path that drives
// the NO_FLASH classification in the detection dispatcher.
func (r *Registry) LookupCE(desc string) (SubImage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.ce[desc]
	return sub, ok
}

// ResolvePayload returns the bytes that should be flashed for a profile,
// given its image class and lookup key (profile.LookupDesc()). A configured
// Override for that key wins outright; otherwise this falls back to the
// class's normal convention (CE sub-image by key, or the whole-blob class).
// Both the detection dispatcher (existence check) and the TFTP-client driver
// (actual payload) resolve through this single path so an override changes
// what gets flashed everywhere, not just what gets reported.
func (r *Registry) ResolvePayload(class Class, lookupDesc string) ([]byte, bool) {
	r.mu.RLock()
	if b, ok := r.overrides[strings.ToLower(lookupDesc)]; ok {
		r.mu.RUnlock()
		return b, true
	}
	r.mu.RUnlock()

	if class == ClassCE {
		sub, ok := r.LookupCE(lookupDesc)
		if !ok {
			return nil, false
		}
		return sub.Data, true
	}
	return r.Lookup(class)
}
