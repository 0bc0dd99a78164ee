package node

// Registry tracks every device seen since process start, keyed by the
// hardware address it was first observed with. Lookups compare the incoming
// frame's MAC against each existing node's OWN mask (the mask of whichever
// profile that node has matched, or all-ones before a match): a device's
// distinct recovery MACs differ only in their low bits, and collapsing them
// to one node depends on using the matched node's mask, not the querying
// frame's. That per-node mask varies from entry to entry, so unlike a
// conventional hash map this still requires a scan; at the scale this runs
// at (tens of nodes per segment) that is the substitution the spec
// explicitly sanctions over the original singly-linked list, provided
// maintenance iterates in a deterministic order (§9).
type Registry struct {
	order []([6]byte)
	nodes map[[6]byte]*Node
}

var maskAll = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// NewRegistry returns an empty node registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[[6]byte]*Node)}
}

// Find returns the existing node whose identity mask matches mac, or nil.
func (r *Registry) Find(mac [6]byte) *Node {
	for _, key := range r.order {
		n := r.nodes[key]
		mask := maskAll
		if n.Profile != nil {
			mask = n.Profile.MACMask
		}
		if maskedEqual(n.HisMAC, mac, mask) {
			return n
		}
	}
	return nil
}

// Get returns the node for mac, creating one (keyed by its raw address, no
// profile matched yet) if none exists.
func (r *Registry) Get(mac [6]byte) *Node {
	if n := r.Find(mac); n != nil {
		return n
	}

	n := &Node{HisMAC: mac}
	r.order = append(r.order, mac)
	r.nodes[mac] = n
	return n
}

// Len returns the number of tracked nodes.
func (r *Registry) Len() int {
	return len(r.order)
}

// Each calls fn for every node in insertion order. Order must stay
// deterministic across calls for maintenance and tests to be reproducible.
func (r *Registry) Each(fn func(n *Node)) {
	for _, key := range r.order {
		fn(r.nodes[key])
	}
}
