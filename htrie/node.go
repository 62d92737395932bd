package htrie

import "sync/atomic"

// Node is an index node: a fixed-fanout array of child shifts. A non-root
// Node fits in one cache line at Fanout=16 32-bit shifts; the root Node is
// sized to 1<<RootBits instead. Every slot transitions 0 -> bucket ->
// index-node monotonically and is only ever written via CAS.
type Node struct {
	Shifts []atomic.Uint32
}

func newNode(fanout int) *Node {
	return &Node{Shifts: make([]atomic.Uint32, fanout)}
}
