package htrie

// wordBits is the key width. Keys are expected to be hashes with their
// entropy concentrated in the low-order bits; the trie consumes bits from
// low to high.
const wordBits = 64

// Fanout is the fixed child count of every non-root index node: 4 key bits
// resolved per level. The root node instead has 1<<Config.RootBits
// children, RootBits being a multiple of 4.
const Fanout = 16

// dataBit tags a 32-bit index-node shift as pointing at a bucket rather
// than at another index node or being empty.
const dataBit uint32 = 1 << 31

func taggedData(off uint32) uint32 { return off | dataBit }
func isData(shift uint32) bool     { return shift&dataBit != 0 }
func isEmpty(shift uint32) bool    { return shift == 0 }
func untag(shift uint32) uint32    { return shift &^ dataBit }
