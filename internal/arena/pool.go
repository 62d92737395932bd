// Package arena provides the offset-addressed backing storage behind the
// htrie package: typed block pools for index nodes and buckets, plus the
// size-classed data-chunk cache for record payloads. The core htrie
// package never reaches past this package's exported types.
package arena

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrExhausted is returned once a Pool has been capped via NewPool's
// maxCount and that cap is reached. A zero cap (the default) means unbounded growth.
var ErrExhausted = fmt.Errorf("arena: pool exhausted")

// Pool hands out blocks of T addressed by a stable uint32 offset. Blocks
// are never moved: growth appends a new backing slice and swaps an atomic
// snapshot pointer, so Get is wait-free.
type Pool[T any] struct {
	mu       sync.Mutex
	blocks   atomic.Pointer[[]*T]
	maxCount int
}

// NewPool creates an empty pool. maxCount <= 0 means unbounded.
func NewPool[T any](maxCount int) *Pool[T] {
	p := &Pool[T]{maxCount: maxCount}
	empty := make([]*T, 0)
	p.blocks.Store(&empty)
	return p
}

// Get returns the block at off. Callers must only pass offsets previously
// returned by Alloc on this pool.
func (p *Pool[T]) Get(off uint32) *T {
	blocks := *p.blocks.Load()
	return blocks[off]
}

// Len reports how many blocks have ever been allocated from this pool.
func (p *Pool[T]) Len() int {
	return len(*p.blocks.Load())
}

// Alloc grows the pool by one block, built by zero, and returns its offset.
// The returned block is never moved or reallocated for the pool's lifetime.
func (p *Pool[T]) Alloc(zero func() *T) (uint32, *T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := *p.blocks.Load()
	if p.maxCount > 0 && len(old) >= p.maxCount {
		return 0, nil, ErrExhausted
	}

	off := uint32(len(old))
	grown := make([]*T, len(old)+1)
	copy(grown, old)
	block := zero()
	grown[off] = block
	p.blocks.Store(&grown)
	return off, block, nil
}
