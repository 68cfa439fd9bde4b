package seen

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/twmb/murmur3"
)

// Filter is a bloom filter over origin message IDs. The relay records every
// message ID it has already fanned out; an inbound event whose ID is in the
// filter is a read-back of our own delivery and must not be relayed again.
// False positives drop a genuine message, so the filter is sized generously;
// false negatives are caught by the envelope marker.
type Filter struct {
	mu     sync.RWMutex
	bits   *bitset.BitSet
	size   uint
	hashes uint
}

// NewFilter creates a filter with the given bit size and hash count.
func NewFilter(size, hashes uint) *Filter {
	if size == 0 {
		size = 1 << 20
	}
	if hashes == 0 {
		hashes = 4
	}
	return &Filter{
		bits:   bitset.New(size),
		size:   size,
		hashes: hashes,
	}
}

// Add records a message ID.
func (f *Filter) Add(id string) {
	h1, h2 := murmur3.StringSum128(id)
	f.mu.Lock()
	for i := uint(0); i < f.hashes; i++ {
		f.bits.Set(uint(h1+uint64(i)*h2) % f.size)
	}
	f.mu.Unlock()
}

// Contains reports whether the ID was (probably) recorded before.
func (f *Filter) Contains(id string) bool {
	h1, h2 := murmur3.StringSum128(id)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := uint(0); i < f.hashes; i++ {
		if !f.bits.Test(uint(h1+uint64(i)*h2) % f.size) {
			return false
		}
	}
	return true
}
