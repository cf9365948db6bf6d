package watchlist

import (
	"hash/fnv"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/launchpad-go/internal/constants"
)

// Bloom is a probabilistic set of token addresses used as a negative-lookup
// fast path: MightContain returning false means the token is definitely not
// watched by anyone, so the fan-out can skip the watcher index entirely.
//
// Bits are never cleared on removal. A stale bit only costs one index lookup
// that comes back empty, so the filter never needs rebuilding.
type Bloom struct {
	mu        sync.RWMutex
	bitset    []uint64
	size      uint64 // number of bits, multiple of 64
	hashCount uint
	count     uint64
}

// NewBloom sizes a filter for the expected number of distinct watched tokens
// and the desired false positive rate. Out-of-range arguments fall back to
// the package defaults.
//
//	m = -n * ln(p) / ln(2)^2
//	k = (m / n) * ln(2)
func NewBloom(expectedItems int, falsePositiveRate float64) *Bloom {
	if expectedItems <= 0 {
		expectedItems = constants.DefaultWatchlistExpectedTokens
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = constants.DefaultWatchlistFalsePositiveRate
	}

	n := float64(expectedItems)
	m := -n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)
	k := (m / n) * math.Ln2

	// Round bits up to a whole number of uint64 words.
	size := uint64(math.Ceil(m/64) * 64)

	return &Bloom{
		bitset:    make([]uint64, size/64),
		size:      size,
		hashCount: uint(math.Ceil(k)),
	}
}

// Add marks a token address as present.
func (b *Bloom) Add(addr common.Address) {
	h1, h2 := hashPair(addr)

	b.mu.Lock()
	defer b.mu.Unlock()

	for i := uint(0); i < b.hashCount; i++ {
		idx := (h1 + uint64(i)*h2) % b.size
		b.bitset[idx/64] |= 1 << (idx % 64)
	}
	b.count++
}

// MightContain reports whether the address may have been added. False means
// definitely absent; true means a watcher index lookup is required.
func (b *Bloom) MightContain(addr common.Address) bool {
	h1, h2 := hashPair(addr)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := uint(0); i < b.hashCount; i++ {
		idx := (h1 + uint64(i)*h2) % b.size
		if b.bitset[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of Add calls, including duplicates.
func (b *Bloom) Count() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Size returns the bitset size in bits.
func (b *Bloom) Size() uint64 {
	return b.size
}

// HashCount returns the number of probes per lookup.
func (b *Bloom) HashCount() uint {
	return b.hashCount
}

// hashPair derives the two FNV-1a hashes used for double hashing, so each
// probe is h1 + i*h2 without rehashing the address per probe.
func hashPair(addr common.Address) (uint64, uint64) {
	h := fnv.New64a()
	h.Write(addr[:])
	h1 := h.Sum64()

	h.Reset()
	h.Write(addr[:])
	h.Write([]byte{0xff})
	h2 := h.Sum64()

	// An odd stride visits distinct bits across probes.
	h2 |= 1

	return h1, h2
}
