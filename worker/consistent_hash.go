package worker

import (
	"fmt"
	"hash/crc32"
	"sort"
)

// ConsistentHash maps keys to worker indices using a hash ring.
// The same key always maps to the same worker for a given pool size.
//
// Virtual nodes: each worker is placed on the ring 100 times so a handful of
// workers still share keys evenly.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         1 ●               ● 0
//	           │    key ◆──►   │   (clockwise to nearest node → 0)
//	         2 ●               ● 0' (virtual node of 0)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHash struct {
	replicas int            // Virtual nodes per worker
	ring     []uint32       // Sorted hash values on the ring
	nodes    map[uint32]int // Hash value → worker index
}

// NewConsistentHash builds a ring for workers 0..size-1 with 100 virtual nodes each.
// The ring is immutable afterwards, so Pick needs no locking.
func NewConsistentHash(size int) *ConsistentHash {
	b := &ConsistentHash{
		replicas: 100,
		nodes:    make(map[uint32]int),
	}
	for w := 0; w < size; w++ {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("worker-%d#%d", w, i)))
			if _, taken := b.nodes[hash]; taken {
				continue
			}
			b.ring = append(b.ring, hash)
			b.nodes[hash] = w
		}
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
	return b
}

// Pick hashes the key, then binary-searches for the first node >= hash on the ring,
// wrapping around to the first node past the end.
func (b *ConsistentHash) Pick(key string) int {
	if len(b.ring) == 0 {
		return 0
	}
	hash := crc32.ChecksumIEEE([]byte(key))

	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	return b.nodes[b.ring[idx]]
}

func (b *ConsistentHash) Name() string {
	return "ConsistentHash"
}
