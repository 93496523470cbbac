package worker

import "sync/atomic"

// RoundRobin cycles through size workers, ignoring the key.
// Uses an atomic counter for lock-free, goroutine-safe operation.
type RoundRobin struct {
	size    int64
	counter atomic.Int64 // Incremented on each Pick()
}

func NewRoundRobin(size int) *RoundRobin {
	return &RoundRobin{size: int64(size)}
}

func (b *RoundRobin) Pick(string) int {
	if b.size <= 0 {
		return 0
	}
	return int((b.counter.Add(1) - 1) % b.size)
}

func (b *RoundRobin) Name() string {
	return "RoundRobin"
}
