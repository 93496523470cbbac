// Package worker runs tasks on a fixed set of single-goroutine workers.
//
// Tasks that share a key always run on the same worker, in submission order, so state
// owned by that key (an open database) is only ever touched from one goroutine.
// Tasks without a key are spread across workers:
//   - RoundRobin:     keyless tasks, equal-capacity workers
//   - ConsistentHash: keyed tasks requiring affinity
package worker

// Balancer picks the index of the worker that runs a task.
// Called on every submission; must be goroutine-safe.
type Balancer interface {
	Pick(key string) int
	Name() string
}
