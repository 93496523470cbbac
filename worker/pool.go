package worker

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool closed")

// Pool owns size worker goroutines, each draining its own queue in order.
type Pool struct {
	queues []chan func()
	keyed  Balancer
	spread Balancer
	logger *zap.Logger

	mu     sync.RWMutex // Guards closed against concurrent Submit
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts size workers with queues of queueDepth tasks each.
// Submit blocks while the chosen worker's queue is full.
func NewPool(size, queueDepth int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		queues: make([]chan func(), size),
		keyed:  NewConsistentHash(size),
		spread: NewRoundRobin(size),
		logger: logger,
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), queueDepth)
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

func (p *Pool) Size() int { return len(p.queues) }

// WorkerFor reports which worker runs tasks submitted with key.
func (p *Pool) WorkerFor(key string) int {
	if key == "" {
		return -1
	}
	return p.keyed.Pick(key)
}

// Submit queues task. Tasks with the same non-empty key run on the same worker in
// submission order; keyless tasks are spread round-robin.
func (p *Pool) Submit(key string, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	var idx int
	if key == "" {
		idx = p.spread.Pick(key)
	} else {
		idx = p.keyed.Pick(key)
	}
	p.queues[idx] <- task
	return nil
}

// Close stops accepting tasks, lets every queued task finish and waits for the workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) run(idx int) {
	defer p.wg.Done()
	for task := range p.queues[idx] {
		p.safeRun(idx, task)
	}
}

func (p *Pool) safeRun(idx int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked", zap.Int("worker", idx), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	task()
}
