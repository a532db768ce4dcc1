package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Acquire once Close has been called.
var ErrPoolClosed = errors.New("render pool closed")

// Pool bounds the number of page renders running at once across the whole process.
type Pool struct {
	sem      *semaphore.Weighted
	capacity int64
	engine   string

	inUse    atomic.Int64
	acquired atomic.Int64
	failures atomic.Int64

	mu          sync.Mutex
	closed      bool
	lastFailure time.Time
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Enabled     bool      `json:"enabled"`
	Engine      string    `json:"engine"`
	Capacity    int       `json:"capacity"`
	Idle        int       `json:"idle"`
	InUse       int       `json:"in_use"`
	Acquired    int64     `json:"acquired"`
	Failures    int64     `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// NewPool creates a pool admitting at most capacity concurrent renders.
func NewPool(capacity int, engine string) (*Pool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("render pool disabled: capacity %d", capacity)
	}
	return &Pool{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		engine:   engine,
	}, nil
}

// Acquire blocks until a render slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if p.isClosed() {
		return ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if p.isClosed() {
		p.sem.Release(1)
		return ErrPoolClosed
	}
	p.inUse.Add(1)
	p.acquired.Add(1)
	return nil
}

// Release returns a slot taken by Acquire. renderErr is recorded for stats.
func (p *Pool) Release(renderErr error) {
	if renderErr != nil {
		p.failures.Add(1)
		p.mu.Lock()
		p.lastFailure = time.Now()
		p.mu.Unlock()
	}
	p.inUse.Add(-1)
	p.sem.Release(1)
}

// Stats reports capacity and current usage.
func (p *Pool) Stats() Stats {
	if p == nil || p.isClosed() {
		return Stats{}
	}
	inUse := int(p.inUse.Load())
	p.mu.Lock()
	last := p.lastFailure
	p.mu.Unlock()
	return Stats{
		Enabled:     true,
		Engine:      p.engine,
		Capacity:    int(p.capacity),
		Idle:        int(p.capacity) - inUse,
		InUse:       inUse,
		Acquired:    p.acquired.Load(),
		Failures:    p.failures.Load(),
		LastFailure: last,
	}
}

// Close rejects further acquisitions. Renders already holding a slot are unaffected.
// Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
