package sandbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Pool hands out a fixed number of runtimes so concurrent component
// validations never share a VM. A runtime is rebuilt on release, so one
// artifact never sees another's class declarations.
type Pool struct {
	config Config
	idle   chan *Runtime
	size   int

	closing chan struct{}
	mu      sync.Mutex
	closed  bool

	executions atomic.Int64
	timeouts   atomic.Int64
	replaced   atomic.Int64
}

// Stats describes pool occupancy and history
type Stats struct {
	Size       int   `json:"size"`
	Idle       int   `json:"idle"`
	Executions int64 `json:"executions"`
	Timeouts   int64 `json:"timeouts"`
	Replaced   int64 `json:"replaced"`
	Closed     bool  `json:"closed"`
}

// NewPool creates size runtimes up front
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	p := &Pool{
		config:  config,
		idle:    make(chan *Runtime, size),
		size:    size,
		closing: make(chan struct{}),
	}
	for range size {
		r, err := New(config)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.idle <- r
	}
	return p, nil
}

// Acquire takes an idle runtime, waiting at most AcquireTimeout
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	wait := p.config.AcquireTimeout
	if wait <= 0 {
		wait = DefaultConfig().AcquireTimeout
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-p.closing:
		return nil, ErrPoolClosed
	default:
	}
	select {
	case r := <-p.idle:
		return r, nil
	case <-p.closing:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrAcquireTimeout
	}
}

// Release rebuilds r and returns it to the pool. A runtime that cannot be
// rebuilt is replaced so the pool keeps its size.
func (p *Pool) Release(r *Runtime) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return r.Close()
	}

	err := r.Reset()
	if err != nil {
		r.Close()
		fresh, newErr := New(p.config)
		if newErr != nil {
			return errors.Join(err, newErr)
		}
		p.replaced.Add(1)
		r = fresh
	}
	p.idle <- r
	return err
}

// Execute runs script on a pooled runtime
func (p *Pool) Execute(ctx context.Context, script string, globals map[string]string) (*Result, error) {
	r, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(r)

	p.executions.Add(1)
	res, err := r.Execute(ctx, script, globals)
	if errors.Is(err, ErrExecutionTimeout) {
		p.timeouts.Add(1)
	}
	return res, err
}

// Close stops handing out runtimes and closes the idle ones. Runtimes still
// in use are closed when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.closing)
	for {
		select {
		case r := <-p.idle:
			r.Close()
		default:
			return nil
		}
	}
}

// Stats returns pool statistics
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	return Stats{
		Size:       p.size,
		Idle:       len(p.idle),
		Executions: p.executions.Load(),
		Timeouts:   p.timeouts.Load(),
		Replaced:   p.replaced.Load(),
		Closed:     closed,
	}
}
