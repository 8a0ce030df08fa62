package vulcan

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one renderer is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// SessionPool bounds how many renders hold a browser at once.
// Each renderer owns its own browser process. Renderers are created lazily on
// first acquire to avoid startup delay. Waiters are admitted in arrival order.
type SessionPool struct {
	size        int
	sem         *semaphore.Weighted
	newRenderer func() pdfRenderer

	mu      sync.Mutex
	idle    []pdfRenderer
	created []pdfRenderer
	closed  bool
}

// NewSessionPool creates a pool with capacity for n browser-backed renderers.
func NewSessionPool(n int, browser BrowserOptions) *SessionPool {
	return newSessionPool(n, func() pdfRenderer { return newRodRenderer(browser) })
}

func newSessionPool(n int, factory func() pdfRenderer) *SessionPool {
	if n < MinPoolSize {
		n = MinPoolSize
	}
	return &SessionPool{
		size:        n,
		sem:         semaphore.NewWeighted(int64(n)),
		newRenderer: factory,
		idle:        make([]pdfRenderer, 0, n),
		created:     make([]pdfRenderer, 0, n),
	}
}

// acquire blocks until a renderer is free, ctx is done, or the pool closes.
func (p *SessionPool) acquire(ctx context.Context) (pdfRenderer, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		r := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return r, nil
	}
	r := p.newRenderer()
	p.created = append(p.created, r)
	p.mu.Unlock()

	return r, nil
}

// release returns a renderer to the pool.
func (p *SessionPool) release(r pdfRenderer) {
	p.mu.Lock()
	if !p.closed {
		p.idle = append(p.idle, r)
	}
	p.mu.Unlock()

	p.sem.Release(1)
}

func (p *SessionPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close releases all browser resources.
// Returns an aggregated error if multiple renderers fail to close.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	renderers := p.created
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, r := range renderers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *SessionPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs for containers.
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
