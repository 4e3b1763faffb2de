// Package browser manages a bounded pool of automated-browser instances.
package browser

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/printwerk/labelpress/internal/domain"
)

// Instance is one underlying browser process. Creation and destruction of
// instances is the pool's exclusive responsibility.
type Instance interface {
	// NewContext opens an isolated work unit on the instance
	NewContext() (Context, error)

	// Close destroys the instance
	Close() error
}

// Context is the ephemeral work unit lent out with a lease. It is disposed
// on release; the underlying instance survives.
type Context interface {
	// NewPage opens a page inside the work unit
	NewPage() (playwright.Page, error)

	// Close disposes the work unit
	Close() error
}

// LaunchFunc creates a new browser instance
type LaunchFunc func(ctx context.Context) (Instance, error)

// Lease is an exclusively-held handle to a pooled browser instance
type Lease struct {
	instance     Instance
	workCtx      Context
	inUse        bool
	requestCount int
	createdAt    time.Time
	lastUsed     time.Time
}

// Context returns the lease's current work unit
func (l *Lease) Context() Context {
	return l.workCtx
}

// Options configures a Pool
type Options struct {
	Max              int
	RecycleThreshold int
	AcquireTimeout   time.Duration
	PollInterval     time.Duration
	ShutdownTimeout  time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Max <= 0 {
		out.Max = 3
	}
	if out.RecycleThreshold <= 0 {
		out.RecycleThreshold = 50
	}
	if out.AcquireTimeout <= 0 {
		out.AcquireTimeout = 30 * time.Second
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 100 * time.Millisecond
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = 30 * time.Second
	}
	return out
}

// Pool manages a bounded set of browser instances and lends exclusive
// leases. Callers must invoke the returned release func on every exit path.
type Pool struct {
	mu     sync.Mutex
	leases []*Lease
	launch LaunchFunc
	opts   Options
	closed bool
}

// NewPool creates a Pool. Instances are launched lazily on demand.
func NewPool(launch LaunchFunc, opts Options) *Pool {
	return &Pool{
		launch: launch,
		opts:   opts.withDefaults(),
	}
}

// Size returns the number of currently-live leases
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.leases)
}

// Acquire lends an exclusive lease, blocking up to the acquire timeout when
// the pool is at capacity. The returned release func is idempotent and must
// be called on all exit paths.
func (p *Pool) Acquire(ctx context.Context) (*Lease, func(), error) {
	deadline := time.Now().Add(p.opts.AcquireTimeout)

	for {
		lease, release, err := p.tryAcquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		if lease != nil {
			return lease, release, nil
		}

		if time.Now().After(deadline) {
			return nil, nil, fmt.Errorf("%w: no lease freed within %s",
				domain.ErrResourceExhausted, p.opts.AcquireTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(p.opts.PollInterval):
		}
	}
}

// tryAcquire attempts one non-blocking acquisition pass
func (p *Pool) tryAcquire(ctx context.Context) (*Lease, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, nil, fmt.Errorf("browser pool: %w", context.Canceled)
	}

	for _, lease := range p.leases {
		if lease.inUse {
			continue
		}
		if lease.requestCount >= p.opts.RecycleThreshold {
			if err := p.recycleLocked(ctx, lease); err != nil {
				return nil, nil, err
			}
		}
		return p.lendLocked(lease)
	}

	if len(p.leases) < p.opts.Max {
		instance, err := p.launch(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("launch browser: %w", err)
		}
		lease := &Lease{instance: instance, createdAt: time.Now()}
		p.leases = append(p.leases, lease)
		return p.lendLocked(lease)
	}

	return nil, nil, nil
}

// recycleLocked destroys a worn-out instance and replaces it in place
func (p *Pool) recycleLocked(ctx context.Context, lease *Lease) error {
	log.Printf("browser pool: recycling instance after %d requests", lease.requestCount)

	if err := lease.instance.Close(); err != nil {
		log.Printf("browser pool: close during recycle: %v", err)
	}

	instance, err := p.launch(ctx)
	if err != nil {
		p.removeLocked(lease)
		return fmt.Errorf("relaunch browser: %w", err)
	}

	lease.instance = instance
	lease.requestCount = 0
	lease.createdAt = time.Now()
	return nil
}

func (p *Pool) lendLocked(lease *Lease) (*Lease, func(), error) {
	workCtx, err := lease.instance.NewContext()
	if err != nil {
		return nil, nil, fmt.Errorf("new browser context: %w", err)
	}

	lease.workCtx = workCtx
	lease.inUse = true
	lease.requestCount++
	lease.lastUsed = time.Now()

	var once sync.Once
	release := func() {
		once.Do(func() { p.release(lease) })
	}
	return lease, release, nil
}

// release disposes the ephemeral work unit and marks the lease free. The
// underlying instance stays alive for the next acquisition.
func (p *Pool) release(lease *Lease) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if lease.workCtx != nil {
		if err := lease.workCtx.Close(); err != nil {
			log.Printf("browser pool: close context: %v", err)
		}
		lease.workCtx = nil
	}
	lease.inUse = false
	lease.lastUsed = time.Now()
}

func (p *Pool) removeLocked(lease *Lease) {
	for i, l := range p.leases {
		if l == lease {
			p.leases = append(p.leases[:i], p.leases[i+1:]...)
			return
		}
	}
}

// Shutdown stops new acquisitions, waits up to the shutdown timeout for
// in-use leases to free, then force-destroys all instances.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	deadline := time.Now().Add(p.opts.ShutdownTimeout)
	for time.Now().Before(deadline) {
		if p.allFree() {
			break
		}
		select {
		case <-ctx.Done():
			deadline = time.Now()
		case <-time.After(p.opts.PollInterval):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, lease := range p.leases {
		if lease.workCtx != nil {
			_ = lease.workCtx.Close()
			lease.workCtx = nil
		}
		if err := lease.instance.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.leases = nil
	return firstErr
}

func (p *Pool) allFree() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, lease := range p.leases {
		if lease.inUse {
			return false
		}
	}
	return true
}
