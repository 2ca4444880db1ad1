package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const DefaultReconcileInterval = 30 * time.Second

// CountFunc fetches the authoritative cart count.
type CountFunc func(ctx context.Context) (int, error)

// Reconciler keeps a cached cart count fresh: it refreshes immediately when
// invalidated and at most every interval otherwise.
type Reconciler struct {
	fetch    CountFunc
	interval time.Duration
	onChange func(count int)

	kick chan struct{}

	mu       sync.RWMutex
	count    int
	lastSync time.Time
	lastErr  error
}

type Option func(*Reconciler)

func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithOnChange registers a callback invoked when a refresh observes a new count.
func WithOnChange(fn func(count int)) Option {
	return func(r *Reconciler) { r.onChange = fn }
}

func NewReconciler(fetch CountFunc, opts ...Option) *Reconciler {
	r := &Reconciler{
		fetch:    fetch,
		interval: DefaultReconcileInterval,
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach invalidates the reconciler whenever the bus signals a change for
// sessionID. An empty sessionID matches every signal.
func (r *Reconciler) Attach(bus *Bus, sessionID string) (detach func()) {
	return bus.OnCartChanged(func(changed string) {
		if sessionID == "" || changed == sessionID {
			r.Invalidate()
		}
	})
}

// Invalidate schedules an immediate refresh. Repeated calls before the
// refresh runs collapse into one.
func (r *Reconciler) Invalidate() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Count returns the last known count. Before the first successful refresh it
// is zero.
func (r *Reconciler) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

func (r *Reconciler) LastSync() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSync
}

func (r *Reconciler) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Refresh pulls the current count. On failure the previous count is kept.
func (r *Reconciler) Refresh(ctx context.Context) (int, error) {
	n, err := r.fetch(ctx)

	r.mu.Lock()
	if err != nil {
		r.lastErr = err
		prev := r.count
		r.mu.Unlock()
		log.Debugw("cart count refresh failed", "error", err)
		return prev, err
	}
	changed := n != r.count
	r.count = n
	r.lastErr = nil
	r.lastSync = time.Now()
	r.mu.Unlock()

	if changed && r.onChange != nil {
		r.onChange(n)
	}
	return n, nil
}

// Run refreshes once, then on every invalidation and interval tick, until
// ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	_, _ = r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.kick:
			_, _ = r.Refresh(ctx)
			ticker.Reset(r.interval)
		case <-ticker.C:
			_, _ = r.Refresh(ctx)
		}
	}
}
