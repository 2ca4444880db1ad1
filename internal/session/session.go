package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrStorageUnavailable is reported by Provider.Degraded when the session id
// could not be persisted and an in-memory id is in use instead.
var ErrStorageUnavailable = errors.New("session storage unavailable")

// ErrNoSession is returned by a Store that holds no id yet.
var ErrNoSession = errors.New("no session stored")

// Store persists a single session id.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, id string) error
}

// NewID returns "session-<12 random hex>-<unix millis>".
func NewID() string {
	return newIDAt(time.Now())
}

func newIDAt(t time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("session-%s-%d", random, t.UnixMilli())
}

// Provider hands out one stable session id per store.
type Provider struct {
	store Store

	mu       sync.Mutex
	id       string
	degraded error
}

func NewProvider(store Store) *Provider {
	return &Provider{store: store}
}

// GetOrCreate returns the stored id, generating and saving one on first use.
// Storage failures never prevent an id from being returned: the provider falls
// back to an in-memory id for its own lifetime and records the failure.
func (p *Provider) GetOrCreate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" {
		return p.id, nil
	}

	id, err := p.store.Load(ctx)
	if err == nil && id != "" {
		p.id = id
		return id, nil
	}
	if err != nil && !errors.Is(err, ErrNoSession) {
		p.id = NewID()
		p.degraded = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		return p.id, nil
	}

	id = NewID()
	if err := p.store.Save(ctx, id); err != nil {
		p.degraded = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	p.id = id
	return id, nil
}

// Degraded returns a non-nil error wrapping ErrStorageUnavailable when the
// current id lives only in memory.
func (p *Provider) Degraded() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

// Reset replaces the current id with a fresh one.
func (p *Provider) Reset(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.id = NewID()
	p.degraded = nil
	if err := p.store.Save(ctx, p.id); err != nil {
		p.degraded = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return p.id, nil
}
