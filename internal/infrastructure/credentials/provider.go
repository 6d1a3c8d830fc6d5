// Package credentials supplies operator credentials for media upload.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pdv/catalogsync/internal/domain/catalogsync"
	"go.uber.org/zap"
)

// StaticProvider returns credentials fixed at construction, typically from configuration.
type StaticProvider struct {
	creds catalogsync.MediaCredentials
}

// NewStaticProvider creates a StaticProvider
func NewStaticProvider(username, applicationPassword string) *StaticProvider {
	return &StaticProvider{creds: catalogsync.MediaCredentials{
		Username:            username,
		ApplicationPassword: applicationPassword,
	}}
}

// MediaCredentials implements catalogsync.CredentialProvider
func (p *StaticProvider) MediaCredentials(context.Context) (catalogsync.MediaCredentials, error) {
	if !p.creds.IsComplete() {
		return catalogsync.MediaCredentials{}, catalogsync.ErrCredentialMissing
	}
	return p.creds, nil
}

// SharedCache holds credentials where several instances can read them.
type SharedCache interface {
	// Get returns found=false when nothing is cached
	Get(ctx context.Context) (creds catalogsync.MediaCredentials, found bool, err error)
	Set(ctx context.Context, creds catalogsync.MediaCredentials, ttl time.Duration) error
}

// CachedProvider memoizes a source provider's successful answer for ttl, both
// in memory and, when configured, in a shared cache. Failures are not cached.
// It is safe for concurrent use.
type CachedProvider struct {
	source catalogsync.CredentialProvider
	shared SharedCache
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu        sync.Mutex
	cached    catalogsync.MediaCredentials
	expiresAt time.Time
}

// CachedOption configures a CachedProvider
type CachedOption func(*CachedProvider)

// WithSharedCache adds a cache shared between instances
func WithSharedCache(c SharedCache) CachedOption {
	return func(p *CachedProvider) { p.shared = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) CachedOption {
	return func(p *CachedProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewCachedProvider wraps source. A non-positive ttl keeps credentials for the
// provider's lifetime.
func NewCachedProvider(source catalogsync.CredentialProvider, ttl time.Duration, opts ...CachedOption) *CachedProvider {
	p := &CachedProvider{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MediaCredentials implements catalogsync.CredentialProvider
func (p *CachedProvider) MediaCredentials(ctx context.Context) (catalogsync.MediaCredentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached.IsComplete() && (p.expiresAt.IsZero() || p.now().Before(p.expiresAt)) {
		return p.cached, nil
	}

	if p.shared != nil {
		creds, found, err := p.shared.Get(ctx)
		switch {
		case err != nil:
			p.logger.Warn("Shared credential cache read failed", zap.Error(err))
		case found && creds.IsComplete():
			p.store(creds)
			return creds, nil
		}
	}

	if p.source == nil {
		return catalogsync.MediaCredentials{}, catalogsync.ErrCredentialMissing
	}
	creds, err := p.source.MediaCredentials(ctx)
	if err != nil {
		if errors.Is(err, catalogsync.ErrCredentialMissing) {
			return catalogsync.MediaCredentials{}, err
		}
		return catalogsync.MediaCredentials{}, fmt.Errorf("%w: %v", catalogsync.ErrCredentialMissing, err)
	}
	if !creds.IsComplete() {
		return catalogsync.MediaCredentials{}, catalogsync.ErrCredentialMissing
	}

	p.store(creds)
	if p.shared != nil {
		if err := p.shared.Set(ctx, creds, p.ttl); err != nil {
			p.logger.Warn("Shared credential cache write failed", zap.Error(err))
		}
	}
	return creds, nil
}

// Invalidate drops the in-memory copy, forcing the next call to the shared cache or source
func (p *CachedProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = catalogsync.MediaCredentials{}
	p.expiresAt = time.Time{}
}

func (p *CachedProvider) store(creds catalogsync.MediaCredentials) {
	p.cached = creds
	if p.ttl > 0 {
		p.expiresAt = p.now().Add(p.ttl)
	} else {
		p.expiresAt = time.Time{}
	}
}

var (
	_ catalogsync.CredentialProvider = (*StaticProvider)(nil)
	_ catalogsync.CredentialProvider = (*CachedProvider)(nil)
)
