package tokens

import (
	"context"
	"time"

	"pdf2png/internal/infra/logging"
)

// Loader is a source of tokens.
type Loader interface {
	LoadTokens(ctx context.Context) (map[string]int, error)
}

// Reloader keeps a Cache in sync with a Loader.
type Reloader struct {
	repo     Loader
	cache    *Cache
	interval time.Duration
}

// NewReloader creates a reloader refreshing cache from repo every interval.
func NewReloader(repo Loader, cache *Cache, interval time.Duration) *Reloader {
	return &Reloader{repo: repo, cache: cache, interval: interval}
}

// LoadOnce loads tokens and replaces the cache. On error the cache is left untouched.
func (r *Reloader) LoadOnce(ctx context.Context) error {
	m, err := r.repo.LoadTokens(ctx)
	if err != nil {
		return err
	}
	r.cache.Replace(m)
	return nil
}

// Start reloads tokens in the background until ctx is done.
func (r *Reloader) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.LoadOnce(ctx); err != nil {
					logging.Error("Failed to reload API tokens", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
