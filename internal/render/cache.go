package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pdf2png/internal/domain"
	"pdf2png/internal/infra/logging"
)

const cacheOpTimeout = time.Second

// Cached stores rendered pages in Redis, keyed by document digest, page and options.
// Cache failures are logged and never fail a render.
type Cached struct {
	next Renderer
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCached wraps next with a Redis page cache. A non-positive ttl defaults to one minute.
func NewCached(next Renderer, rdb *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{next: next, rdb: rdb, ttl: ttl}
}

func pageCacheKey(doc *domain.Document, page int, opts domain.RenderOptions) string {
	return fmt.Sprintf("pagecache:%s:%d:dpi=%s:gray=%t:w=%d",
		doc.Digest(), page, strconv.FormatFloat(opts.DPI, 'f', -1, 64), opts.Grayscale, opts.MaxWidth)
}

func pageCountKey(doc *domain.Document) string {
	return "pagecount:" + doc.Digest()
}

// PageCount serves the page count from cache when present.
func (c *Cached) PageCount(ctx context.Context, doc *domain.Document) (int, error) {
	key := pageCountKey(doc)
	if n, err := c.getInt(ctx, key); err == nil && n > 0 {
		return n, nil
	}
	n, err := c.next.PageCount(ctx, doc)
	if err != nil {
		return 0, err
	}
	c.set(ctx, key, strconv.Itoa(n))
	return n, nil
}

// Render serves the page from cache or renders and stores it.
func (c *Cached) Render(ctx context.Context, doc *domain.Document, page int, opts domain.RenderOptions) (domain.Image, error) {
	key := pageCacheKey(doc, page, opts)
	if img, ok := c.getImage(ctx, key); ok {
		return img, nil
	}
	img, err := c.next.Render(ctx, doc, page, opts)
	if err != nil {
		return domain.Image{}, err
	}
	c.set(ctx, key, img.Data)
	return img, nil
}

// Close closes the wrapped renderer.
func (c *Cached) Close() error {
	return c.next.Close()
}

func (c *Cached) getImage(ctx context.Context, key string) (domain.Image, bool) {
	rctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	data, err := c.rdb.Get(rctx, key).Bytes()
	if err == redis.Nil {
		return domain.Image{}, false
	}
	if err != nil {
		logging.Warn("Redis read failed", "key", key, "error", err)
		return domain.Image{}, false
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		logging.Warn("Discarding unreadable cached page", "key", key, "error", err)
		return domain.Image{}, false
	}
	logging.Debug("Page cache hit", "key", key)
	return domain.Image{Data: data, Format: domain.FormatPNG, Width: cfg.Width, Height: cfg.Height}, true
}

func (c *Cached) getInt(ctx context.Context, key string) (int, error) {
	rctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	return c.rdb.Get(rctx, key).Int()
}

func (c *Cached) set(ctx context.Context, key string, value any) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	if err := c.rdb.Set(rctx, key, value, c.ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "key", key, "error", err)
	}
}
