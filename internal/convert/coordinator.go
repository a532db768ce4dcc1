package convert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pdf2png/internal/domain"
)

// PageRenderer is what the coordinator needs from a rendering engine.
type PageRenderer interface {
	PageCount(ctx context.Context, doc *domain.Document) (int, error)
	Render(ctx context.Context, doc *domain.Document, page int, opts domain.RenderOptions) (domain.Image, error)
}

// Admission hands out process-wide render slots. *pool.Pool implements it.
type Admission interface {
	Acquire(ctx context.Context) error
	Release(renderErr error)
}

// Batch is the collected work of one Convert call.
type Batch struct {
	// PageCount is the document length reported by the pre-flight check.
	PageCount int
	// Outcomes holds exactly one outcome per selected page, ordered by page number.
	Outcomes []domain.RenderOutcome
}

// Coordinator fans a page selection out to a renderer with bounded concurrency.
type Coordinator struct {
	renderer       PageRenderer
	slots          Admission
	defaultLimit   int
	acquireTimeout time.Duration
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithAdmission makes every render hold a slot from a shared pool.
func WithAdmission(slots Admission) CoordinatorOption {
	return func(c *Coordinator) { c.slots = slots }
}

// WithDefaultLimit sets the concurrency used when Convert is given a limit <= 0.
func WithDefaultLimit(n int) CoordinatorOption {
	return func(c *Coordinator) { c.defaultLimit = n }
}

// WithAcquireTimeout bounds how long a task waits for an admission slot.
func WithAcquireTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.acquireTimeout = d }
}

// NewCoordinator creates a coordinator over renderer.
func NewCoordinator(renderer PageRenderer, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{renderer: renderer, defaultLimit: 1}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaultLimit < 1 {
		c.defaultLimit = 1
	}
	return c
}

// Convert renders every page of sel, running at most limit renders at once.
//
// The document is opened exactly once up front; if that fails the whole call
// fails with domain.ErrUnprocessableDocument. After that, individual page
// failures are recorded as outcomes and never abort sibling pages. Pages past
// the end of the document are recorded as out_of_range without being rendered.
// If ctx is done before all pages ran, unstarted pages are recorded as
// canceled and ctx's error is returned alongside the batch.
func (c *Coordinator) Convert(ctx context.Context, doc *domain.Document, sel domain.PageSelection, limit int, opts domain.RenderOptions) (Batch, error) {
	if sel.Empty() {
		return Batch{}, domain.ErrNothingToRender
	}

	count, err := c.preflight(ctx, doc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Batch{}, ctxErr
		}
		return Batch{}, fmt.Errorf("%w: %v", domain.ErrUnprocessableDocument, err)
	}
	if count <= 0 {
		return Batch{}, fmt.Errorf("%w: document has no pages", domain.ErrUnprocessableDocument)
	}

	pages := sel.Pages()
	outcomes := make([]domain.RenderOutcome, len(pages))
	pending := make([]int, 0, len(pages))
	for i, page := range pages {
		if page > count {
			outcomes[i] = domain.Failed(page, &domain.RenderError{
				Page: page,
				Err:  fmt.Errorf("%w: page %d of %d", domain.ErrPageOutOfRange, page, count),
			})
			continue
		}
		pending = append(pending, i)
	}

	c.run(ctx, doc, pages, pending, outcomes, c.workers(limit, len(pending)), opts)

	batch := Batch{PageCount: count, Outcomes: outcomes}
	if err := ctx.Err(); err != nil {
		return batch, err
	}
	return batch, nil
}

func (c *Coordinator) workers(limit, tasks int) int {
	if limit <= 0 {
		limit = c.defaultLimit
	}
	if limit > tasks {
		limit = tasks
	}
	return limit
}

// run executes pending (indexes into pages) on n workers. Each worker writes
// only the outcome slots of the tasks it received.
func (c *Coordinator) run(ctx context.Context, doc *domain.Document, pages, pending []int, outcomes []domain.RenderOutcome, n int, opts domain.RenderOptions) {
	if len(pending) == 0 {
		return
	}

	queue := make(chan int)
	done := make(chan struct{})
	for w := 0; w < n; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := range queue {
				outcomes[i] = c.runTask(ctx, domain.RenderTask{Document: doc, Page: pages[i], Options: opts})
			}
		}()
	}

feed:
	for k, i := range pending {
		select {
		case queue <- i:
		case <-ctx.Done():
			for _, j := range pending[k:] {
				outcomes[j] = domain.Failed(pages[j], ctx.Err())
			}
			break feed
		}
	}
	close(queue)
	for w := 0; w < n; w++ {
		<-done
	}
}

func (c *Coordinator) runTask(ctx context.Context, task domain.RenderTask) (out domain.RenderOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.Failed(task.Page, fmt.Errorf("%w: panic: %v", domain.ErrRendererFailure, r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return domain.Failed(task.Page, err)
	}

	if c.slots != nil {
		if err := c.acquire(ctx); err != nil {
			return domain.Failed(task.Page, err)
		}
		var renderErr error
		defer func() { c.slots.Release(renderErr) }()

		img, err := c.renderer.Render(ctx, task.Document, task.Page, task.Options)
		if err != nil {
			renderErr = err
			return domain.Failed(task.Page, err)
		}
		return domain.Rendered(task.Page, img)
	}

	img, err := c.renderer.Render(ctx, task.Document, task.Page, task.Options)
	if err != nil {
		return domain.Failed(task.Page, err)
	}
	return domain.Rendered(task.Page, img)
}

func (c *Coordinator) acquire(ctx context.Context) error {
	if c.acquireTimeout <= 0 {
		return c.slots.Acquire(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, c.acquireTimeout)
	defer cancel()
	err := c.slots.Acquire(actx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: no render slot free within %s", domain.ErrRendererFailure, c.acquireTimeout)
	}
	return err
}

func (c *Coordinator) preflight(ctx context.Context, doc *domain.Document) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: panic: %v", domain.ErrCorruptDocument, r)
		}
	}()
	return c.renderer.PageCount(ctx, doc)
}
