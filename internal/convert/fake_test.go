package convert

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pdf2png/internal/domain"
)

// fakeRenderer records concurrency and calls. Pages listed in failures return
// that error; pages listed in panics panic.
type fakeRenderer struct {
	pages    int
	countErr error
	delay    time.Duration
	failures map[int]error
	panics   map[int]bool
	// gate, when set, blocks every Render until it is closed or ctx is done.
	gate chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	countCalls  atomic.Int32

	mu    sync.Mutex
	calls map[int]int
}

func newFakeRenderer(pages int) *fakeRenderer {
	return &fakeRenderer{pages: pages, calls: make(map[int]int)}
}

func (f *fakeRenderer) PageCount(ctx context.Context, doc *domain.Document) (int, error) {
	f.countCalls.Add(1)
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.pages, nil
}

func (f *fakeRenderer) Render(ctx context.Context, doc *domain.Document, page int, opts domain.RenderOptions) (domain.Image, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[page]++
	f.mu.Unlock()

	if f.panics[page] {
		panic(fmt.Sprintf("engine crashed on page %d", page))
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return domain.Image{}, ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.failures[page]; ok {
		return domain.Image{}, err
	}
	if page > f.pages {
		return domain.Image{}, fmt.Errorf("%w: page %d", domain.ErrPageOutOfRange, page)
	}
	return domain.Image{Data: []byte(fmt.Sprintf("png-%d-gray=%t", page, opts.Grayscale)), Format: domain.FormatPNG, Width: 10, Height: 10}, nil
}

func (f *fakeRenderer) callCount(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[page]
}

func (f *fakeRenderer) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// countingAdmission is a tiny admission pool used to check slot accounting.
type countingAdmission struct {
	sem      chan struct{}
	acquired atomic.Int32
	released atomic.Int32
	failed   atomic.Int32
}

func newCountingAdmission(n int) *countingAdmission {
	return &countingAdmission{sem: make(chan struct{}, n)}
}

func (a *countingAdmission) Acquire(ctx context.Context) error {
	select {
	case a.sem <- struct{}{}:
		a.acquired.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *countingAdmission) Release(renderErr error) {
	if renderErr != nil {
		a.failed.Add(1)
	}
	a.released.Add(1)
	<-a.sem
}
