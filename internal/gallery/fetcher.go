package gallery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"imageshelf/internal/domain"
	"imageshelf/internal/domain/listing"
)

type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 8 * time.Second
)

// Lister fetches one listing page. It must return promptly once ctx is
// cancelled.
type Lister interface {
	List(ctx context.Context, limit, offset int) (*listing.Page, error)
}

// Clock schedules retries. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Snapshot is what a renderer shows. Items are replaced wholesale on each
// success and stay visible while a later cycle is loading.
type Snapshot struct {
	State   State
	Items   []domain.ImageDescriptor
	Total   int64
	Err     string
	Attempt int
	Cycle   uint64
}

type Options struct {
	Limit  int
	Offset int
	// MaxRetries is taken literally: 0 shows the first failure. Start from
	// DefaultOptions for the standard budget.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Clock      Clock
	// OnChange receives every transition. It is called with the fetcher's
	// lock held and must not call back into the Fetcher.
	OnChange func(Snapshot)
}

// DefaultOptions returns the first page with the standard retry budget.
func DefaultOptions() Options {
	return Options{
		Limit:      listing.DefaultLimit,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = listing.DefaultLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	return o
}

// cycle is one Refresh. Only the current cycle may change state.
type cycle struct {
	id      uint64
	ctx     context.Context
	cancel  context.CancelFunc
	retries int
	timer   Timer
}

// Fetcher keeps a rendered listing page fresh. Transient failures are
// retried with capped exponential backoff and only surface once the retry
// budget is spent. A new Refresh supersedes the previous cycle: its pending
// retry is stopped, its request is cancelled, and any result it still
// produces is dropped.
type Fetcher struct {
	lister Lister
	opts   Options
	log    *zap.Logger

	mu     sync.Mutex
	snap   Snapshot
	cur    *cycle
	seq    uint64
	closed bool
	wg     sync.WaitGroup
}

func NewFetcher(lister Lister, opts Options, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		lister: lister,
		opts:   opts.withDefaults(),
		log:    log,
		snap:   Snapshot{State: StateLoading},
	}
}

func (f *Fetcher) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// Refresh starts a new fetch cycle and returns without waiting for it.
// Cancelling ctx ends the cycle without a state change.
func (f *Fetcher) Refresh(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	f.stopLocked()
	f.seq++
	cctx, cancel := context.WithCancel(ctx)
	c := &cycle{id: f.seq, ctx: cctx, cancel: cancel}
	f.cur = c

	f.snap.State = StateLoading
	f.snap.Err = ""
	f.snap.Attempt = 0
	f.snap.Cycle = c.id
	f.notifyLocked()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.attempt(c)
	}()
}

// Close cancels the current cycle and waits for in-flight requests to
// return. No transitions happen afterwards.
func (f *Fetcher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.stopLocked()
	f.cur = nil
	f.mu.Unlock()

	f.wg.Wait()
}

func (f *Fetcher) stopLocked() {
	if f.cur == nil {
		return
	}
	if f.cur.timer != nil {
		f.cur.timer.Stop()
		f.cur.timer = nil
	}
	f.cur.cancel()
}

func (f *Fetcher) currentLocked(c *cycle) bool {
	return !f.closed && c == f.cur && c.ctx.Err() == nil
}

// retry runs when a backoff timer fires. A timer that outlived its cycle
// does nothing.
func (f *Fetcher) retry(c *cycle) {
	f.mu.Lock()
	if !f.currentLocked(c) {
		f.mu.Unlock()
		f.log.Debug("stale retry ignored", zap.Uint64("cycle", c.id))
		return
	}
	c.timer = nil
	f.wg.Add(1)
	f.mu.Unlock()

	defer f.wg.Done()
	f.attempt(c)
}

func (f *Fetcher) attempt(c *cycle) {
	page, err := f.lister.List(c.ctx, f.opts.Limit, f.opts.Offset)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.currentLocked(c) {
		f.log.Debug("stale result dropped", zap.Uint64("cycle", c.id))
		return
	}

	if err == nil {
		items := page.Items
		if items == nil {
			items = []domain.ImageDescriptor{}
		}
		c.retries = 0
		f.snap = Snapshot{
			State: StateSuccess,
			Items: items,
			Total: page.Total,
			Cycle: c.id,
		}
		f.notifyLocked()
		return
	}

	if c.retries < f.opts.MaxRetries {
		delay := f.backoff(c.retries)
		c.retries++
		f.log.Debug("listing fetch failed, retrying",
			zap.Uint64("cycle", c.id),
			zap.Int("retry", c.retries),
			zap.Duration("delay", delay),
			zap.Error(err))
		c.timer = f.opts.Clock.AfterFunc(delay, func() { f.retry(c) })

		f.snap.State = StateLoading
		f.snap.Attempt = c.retries
		f.notifyLocked()
		return
	}

	f.log.Warn("listing fetch failed, giving up",
		zap.Uint64("cycle", c.id),
		zap.Int("retries", c.retries),
		zap.Error(err))
	f.snap.State = StateError
	f.snap.Err = err.Error()
	f.snap.Attempt = c.retries
	f.notifyLocked()
}

// backoff is BaseDelay doubled per previous retry, capped at MaxDelay.
func (f *Fetcher) backoff(retries int) time.Duration {
	d := f.opts.BaseDelay
	for i := 0; i < retries; i++ {
		d *= 2
		if d >= f.opts.MaxDelay {
			return f.opts.MaxDelay
		}
	}
	return min(d, f.opts.MaxDelay)
}

func (f *Fetcher) notifyLocked() {
	if f.opts.OnChange != nil {
		f.opts.OnChange(f.snap)
	}
}
