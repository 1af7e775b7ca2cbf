package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shopsphere/storefront-core/session"
)

// DefaultPollInterval is how often the broadcaster confirms the badge
// count against the cart service when nothing else is happening.
const DefaultPollInterval = 10 * time.Second

// CountSource provides the server-confirmed distinct-line count.
type CountSource interface {
	FetchItemCount(ctx context.Context, sess session.Session) (int, error)
}

// CountBroadcaster keeps cart badge subscribers up to date. It emits on two
// triggers: an immediate event whenever a local mutation confirms, and a
// periodic background poll that reconciles against the server (another
// device may have changed the cart).
//
// After Stop returns, no subscriber is ever invoked again.
type CountBroadcaster struct {
	source  CountSource
	sess    session.Session
	logger  *slog.Logger
	limiter *rate.Limiter

	mu          sync.Mutex
	subscribers []func(count int)
	lastCount   int
	running     bool
	stopped     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	pokeCh      chan struct{}
}

// NewCountBroadcaster creates a broadcaster for the given session. The
// confirming fetches triggered by NotifyCount are rate limited to one per
// second so a burst of mutations does not turn into a burst of reads.
func NewCountBroadcaster(source CountSource, sess session.Session, logger *slog.Logger) *CountBroadcaster {
	return &CountBroadcaster{
		source:  source,
		sess:    sess,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		pokeCh:  make(chan struct{}, 1),
	}
}

// Subscribe registers a badge listener. Listeners are invoked serially and
// must return quickly.
func (b *CountBroadcaster) Subscribe(fn func(count int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Start launches the background poll loop. Starting an already running or
// stopped broadcaster is a no-op. An interval of zero or less uses
// DefaultPollInterval.
func (b *CountBroadcaster) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	b.mu.Lock()
	if b.running || b.stopped {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	b.mu.Unlock()

	go b.loop(interval)
}

// Stop halts the poll loop and blocks until it has fully exited. It is
// idempotent, and once it returns subscribers receive no further events,
// including from NotifyCount.
func (b *CountBroadcaster) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	wasRunning := b.running
	b.running = false
	if wasRunning {
		close(b.stopCh)
	}
	done := b.doneCh
	b.mu.Unlock()

	if wasRunning {
		<-done
	}
}

// NotifyCount pushes a locally confirmed count to subscribers right away,
// without waiting for the next poll tick, then schedules a rate-limited
// confirming fetch in the background loop.
func (b *CountBroadcaster) NotifyCount(count int) {
	b.emit(count)

	select {
	case b.pokeCh <- struct{}{}:
	default:
	}
}

func (b *CountBroadcaster) loop(interval time.Duration) {
	defer close(b.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.refresh(false)
		case <-b.pokeCh:
			b.refresh(true)
		}
	}
}

// refresh fetches the server-side count and emits it. Poked refreshes go
// through the rate limiter; the steady ticker is already paced.
func (b *CountBroadcaster) refresh(limited bool) {
	if limited && !b.limiter.Allow() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := b.source.FetchItemCount(ctx, b.sess)
	if err != nil {
		// Keep broadcasting the last known count; the next tick retries.
		b.logger.WarnContext(ctx, "cart count poll failed",
			slog.String("owner", b.sess.Username),
			slog.String("error", err.Error()),
		)
		return
	}

	b.emit(count)
}

// emit delivers the count to subscribers unless the broadcaster has been
// stopped. The lock is held across delivery so Stop cannot return while an
// emission is mid-flight.
func (b *CountBroadcaster) emit(count int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.lastCount = count
	for _, fn := range b.subscribers {
		fn(count)
	}
}

// LastCount returns the most recently emitted count.
func (b *CountBroadcaster) LastCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCount
}
