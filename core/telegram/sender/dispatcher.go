package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// PerSecond caps outbound calls across all workers; Telegram allows
	// about 30 messages per second per bot. Zero selects 25.
	PerSecond float64
}

// Stats counts job outcomes since the dispatcher started.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Blocked uint64
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts    Options
	jobs    chan job
	limiter *rate.Limiter

	// mu guards closed so Enqueue never sends on a closed channel.
	mu     sync.RWMutex
	closed bool

	once    sync.Once
	wg      sync.WaitGroup
	sent    atomic.Uint64
	failed  atomic.Uint64
	blocked atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	if opts.PerSecond <= 0 {
		opts.PerSecond = 25
	}

	d := &Dispatcher{
		opts:    opts,
		jobs:    make(chan job, opts.QueueSize),
		limiter: rate.NewLimiter(rate.Limit(opts.PerSecond), opts.Workers),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules run for asynchronous execution without blocking.
// run must be idempotent when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that ended in failure, blocked recipients included.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load() + d.blocked.Load()
}

// Stats returns a snapshot of job outcomes.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load(), Blocked: d.blocked.Load()}
}

// Close stops accepting jobs and waits until the queue is drained.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	// The originating update may be finished; keep its values, drop its cancellation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts, err := d.attempt(ctx, j)
	attrs := append(sendLogAttrs(ctx, j),
		slog.Int("attempts", attempts),
		slog.Int("elapsed_ms", durationToMS(time.Since(start))),
	)
	switch {
	case err == nil:
		d.sent.Add(1)
		level := slog.LevelDebug
		if attempts > 1 {
			level = slog.LevelInfo
		}
		logger.Event(ctx, component, level, "send.success", attrs...)
	case errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrUserIsDeactivated):
		d.blocked.Add(1)
		logger.Warn(ctx, component, "send.blocked", attrs...)
	default:
		d.failed.Add(1)
		logger.Error(ctx, component, "send.fail", append(attrs,
			slog.String("err", sanitizeErrorMessage(err)),
			slog.String("error_kind", classifyError(err)),
		)...)
	}
}

// attempt runs j until it succeeds, fails permanently, exhausts its
// retries or ctx expires, returning the number of calls made.
func (d *Dispatcher) attempt(ctx context.Context, j job) (int, error) {
	var err error
	for attempt := 1; attempt <= d.opts.MaxRetries+1; attempt++ {
		if waitErr := d.limiter.Wait(ctx); waitErr != nil {
			return attempt - 1, errors.Join(err, waitErr)
		}
		if err = j.run(); err == nil {
			return attempt, nil
		}
		delay, retry := d.backoff(err, attempt)
		if !retry || attempt > d.opts.MaxRetries {
			return attempt, err
		}
		logger.Debug(ctx, component, "send.retry.backoff", append(sendLogAttrs(ctx, j),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)...)
		if sleepErr := netutil.Sleep(ctx, delay); sleepErr != nil {
			return attempt, errors.Join(err, sleepErr)
		}
	}
	return d.opts.MaxRetries + 1, err
}

// backoff returns the delay before the next attempt, honouring Telegram's
// retry_after on flood errors.
func (d *Dispatcher) backoff(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	if netutil.ShouldRetry(err) {
		return netutil.Linear(d.opts.RetryBackoff, attempt), true
	}
	return 0, false
}

func sendLogAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	return attrs
}

func durationToMS(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(logger.RoundMS(d) / time.Millisecond)
}
