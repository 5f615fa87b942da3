// Package schedule runs the periodic reminder scans.
//
// Each tick runs three scans in order: the pending sweep re-dispatches due
// PENDING notifications, the vaccination scan fires milestone reminders, and
// the feeding scan fires food depletion reminders. Ticks never overlap; a
// tick that fires while the previous one is still running is skipped.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vetcare/internal/domain/entity"
	"vetcare/internal/observability/logging"
	"vetcare/internal/repository"
	"vetcare/internal/resilience/retry"
	"vetcare/internal/usecase/notify"

	"github.com/robfig/cron/v3"
)

// Defaults used when the corresponding option is not given.
const (
	DefaultSchedule     = "@every 1h"
	DefaultConcurrency  = 8
	DefaultTickTimeout  = 30 * time.Minute
	DefaultStuckAfter   = 24 * time.Hour
	DefaultPendingBatch = 500
)

// Scan names used in logs and metrics.
const (
	ScanPendingName      = "pending"
	ScanVaccinationsName = "vaccinations"
	ScanFeedingName      = "feeding"
)

// Notifier is the part of the notification service the scheduler drives.
type Notifier interface {
	Dispatch(ctx context.Context, id string) (*entity.Notification, error)
	SendVaccinationReminder(ctx context.Context, r notify.VaccinationReminder) (*entity.Notification, error)
	SendFoodDepletionReminder(ctx context.Context, r notify.FoodDepletionReminder) (*entity.Notification, error)
	StuckNotifications(ctx context.Context, olderThan time.Duration) ([]*entity.Notification, error)
}

// ScanStats summarizes one scan.
type ScanStats struct {
	// Scanned is the number of candidate items the scan looked at.
	Scanned int
	// Notified is the number of reminders created or notifications dispatched.
	Notified int
	// Skipped items needed no action or were claimed by another tick.
	Skipped int
	// Failed items hit an error or a panic, or every channel declined them.
	// They are retried next tick.
	Failed int
}

// TickObserver receives scan results, typically to export them as metrics.
type TickObserver interface {
	ObserveScan(scan string, stats ScanStats, duration time.Duration, err error)
	ObserveTickSkipped()
}

type noopObserver struct{}

func (noopObserver) ObserveScan(string, ScanStats, time.Duration, error) {}
func (noopObserver) ObserveTickSkipped()                                 {}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLocation sets the clinic time zone. Calendar-day arithmetic and the
// cron schedule both use it.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithConcurrency bounds the number of items processed in parallel per scan.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTickTimeout bounds a whole tick.
func WithTickTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickTimeout = d
		}
	}
}

// WithStuckAfter sets the age after which a due PENDING notification is
// reported as stuck.
func WithStuckAfter(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.stuckAfter = d
		}
	}
}

// WithSchedule sets the cron spec driving ticks, e.g. "@every 1h" or "0 * * * *".
func WithSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithObserver registers a TickObserver.
func WithObserver(o TickObserver) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithStoreRetry overrides the retry policy for claims and rollbacks.
func WithStoreRetry(cfg retry.Config) Option {
	return func(s *Scheduler) { s.storeRetry = cfg }
}

// WithPendingBatch caps how many due notifications one sweep dispatches.
func WithPendingBatch(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.pendingBatch = n
		}
	}
}

// Scheduler owns the periodic timer and the three scans.
type Scheduler struct {
	vaccinations  repository.VaccinationRepository
	feeding       repository.FeedingPlanRepository
	notifications repository.NotificationRepository
	notifier      Notifier

	now          func() time.Time
	location     *time.Location
	concurrency  int
	tickTimeout  time.Duration
	stuckAfter   time.Duration
	schedule     string
	pendingBatch int
	observer     TickObserver
	storeRetry   retry.Config

	// tickMu is held for the duration of a tick or a manual scan.
	tickMu sync.Mutex

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// New creates a scheduler. It does not start the timer; call Start.
func New(
	vaccinations repository.VaccinationRepository,
	feeding repository.FeedingPlanRepository,
	notifications repository.NotificationRepository,
	notifier Notifier,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		vaccinations:  vaccinations,
		feeding:       feeding,
		notifications: notifications,
		notifier:      notifier,
		now:           time.Now,
		location:      time.UTC,
		concurrency:   DefaultConcurrency,
		tickTimeout:   DefaultTickTimeout,
		stuckAfter:    DefaultStuckAfter,
		schedule:      DefaultSchedule,
		pendingBatch:  DefaultPendingBatch,
		observer:      noopObserver{},
		storeRetry:    retry.StoreConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start installs the cron timer. Ticks run on the cron goroutine until Stop
// is called.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	base, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithLocation(s.location))
	if _, err := c.AddFunc(s.schedule, func() { s.tick(base) }); err != nil {
		cancel()
		return fmt.Errorf("Start: invalid schedule %q: %w", s.schedule, err)
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	slog.Info("scheduler started",
		slog.String("schedule", s.schedule),
		slog.String("timezone", s.location.String()),
		slog.Int("concurrency", s.concurrency))
	return nil
}

// Stop halts the timer, cancels a running tick and waits for it to return or
// for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return ErrNotStarted
	}

	done := c.Stop()
	cancel()
	select {
	case <-done.Done():
		slog.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Stop: %w", ctx.Err())
	}
}

// RunOnce runs a full tick synchronously. It returns ErrTickInProgress when
// another tick holds the lock; otherwise it returns the joined scan errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.tickMu.TryLock() {
		s.observer.ObserveTickSkipped()
		return ErrTickInProgress
	}
	defer s.tickMu.Unlock()
	return s.runTick(ctx)
}

// ScanPending runs only the pending sweep.
func (s *Scheduler) ScanPending(ctx context.Context) (ScanStats, error) {
	return s.locked(ctx, ScanPendingName, s.scanPending)
}

// ScanVaccinations runs only the vaccination scan.
func (s *Scheduler) ScanVaccinations(ctx context.Context) (ScanStats, error) {
	return s.locked(ctx, ScanVaccinationsName, s.scanVaccinations)
}

// ScanFeedingPlans runs only the feeding depletion scan.
func (s *Scheduler) ScanFeedingPlans(ctx context.Context) (ScanStats, error) {
	return s.locked(ctx, ScanFeedingName, s.scanFeedingPlans)
}

func (s *Scheduler) locked(ctx context.Context, name string, scan func(context.Context) (ScanStats, error)) (ScanStats, error) {
	if !s.tickMu.TryLock() {
		s.observer.ObserveTickSkipped()
		return ScanStats{}, ErrTickInProgress
	}
	defer s.tickMu.Unlock()
	return s.observe(ctx, name, scan)
}

func (s *Scheduler) tick(base context.Context) {
	if !s.tickMu.TryLock() {
		s.observer.ObserveTickSkipped()
		slog.Warn("previous tick still running, skipping")
		return
	}
	defer s.tickMu.Unlock()

	if err := s.runTick(base); err != nil {
		slog.Error("tick finished with errors", slog.Any("error", err))
	}
}

// runTick must be called with tickMu held.
func (s *Scheduler) runTick(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()

	start := time.Now()
	logger := logging.FromContext(ctx)
	logger.Info("tick started")

	var errs []error
	for _, scan := range []struct {
		name string
		fn   func(context.Context) (ScanStats, error)
	}{
		{ScanPendingName, s.scanPending},
		{ScanVaccinationsName, s.scanVaccinations},
		{ScanFeedingName, s.scanFeedingPlans},
	} {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s scan: %w", scan.name, ctx.Err()))
			break
		}
		if _, err := s.observe(ctx, scan.name, scan.fn); err != nil {
			errs = append(errs, fmt.Errorf("%s scan: %w", scan.name, err))
		}
	}

	logger.Info("tick completed",
		slog.Duration("duration", time.Since(start)),
		slog.Int("errors", len(errs)))
	return errors.Join(errs...)
}

func (s *Scheduler) observe(ctx context.Context, name string, scan func(context.Context) (ScanStats, error)) (ScanStats, error) {
	start := time.Now()
	stats, err := scan(ctx)
	duration := time.Since(start)
	s.observer.ObserveScan(name, stats, duration, err)

	logger := logging.FromContext(ctx)
	attrs := []any{
		slog.String("scan", name),
		slog.Int("scanned", stats.Scanned),
		slog.Int("notified", stats.Notified),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", duration),
	}
	if err != nil {
		logger.Error("scan failed", append(attrs, slog.Any("error", err))...)
	} else {
		logger.Info("scan completed", attrs...)
	}
	return stats, err
}
