package notify

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"vetcare/internal/domain/entity"
	"vetcare/internal/observability/logging"
	"vetcare/internal/observability/tracing"
	"vetcare/internal/repository"
	"vetcare/internal/resilience/retry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSendTimeout bounds a single channel send.
const DefaultSendTimeout = 10 * time.Second

// leaseMargin is added to the channel send budget when leasing a record to a
// dispatch pass; it covers the store round trips of the pass.
const leaseMargin = time.Minute

// DefaultChannels is used by Notify when Options.Channels is nil.
var DefaultChannels = []entity.ChannelKind{entity.ChannelInApp}

// Options carries the optional parts of a Notify request.
type Options struct {
	// Channels in priority order. Nil selects DefaultChannels; an empty,
	// non-nil slice is rejected.
	Channels []entity.ChannelKind
	// ScheduledFor delays delivery until the given time.
	ScheduledFor *time.Time
	Meta         entity.Meta
}

// Service creates notification records and delivers them through the
// registered channels.
type Service interface {
	// Notify validates and persists a new PENDING notification and, when it
	// is already due, dispatches it immediately. A validation failure returns
	// an *entity.ValidationError and creates no record. A failed dispatch
	// leaves the record PENDING for the next pending sweep.
	Notify(ctx context.Context, userID, title, body string, opts Options) (*entity.Notification, error)

	// Dispatch delivers a stored PENDING, due notification: channels are
	// tried in order until one accepts. Records that are not PENDING, not
	// yet due, or leased by another dispatch pass are returned unchanged.
	Dispatch(ctx context.Context, id string) (*entity.Notification, error)

	// Cancel moves a PENDING notification to CANCELLED.
	Cancel(ctx context.Context, id string) error

	// MarkFailed moves a PENDING notification to FAILED.
	MarkFailed(ctx context.Context, id, reason string) error

	// Retry moves a FAILED notification back to PENDING and dispatches it.
	Retry(ctx context.Context, id string) (*entity.Notification, error)

	// StuckNotifications lists due PENDING notifications that have been
	// waiting longer than olderThan.
	StuckNotifications(ctx context.Context, olderThan time.Duration) ([]*entity.Notification, error)

	SendVaccinationReminder(ctx context.Context, r VaccinationReminder) (*entity.Notification, error)
	SendFoodDepletionReminder(ctx context.Context, r FoodDepletionReminder) (*entity.Notification, error)
	SendOrderUpdate(ctx context.Context, u OrderUpdate) (*entity.Notification, error)

	// ChannelHealth returns the circuit breaker state of every registered channel.
	ChannelHealth() []ChannelHealthStatus
}

// Option configures the service.
type Option func(*service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithSendTimeout overrides DefaultSendTimeout. Non-positive values are ignored.
func WithSendTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithLocation sets the clinic time zone used to format dates in reminders.
func WithLocation(loc *time.Location) Option {
	return func(s *service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithStoreRetry overrides the retry policy for conditional store writes.
func WithStoreRetry(cfg retry.Config) Option {
	return func(s *service) { s.storeRetry = cfg }
}

type service struct {
	repo        repository.NotificationRepository
	registry    *Registry
	now         func() time.Time
	sendTimeout time.Duration
	location    *time.Location
	storeRetry  retry.Config
}

// NewService creates a notification service over the given store and channels.
func NewService(repo repository.NotificationRepository, registry *Registry, opts ...Option) Service {
	s := &service{
		repo:        repo,
		registry:    registry,
		now:         time.Now,
		sendTimeout: DefaultSendTimeout,
		location:    time.UTC,
		storeRetry:  retry.StoreConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify implements Service.Notify.
func (s *service) Notify(ctx context.Context, userID, title, body string, opts Options) (*entity.Notification, error) {
	channels := opts.Channels
	if channels == nil {
		channels = DefaultChannels
	}

	n := &entity.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		Meta:      opts.Meta,
		Channels:  append([]entity.ChannelKind(nil), channels...),
		Status:    entity.StatusPending,
		CreatedAt: s.now(),
	}
	if opts.ScheduledFor != nil {
		at := *opts.ScheduledFor
		n.ScheduledFor = &at
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	RecordCreated(string(n.Meta.Type))

	slog.Info("notification created",
		slog.String("notification_id", n.ID),
		slog.String("user_id", n.UserID),
		slog.String("type", string(n.Meta.Type)),
		slog.Any("channels", n.Channels))

	if !n.IsDue(n.CreatedAt) {
		return n, nil
	}

	dispatched, err := s.run(ctx, n)
	if err != nil {
		slog.Error("immediate dispatch failed, record stays pending",
			slog.String("notification_id", n.ID),
			slog.Any("error", err))
		return n, nil
	}
	return dispatched, nil
}

// Dispatch implements Service.Dispatch.
func (s *service) Dispatch(ctx context.Context, id string) (*entity.Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", id, err)
	}
	return s.run(ctx, n)
}

// run wraps one dispatch pass with a dispatch id and a span.
func (s *service) run(ctx context.Context, n *entity.Notification) (*entity.Notification, error) {
	ctx = logging.WithDispatchID(ctx, uuid.NewString())
	ctx, span := tracing.StartSpan(ctx, "notify.dispatch",
		attribute.String("notification.id", n.ID),
		attribute.String("notification.type", string(n.Meta.Type)))
	defer span.End()

	result, err := s.dispatch(ctx, span, n)
	tracing.RecordError(span, err)
	if result != nil {
		span.SetAttributes(attribute.String("notification.status", string(result.Status)))
	}
	return result, err
}

func (s *service) dispatch(ctx context.Context, span trace.Span, n *entity.Notification) (*entity.Notification, error) {
	logger := logging.WithDispatch(ctx, slog.Default()).With(slog.String("notification_id", n.ID))

	if n.Status != entity.StatusPending {
		RecordDispatchOutcome("skipped")
		logger.Debug("notification not pending, skipping", slog.String("status", string(n.Status)))
		return n, nil
	}
	if !n.IsDue(s.now()) {
		RecordDispatchOutcome("not_due")
		return n, nil
	}

	owner := logging.DispatchIDFromContext(ctx)
	claimed, err := s.claim(ctx, n, owner)
	if err != nil {
		return n, fmt.Errorf("claim %s: %w", n.ID, err)
	}
	if !claimed {
		RecordDispatchOutcome("in_flight")
		logger.Debug("notification leased by another dispatch pass, skipping")
		return s.reload(ctx, n)
	}
	// The lease is kept when a delivery could not be recorded, so no other
	// pass resends before it expires.
	keepLease := false
	defer func() {
		if !keepLease {
			s.release(ctx, logger, n.ID, owner)
		}
	}()

	var declined []string
	for _, kind := range n.Channels {
		ch, ok := s.registry.Lookup(kind)
		if !ok {
			RecordUnregistered(kind.Label())
			logger.Error("requested channel is not registered",
				slog.String("channel", string(kind)),
				slog.Any("error", ErrChannelNotRegistered))
			declined = append(declined, fmt.Sprintf("%s: not registered", kind))
			continue
		}

		// A cancel between channel attempts must win.
		current, err := s.repo.Get(ctx, n.ID)
		if err != nil {
			return n, fmt.Errorf("re-read %s: %w", n.ID, err)
		}
		if current.Status != entity.StatusPending {
			RecordDispatchOutcome("skipped")
			logger.Info("status changed before delivery, aborting",
				slog.String("status", string(current.Status)))
			return current, nil
		}

		if !s.deliver(ctx, logger, ch, n) {
			declined = append(declined, fmt.Sprintf("%s: declined", kind))
			continue
		}

		span.SetAttributes(attribute.String("notification.delivered_via", string(kind)))
		sent, err := s.markSent(ctx, n.ID, kind)
		if err != nil {
			keepLease = true
			logger.Error("delivered but failed to record SENT",
				slog.String("channel", string(kind)),
				slog.Any("error", err))
			return n, fmt.Errorf("mark sent %s: %w", n.ID, err)
		}
		if !sent {
			RecordDispatchOutcome("lost_race")
			logger.Warn("delivered but record left PENDING concurrently",
				slog.String("channel", string(kind)))
		} else {
			RecordDispatchOutcome("sent")
			logger.Info("notification sent", slog.String("channel", string(kind)))
		}
		return s.reload(ctx, n)
	}

	RecordDispatchOutcome("declined")
	lastErr := strings.Join(declined, "; ")
	logger.Warn("no channel accepted notification, will retry next tick",
		slog.String("reasons", lastErr))
	err = retry.WithBackoff(ctx, s.storeRetry, func() error {
		return s.repo.RecordAttempt(ctx, n.ID, s.now(), lastErr)
	})
	if err != nil {
		return n, fmt.Errorf("record attempt %s: %w", n.ID, err)
	}
	return s.reload(ctx, n)
}

// claim leases n to this pass for the worst-case duration of its channel walk.
func (s *service) claim(ctx context.Context, n *entity.Notification, owner string) (bool, error) {
	now := s.now()
	until := now.Add(s.sendTimeout*time.Duration(len(n.Channels)) + leaseMargin)
	var claimed bool
	err := retry.WithBackoff(ctx, s.storeRetry, func() error {
		var err error
		claimed, err = s.repo.ClaimDispatch(ctx, n.ID, owner, now, until)
		return err
	})
	return claimed, err
}

// release drops the lease even when ctx is already cancelled. A failed
// release only delays the next pass until the lease expires.
func (s *service) release(ctx context.Context, logger *slog.Logger, id, owner string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := retry.WithBackoff(releaseCtx, s.storeRetry, func() error {
		return s.repo.ReleaseDispatch(releaseCtx, id, owner)
	})
	if err != nil {
		logger.Warn("failed to release dispatch lease", slog.Any("error", err))
	}
}

// deliver performs one bounded, panic-safe channel send.
func (s *service) deliver(ctx context.Context, logger *slog.Logger, ch Channel, n *entity.Notification) (accepted bool) {
	label := ch.Kind().Label()
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	sendCtx, span := tracing.StartSpan(sendCtx, "notify.channel.send", attribute.String("channel", string(ch.Kind())))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in notification channel",
				slog.String("channel", string(ch.Kind())),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			RecordChannelAttempt(label, "panic", time.Since(start))
			span.SetAttributes(attribute.Bool("accepted", false))
			accepted = false
		}
	}()

	accepted = ch.Send(sendCtx, n.UserID, n.Title, n.Body, n.Meta)
	result := "declined"
	if accepted {
		result = "accepted"
	}
	RecordChannelAttempt(label, result, time.Since(start))
	span.SetAttributes(attribute.Bool("accepted", accepted))
	return accepted
}

func (s *service) markSent(ctx context.Context, id string, via entity.ChannelKind) (bool, error) {
	var sent bool
	err := retry.WithBackoff(ctx, s.storeRetry, func() error {
		var err error
		sent, err = s.repo.MarkSent(ctx, id, via, s.now())
		return err
	})
	return sent, err
}

// reload returns the stored copy of n, falling back to n when the read fails.
func (s *service) reload(ctx context.Context, n *entity.Notification) (*entity.Notification, error) {
	current, err := s.repo.Get(ctx, n.ID)
	if err != nil {
		return n, nil
	}
	return current, nil
}

// Cancel implements Service.Cancel.
func (s *service) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, entity.StatusPending, entity.StatusCancelled, "")
}

// MarkFailed implements Service.MarkFailed.
func (s *service) MarkFailed(ctx context.Context, id, reason string) error {
	return s.transition(ctx, id, entity.StatusPending, entity.StatusFailed, reason)
}

// Retry implements Service.Retry.
func (s *service) Retry(ctx context.Context, id string) (*entity.Notification, error) {
	if err := s.transition(ctx, id, entity.StatusFailed, entity.StatusPending, ""); err != nil {
		return nil, err
	}
	return s.Dispatch(ctx, id)
}

func (s *service) transition(ctx context.Context, id string, from, to entity.NotificationStatus, reason string) error {
	ok, err := s.repo.TransitionStatus(ctx, id, from, to)
	if err != nil {
		return fmt.Errorf("transition %s: %w", id, err)
	}
	if !ok {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("transition %s: %w", id, err)
		}
		return fmt.Errorf("%w: %s is %s, want %s", ErrInvalidTransition, id, current.Status, from)
	}

	attrs := []any{
		slog.String("notification_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}
	slog.Info("notification status changed", attrs...)
	return nil
}

// StuckNotifications implements Service.StuckNotifications.
func (s *service) StuckNotifications(ctx context.Context, olderThan time.Duration) ([]*entity.Notification, error) {
	stuck, err := s.repo.ListStuck(ctx, s.now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("list stuck notifications: %w", err)
	}
	return stuck, nil
}

// ChannelHealth implements Service.ChannelHealth.
func (s *service) ChannelHealth() []ChannelHealthStatus {
	return channelHealth(s.registry)
}
