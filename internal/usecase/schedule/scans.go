package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"vetcare/internal/domain/entity"
	"vetcare/internal/domain/reminder"
	"vetcare/internal/observability/logging"
	"vetcare/internal/observability/metrics"
	"vetcare/internal/resilience/retry"
	"vetcare/internal/usecase/notify"

	"golang.org/x/sync/errgroup"
)

// rollbackTimeout bounds releasing a claim after the tick context is gone.
const rollbackTimeout = 5 * time.Second

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeSkipped
	outcomeNotified
)

func (s *ScanStats) add(o ScanStats) {
	s.Scanned += o.Scanned
	s.Notified += o.Notified
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

// scanPending re-dispatches due PENDING notifications and refreshes the
// stuck gauge.
func (s *Scheduler) scanPending(ctx context.Context) (ScanStats, error) {
	due, err := s.notifications.ListDue(ctx, s.now(), s.pendingBatch)
	if err != nil {
		return ScanStats{}, fmt.Errorf("list due notifications: %w", err)
	}

	stats := s.process(ctx, ScanPendingName, len(due), func(ctx context.Context, i int) (outcome, error) {
		n, err := s.notifier.Dispatch(ctx, due[i].ID)
		if err != nil {
			return outcomeFailed, fmt.Errorf("dispatch %s: %w", due[i].ID, err)
		}
		switch n.Status {
		case entity.StatusSent:
			return outcomeNotified, nil
		case entity.StatusPending:
			// every channel declined; the next tick tries again
			return outcomeFailed, nil
		default:
			return outcomeSkipped, nil
		}
	})
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	stuck, err := s.notifier.StuckNotifications(ctx, s.stuckAfter)
	if err != nil {
		return stats, fmt.Errorf("list stuck notifications: %w", err)
	}
	metrics.UpdateNotificationsStuck(len(stuck))
	if len(stuck) > 0 {
		logging.FromContext(ctx).Warn("notifications stuck in PENDING",
			slog.Int("count", len(stuck)),
			slog.String("oldest_id", stuck[0].ID),
			slog.Duration("older_than", s.stuckAfter))
	}
	return stats, nil
}

// scanVaccinations fires the latest arrived milestone of every vaccination
// that has not fired yet, clinic by clinic.
func (s *Scheduler) scanVaccinations(ctx context.Context) (ScanStats, error) {
	now := s.now()
	clinics, err := s.vaccinations.ListClinics(ctx)
	if err != nil {
		return ScanStats{}, fmt.Errorf("list clinics: %w", err)
	}

	horizon := reminder.ScanHorizon(now)
	var (
		total ScanStats
		errs  []error
	)
	for _, clinicID := range clinics {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		events, err := s.vaccinations.OverdueVaccinations(ctx, clinicID, horizon)
		if err != nil {
			// one broken clinic must not hide the others
			errs = append(errs, fmt.Errorf("clinic %s: %w", clinicID, err))
			continue
		}
		total.add(s.process(ctx, ScanVaccinationsName, len(events), func(ctx context.Context, i int) (outcome, error) {
			return s.remindVaccination(ctx, events[i], now)
		}))
	}
	return total, errors.Join(errs...)
}

func (s *Scheduler) remindVaccination(ctx context.Context, ev *entity.VaccinationEvent, now time.Time) (out outcome, err error) {
	m, superseded, ok := reminder.PendingMilestone(ev.NextDueAt, now, ev.FiredMilestones, s.location)
	if !ok {
		return outcomeSkipped, nil
	}

	var claimed bool
	err = retry.WithBackoff(ctx, s.storeRetry, func() error {
		var cerr error
		claimed, cerr = s.vaccinations.ClaimMilestone(ctx, ev.ID, m, superseded)
		return cerr
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("claim milestone %s for %s: %w", m, ev.ID, err)
	}
	if !claimed {
		return outcomeSkipped, nil
	}

	keepClaim := false
	defer func() {
		if out == outcomeNotified || keepClaim {
			return
		}
		rerr := s.rollback(ctx, func(ctx context.Context) error {
			return s.vaccinations.ReleaseMilestone(ctx, ev.ID, m, superseded)
		})
		if rerr != nil {
			logging.FromContext(ctx).Error("failed to release milestone claim",
				slog.String("vaccination_id", ev.ID),
				slog.String("milestone", m.String()),
				slog.Any("error", rerr))
		}
	}()

	_, err = s.notifier.SendVaccinationReminder(ctx, notify.VaccinationReminder{
		UserID:      ev.OwnerID,
		PetName:     ev.PetName,
		VaccineName: ev.VaccineName,
		DueDate:     ev.NextDueAt,
		Milestone:   m,
	})
	if err != nil {
		// An invalid reminder fails the same way on every tick; it keeps its
		// claim and is reported once.
		keepClaim = errors.Is(err, entity.ErrValidationFailed)
		return outcomeFailed, fmt.Errorf("vaccination reminder for %s: %w", ev.ID, err)
	}

	metrics.RecordMilestoneFired(m.String(), len(superseded))
	metrics.RecordReminderCreated(string(entity.MetaVaccinationReminder))
	return outcomeNotified, nil
}

// scanFeedingPlans fires one depletion reminder per cycle for plans that
// are 7 or 1 days from running out.
func (s *Scheduler) scanFeedingPlans(ctx context.Context) (ScanStats, error) {
	now := s.now()
	plans, err := s.feeding.ActiveFeedingPlans(ctx)
	if err != nil {
		return ScanStats{}, fmt.Errorf("list active feeding plans: %w", err)
	}
	metrics.UpdateFeedingPlansActive(len(plans))

	stats := s.process(ctx, ScanFeedingName, len(plans), func(ctx context.Context, i int) (outcome, error) {
		return s.remindDepletion(ctx, plans[i], now)
	})
	return stats, ctx.Err()
}

func (s *Scheduler) remindDepletion(ctx context.Context, plan *entity.FeedingPlan, now time.Time) (out outcome, err error) {
	if plan.NotificationSent {
		return outcomeSkipped, nil
	}
	daysLeft := reminder.DaysUntil(plan.ExpectedDepletionDate, now, s.location)
	if !reminder.IsDepletionReminderDay(daysLeft) {
		return outcomeSkipped, nil
	}

	var claimed bool
	err = retry.WithBackoff(ctx, s.storeRetry, func() error {
		var cerr error
		claimed, cerr = s.feeding.MarkNotified(ctx, plan.ID)
		return cerr
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("mark plan %s notified: %w", plan.ID, err)
	}
	if !claimed {
		return outcomeSkipped, nil
	}

	keepGuard := false
	defer func() {
		if out == outcomeNotified || keepGuard {
			return
		}
		rerr := s.rollback(ctx, func(ctx context.Context) error {
			return s.feeding.ClearNotified(ctx, plan.ID)
		})
		if rerr != nil {
			logging.FromContext(ctx).Error("failed to clear feeding plan guard",
				slog.String("plan_id", plan.ID),
				slog.Any("error", rerr))
		}
	}()

	_, err = s.notifier.SendFoodDepletionReminder(ctx, notify.FoodDepletionReminder{
		UserID:        plan.OwnerID,
		PetName:       plan.PetName,
		ProductName:   plan.ProductName,
		DepletionDate: plan.ExpectedDepletionDate,
		DaysLeft:      daysLeft,
		DailyGrams:    plan.DailyGramsRecommended,
	})
	if err != nil {
		keepGuard = errors.Is(err, entity.ErrValidationFailed)
		return outcomeFailed, fmt.Errorf("depletion reminder for plan %s: %w", plan.ID, err)
	}

	metrics.RecordReminderCreated(string(entity.MetaFoodDepletion))
	return outcomeNotified, nil
}

// process runs item for indexes [0, n) on a bounded pool. Item errors and
// panics are logged and counted; they never stop the other items.
func (s *Scheduler) process(ctx context.Context, scan string, n int, item func(ctx context.Context, i int) (outcome, error)) ScanStats {
	var notified, skipped, failed atomic.Int64
	logger := logging.FromContext(ctx)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	for i := 0; i < n; i++ {
		if egCtx.Err() != nil {
			failed.Add(int64(n - i))
			break
		}
		eg.Go(func() error {
			o, err := s.safely(egCtx, scan, i, item)
			switch o {
			case outcomeNotified:
				notified.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			if err != nil {
				logger.Error("scan item failed",
					slog.String("scan", scan),
					slog.Any("error", err))
			}
			return nil
		})
	}
	_ = eg.Wait()

	return ScanStats{
		Scanned:  n,
		Notified: int(notified.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}
}

func (s *Scheduler) safely(ctx context.Context, scan string, i int, item func(ctx context.Context, i int) (outcome, error)) (o outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			o = outcomeFailed
			err = fmt.Errorf("panic in %s scan item %d: %v", scan, i, r)
			logging.FromContext(ctx).Error("scan item panicked",
				slog.String("scan", scan),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	return item(ctx, i)
}

// rollback undoes a claim. It runs detached from ctx cancellation so that a
// tick timeout does not leave an item claimed without a reminder.
func (s *Scheduler) rollback(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	return retry.WithBackoff(ctx, s.storeRetry, func() error { return fn(ctx) })
}
