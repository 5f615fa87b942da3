package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vetcare/internal/domain/entity"
	"vetcare/internal/domain/reminder"
	"vetcare/internal/infra/db"
	workerPkg "vetcare/internal/infra/worker"
	"vetcare/internal/repository"
	"vetcare/internal/usecase/schedule"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 30 * time.Second

// serve runs the scheduler until SIGINT or SIGTERM.
func serve(c *cli.Context, reg prometheus.Registerer) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(c, reg)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	startMetricsServer(ctx, logger, rt.cfg.MetricsPort, rt.notifier)

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", rt.cfg.HealthPort), logger)
	if rt.dbBreaker != nil {
		healthServer.AddCheck("database", rt.dbBreaker.PingContext)
	}
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	go rt.reportDBStats(ctx, 15*time.Second)

	if err := rt.scheduler.Start(); err != nil {
		return err
	}
	healthServer.SetReady(true)
	logger.Info("worker started")

	<-ctx.Done()
	healthServer.SetReady(false)
	logger.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.scheduler.Stop(stopCtx); err != nil {
		logger.Error("scheduler did not stop cleanly", slog.Any("error", err))
		return err
	}
	logger.Info("worker stopped")
	return nil
}

// scan runs one tick or one named scan in the foreground.
func scan(c *cli.Context, reg prometheus.Registerer) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(c, reg)
	if err != nil {
		return err
	}
	defer rt.Close()

	var run func(context.Context) (schedule.ScanStats, error)
	switch only := c.String("only"); only {
	case "":
		return rt.scheduler.RunOnce(ctx)
	case schedule.ScanPendingName:
		run = rt.scheduler.ScanPending
	case schedule.ScanVaccinationsName:
		run = rt.scheduler.ScanVaccinations
	case schedule.ScanFeedingName:
		run = rt.scheduler.ScanFeedingPlans
	default:
		return fmt.Errorf("unknown scan %q: want %s, %s or %s", only,
			schedule.ScanPendingName, schedule.ScanVaccinationsName, schedule.ScanFeedingName)
	}

	stats, err := run(ctx)
	if encErr := writeJSON(c, stats); encErr != nil {
		return encErr
	}
	return err
}

type stuckNotification struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Title        string          `json:"title"`
	Type         entity.MetaType `json:"type,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Attempts     int             `json:"attempts"`
	LastError    string          `json:"last_error,omitempty"`
	LastAttempt  *time.Time      `json:"last_attempt_at,omitempty"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
}

// stuck prints the due PENDING notifications that were never delivered.
func stuck(c *cli.Context, reg prometheus.Registerer) error {
	rt, err := buildRuntime(c, reg)
	if err != nil {
		return err
	}
	defer rt.Close()

	olderThan := rt.cfg.StuckAfter
	if d := c.Duration("older-than"); d > 0 {
		olderThan = d
	}
	list, err := rt.notifier.StuckNotifications(c.Context, olderThan)
	if err != nil {
		return err
	}

	out := make([]stuckNotification, 0, len(list))
	for _, n := range list {
		out = append(out, stuckNotification{
			ID:           n.ID,
			UserID:       n.UserID,
			Title:        n.Title,
			Type:         n.Meta.Type,
			CreatedAt:    n.CreatedAt,
			Attempts:     n.Attempts,
			LastError:    n.LastError,
			LastAttempt:  n.LastAttemptAt,
			ScheduledFor: n.ScheduledFor,
		})
	}
	return writeJSON(c, out)
}

type inboxEntry struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Body      string          `json:"body,omitempty"`
	Type      entity.MetaType `json:"type,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}

// inbox prints the newest in-app notifications of one user.
func inbox(c *cli.Context, reg prometheus.Registerer) error {
	userID := c.Args().First()
	if userID == "" {
		return errors.New("inbox: USER_ID is required")
	}
	if c.Int("limit") <= 0 {
		return errors.New("inbox: --limit must be positive")
	}

	rt, err := buildRuntime(c, reg)
	if err != nil {
		return err
	}
	defer rt.Close()

	return printInbox(c, rt.inbox, userID, c.Int("limit"))
}

func printInbox(c *cli.Context, repo repository.InboxRepository, userID string, limit int) error {
	items, err := repo.ListInbox(c.Context, userID, limit)
	if err != nil {
		return fmt.Errorf("inbox %s: %w", userID, err)
	}

	out := make([]inboxEntry, 0, len(items))
	for _, item := range items {
		out = append(out, inboxEntry{
			ID:        item.ID,
			Title:     item.Title,
			Body:      item.Body,
			Type:      item.Type,
			Read:      item.Read,
			CreatedAt: item.CreatedAt,
		})
	}
	return writeJSON(c, out)
}

// renew starts a new package cycle for a feeding plan and re-arms its
// depletion reminder.
func renew(c *cli.Context, reg prometheus.Registerer) error {
	planID := c.Args().First()
	if planID == "" {
		return errors.New("renew: PLAN_ID is required")
	}

	rt, err := buildRuntime(c, reg)
	if err != nil {
		return err
	}
	defer rt.Close()

	start := time.Now().In(rt.cfg.Location())
	if ts := c.Timestamp("start"); ts != nil {
		start = *ts
	}

	plan, err := rt.feeding.Get(c.Context, planID)
	if err != nil {
		return fmt.Errorf("renew %s: %w", planID, err)
	}
	if err := reminder.RenewPlan(plan, start, c.Int("grams"), rt.feedingTable); err != nil {
		return fmt.Errorf("renew %s: %w", planID, err)
	}
	if err := rt.feeding.Update(c.Context, plan); err != nil {
		return fmt.Errorf("renew %s: %w", planID, err)
	}

	rt.logger.Info("feeding plan renewed",
		slog.String("plan_id", plan.ID),
		slog.Int("days_left", plan.EstimatedDaysLeft),
		slog.Time("depletion_date", plan.ExpectedDepletionDate))
	return writeJSON(c, map[string]any{
		"plan_id":        plan.ID,
		"days_left":      plan.EstimatedDaysLeft,
		"daily_grams":    plan.DailyGramsRecommended,
		"depletion_date": plan.ExpectedDepletionDate.Format("2006-01-02"),
	})
}

// migrate applies or reverts the schema. It needs DATABASE_URL.
func migrate(c *cli.Context, up bool) error {
	logger := newLogger(c.String("log-format"))

	database, err := db.Open(c.Context)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	if up {
		if err := db.MigrateUp(c.Context, database); err != nil {
			return err
		}
		logger.Info("schema created")
		return nil
	}
	if err := db.MigrateDown(c.Context, database); err != nil {
		return err
	}
	logger.Info("schema dropped")
	return nil
}

func writeJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
