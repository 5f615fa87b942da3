package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"vetcare/internal/config"
	"vetcare/internal/domain/reminder"
	"vetcare/internal/infra/adapter/persistence/memory"
	pgRepo "vetcare/internal/infra/adapter/persistence/postgres"
	"vetcare/internal/infra/db"
	"vetcare/internal/infra/notifier"
	workerPkg "vetcare/internal/infra/worker"
	"vetcare/internal/observability/logging"
	"vetcare/internal/observability/metrics"
	"vetcare/internal/repository"
	"vetcare/internal/resilience/circuitbreaker"
	"vetcare/internal/usecase/notify"
	"vetcare/internal/usecase/schedule"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/urfave/cli/v2"
)

// runtime holds the wired dependencies shared by every command.
type runtime struct {
	logger  *slog.Logger
	cfg     *workerPkg.WorkerConfig
	metrics *workerPkg.WorkerMetrics

	// database and dbBreaker are nil in memory mode.
	database  *sql.DB
	dbBreaker *circuitbreaker.DBCircuitBreaker

	notifications repository.NotificationRepository
	vaccinations  repository.VaccinationRepository
	feeding       repository.FeedingPlanRepository
	inbox         repository.InboxRepository
	feedingTable  reminder.FeedingTable

	notifier  notify.Service
	scheduler *schedule.Scheduler
}

func newLogger(format string) *slog.Logger {
	var logger *slog.Logger
	if format == "text" {
		logger = logging.NewTextLogger()
	} else {
		logger = logging.NewLogger()
	}
	slog.SetDefault(logger)
	return logger
}

// buildRuntime loads configuration and wires stores, channels, the
// notification service and the scheduler.
func buildRuntime(c *cli.Context, reg prometheus.Registerer) (*runtime, error) {
	logger := newLogger(c.String("log-format"))

	workerMetrics := workerPkg.NewWorkerMetricsWith(reg)
	cfg, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		return nil, fmt.Errorf("load worker config: %w", err)
	}
	logger.Info("worker configuration loaded",
		slog.String("scan_schedule", cfg.ScanSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Int("dispatch_concurrency", cfg.DispatchConcurrency),
		slog.Duration("channel_send_timeout", cfg.ChannelSendTimeout),
		slog.Int("health_port", cfg.HealthPort),
		slog.Int("metrics_port", cfg.MetricsPort))

	channels, err := config.LoadChannels()
	if err != nil {
		return nil, err
	}
	table, err := config.LoadFeedingTable(c.String("feeding-table"))
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		logger:       logger,
		cfg:          cfg,
		metrics:      workerMetrics,
		feedingTable: table,
	}

	var contacts repository.ContactRepository
	if c.Bool("memory") {
		logger.Warn("using in-memory stores; state is lost on exit")
		rt.notifications = memory.NewNotificationRepo()
		rt.vaccinations = memory.NewVaccinationRepo()
		rt.feeding = memory.NewFeedingPlanRepo()
		contacts = memory.NewContactRepo()
		rt.inbox = memory.NewInboxRepo()
	} else {
		database, err := db.Open(c.Context)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if c.Bool("migrate") {
			if err := db.MigrateUp(c.Context, database); err != nil {
				_ = database.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("database schema up to date")
		}
		rt.database = database
		rt.dbBreaker = circuitbreaker.NewDBCircuitBreaker(database, logBreakerChange(logger))
		rt.notifications = pgRepo.NewNotificationRepo(rt.dbBreaker)
		rt.vaccinations = pgRepo.NewVaccinationRepo(rt.dbBreaker)
		rt.feeding = pgRepo.NewFeedingPlanRepo(rt.dbBreaker)
		contacts = pgRepo.NewContactRepo(rt.dbBreaker)
		rt.inbox = pgRepo.NewInboxRepo(rt.dbBreaker)
	}

	registry, err := notify.NewRegistry(newChannels(logger, channels, contacts, rt.inbox)...)
	if err != nil {
		rt.Close()
		return nil, err
	}

	loc := cfg.Location()
	rt.notifier = notify.NewService(rt.notifications, registry,
		notify.WithSendTimeout(cfg.ChannelSendTimeout),
		notify.WithLocation(loc))
	rt.scheduler = schedule.New(rt.vaccinations, rt.feeding, rt.notifications, rt.notifier,
		schedule.WithSchedule(cfg.ScanSchedule),
		schedule.WithLocation(loc),
		schedule.WithConcurrency(cfg.DispatchConcurrency),
		schedule.WithTickTimeout(cfg.TickTimeout),
		schedule.WithStuckAfter(cfg.StuckAfter),
		schedule.WithPendingBatch(cfg.PendingBatchSize),
		schedule.WithObserver(workerMetrics))
	return rt, nil
}

// newChannels builds the channel adapters. IN_APP is always registered;
// CHAT and EMAIL fall back to no-op providers when disabled so that
// notifications naming them are still handled and logged.
func newChannels(logger *slog.Logger, cfg *config.ChannelsConfig, contacts repository.ContactRepository, inbox repository.InboxRepository) []notify.Channel {
	listener := logBreakerChange(logger)

	var sender notify.ChatSender = notifier.NoopChat{}
	if cfg.Chat.Enabled {
		sender = notifier.NewChatClient(cfg.Chat.ClientConfig())
		logger.Info("chat channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("chat channel disabled")
	}

	var mailer notify.Mailer = notifier.NoopMailer{}
	if cfg.SMTP.Enabled {
		mailer = notifier.NewSMTPMailer(cfg.SMTP.MailerConfig())
		logger.Info("email channel initialized", slog.String("status", "enabled"), slog.String("host", cfg.SMTP.Host))
	} else {
		logger.Info("email channel disabled")
	}

	return []notify.Channel{
		notify.NewInAppChannel(inbox),
		notify.NewChatChannel(sender, contacts, listener),
		notify.NewEmailChannel(mailer, contacts, listener),
	}
}

func logBreakerChange(logger *slog.Logger) circuitbreaker.StateChangeFunc {
	return func(name string, from, to gobreaker.State) {
		level := slog.LevelInfo
		if to == gobreaker.StateOpen {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "circuit breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
	}
}

// reportDBStats publishes pool statistics until ctx is done.
func (rt *runtime) reportDBStats(ctx context.Context, every time.Duration) {
	if rt.database == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		stats := rt.database.Stats()
		metrics.UpdateDBConnectionStats(stats.InUse, stats.Idle)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases the database pool, if any.
func (rt *runtime) Close() {
	if rt.database == nil {
		return
	}
	if err := rt.database.Close(); err != nil {
		rt.logger.Error("failed to close database", slog.Any("error", err))
	}
}
