package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/daheeyun/haruplan/internal/ai"
	"github.com/daheeyun/haruplan/internal/config"
	"github.com/daheeyun/haruplan/internal/database"
	"github.com/daheeyun/haruplan/internal/eventbus"
	"github.com/daheeyun/haruplan/internal/occurrence"
	"github.com/daheeyun/haruplan/internal/reminder"
	"github.com/daheeyun/haruplan/internal/repository"
	"github.com/daheeyun/haruplan/internal/scheduler"
	"github.com/daheeyun/haruplan/internal/service"
	"github.com/daheeyun/haruplan/internal/suggestion"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.DatabaseURI == "" {
		logger.Fatal("DATABASE_URI is required")
	}
	if cfg.AIAPIKey == "" {
		logger.Fatal("AI_API_KEY is required")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("invalid timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to database")

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations completed")

	reminderRepo := repository.NewReminderRepository(db)
	suggestionRepo := repository.NewSuggestionRepository(db)
	eventRepo := repository.NewEventRepository(db)
	todoRepo := repository.NewTodoRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	exceptionRepo := repository.NewExceptionRepository(db)

	bus := eventbus.New(logger, 256)

	invalidation := suggestion.NewInvalidationService(suggestionRepo, bus, logger)
	invalidation.Register(bus)

	eventService := service.NewEventService(db, eventRepo, exceptionRepo, bus, invalidation, logger)
	todoService := service.NewTodoService(db, todoRepo, bus, invalidation, logger)
	provider := occurrence.NewProvider(eventService, todoService)

	reminderManager := reminder.NewManager(reminderRepo, provider, reminder.LogNotifier{Log: logger}, logger)
	reminderManager.Register(bus)

	aiClient := ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
	logger.Info("ai client initialized", zap.String("model", cfg.AIModel))

	historySource := service.NewSuggestionHistorySource(eventRepo, todoRepo)
	batch := suggestion.NewBatch(historySource, aiClient, suggestionRepo, invalidation, logger)

	go bus.Run(ctx)

	retention := time.Duration(cfg.MemberRetentionDays) * 24 * time.Hour
	sched := scheduler.New(reminderManager, batch, memberRepo, retention, loc, logger)
	schedules := scheduler.Schedules{
		ReminderMaintenance: cfg.ReminderMaintenanceCron,
		SuggestionBatch:     cfg.SuggestionBatchCron,
		MemberHardDelete:    cfg.MemberHardDeleteCron,
	}
	if err := sched.Start(ctx, schedules); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	// Catch up on anything missed while the process was down.
	sched.Notify()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	cancel()
}
