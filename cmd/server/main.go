package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/coverdesk/approvalflow/internal/application/dispatcher"
	"github.com/coverdesk/approvalflow/internal/application/engine"
	"github.com/coverdesk/approvalflow/internal/application/service"
	"github.com/coverdesk/approvalflow/internal/application/tracker"
	"github.com/coverdesk/approvalflow/internal/config"
	"github.com/coverdesk/approvalflow/internal/domain/approval"
	"github.com/coverdesk/approvalflow/internal/export"
	"github.com/coverdesk/approvalflow/internal/infrastructure/persistence/repository"
	"github.com/coverdesk/approvalflow/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/coverdesk/approvalflow/internal/interfaces/http"
	"github.com/coverdesk/approvalflow/internal/notify"
	"github.com/coverdesk/approvalflow/migrations"
	"github.com/coverdesk/approvalflow/pkg/database"
	"github.com/coverdesk/approvalflow/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting approval workflow service",
		zap.Int("port", cfg.Server.Port),
		zap.Int("workflow_types", len(cfg.Workflow.Types)))

	db, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).Run(migrations.FS); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Persistence
	store := sqlite.NewDB(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(store, logger)
	subjectRepo := repository.NewSubjectRepository(store, historyRepo, logger)

	kv := utils.NewKVLogger(logger)

	// Events and notifications
	disp := dispatcher.New(dispatcher.WithLogger(kv))
	notifier := notify.NewNotifier(notify.NewLogSender(logger), logger)
	notifier.Register(disp)

	// Workflow core
	policy := approval.NewPolicy(cfg.Workflow.Roles)
	eng := engine.New(subjectRepo, policy, cfg.WorkflowTypes(), kv,
		engine.WithDispatcher(disp),
		engine.WithRetryAttempts(uint(cfg.Workflow.RetryAttempts)),
	)
	trk := tracker.New(subjectRepo, tracker.Verification64VB(), kv,
		tracker.WithDispatcher(disp),
	)

	// Read side
	subjects := service.NewSubjectService(subjectRepo, kv)
	exporter := export.NewExporter(logger)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, eng, trk, subjects, subjectRepo, exporter, kv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	// Drain in-flight notification handlers before closing the database
	if err := disp.Close(); err != nil {
		logger.Error("Dispatcher close failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}
