package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/opsfinance/formflow/internal/application/service"
	"github.com/opsfinance/formflow/internal/config"
	"github.com/opsfinance/formflow/internal/infrastructure/persistence/repository"
	httpserver "github.com/opsfinance/formflow/internal/interfaces/http"
	"github.com/opsfinance/formflow/internal/voucher"
	"github.com/opsfinance/formflow/migrations"
	"github.com/opsfinance/formflow/pkg/database"
	"github.com/opsfinance/formflow/pkg/utils"
)

func main() {
	// Local overrides, ignored when absent
	_ = gotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
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

	logger.Info("Starting form lifecycle service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(ctx, migrations.FS); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	requestRepo := repository.NewRequestRepository(db, logger)
	itemRepo := repository.NewRequestItemRepository(db, logger)
	auditRepo := repository.NewAuditRepository(db, logger)
	supplierRepo := repository.NewSupplierRepository(db, logger)
	voucherRepo := repository.NewVoucherRepository(db, logger)
	seqRepo := repository.NewSequenceRepository(db, logger)

	// Initialize services
	sugar := &sugaredLogger{logger.Sugar()}
	requestService := service.NewRequestService(requestRepo, itemRepo, auditRepo, seqRepo, db, sugar)
	supplierService := service.NewSupplierService(supplierRepo, sugar)
	voucherService := service.NewVoucherService(voucherRepo, seqRepo, sugar)

	// Initialize voucher exporter
	exporter := voucher.NewExporter(cfg.Voucher.CompanyName, cfg.Voucher.CompanyTaxID, logger)

	// Initialize HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, requestService, supplierService, voucherService, exporter, sugar)

	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}

// sugaredLogger adapts zap's sugared logger to the keysAndValues logging
// interfaces the service and http layers expect.
type sugaredLogger struct {
	*zap.SugaredLogger
}

func (l *sugaredLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Infow(msg, keysAndValues...)
}

func (l *sugaredLogger) Error(msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, keysAndValues...)
}
