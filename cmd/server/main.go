package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/ogurasousui/gallon-quota/internal/adapters/http"
	"github.com/ogurasousui/gallon-quota/internal/adapters/repository/postgres"
	"github.com/ogurasousui/gallon-quota/internal/core/distribution"
	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/ogurasousui/gallon-quota/internal/core/ledger"
	"github.com/ogurasousui/gallon-quota/internal/core/quota"
	"github.com/ogurasousui/gallon-quota/internal/platform/config"
	pg "github.com/ogurasousui/gallon-quota/internal/platform/db/postgres"
	"github.com/ogurasousui/gallon-quota/internal/platform/logger"
	"github.com/ogurasousui/gallon-quota/internal/platform/metrics"
	"github.com/ogurasousui/gallon-quota/internal/platform/server"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.FilePath); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}
	defer logger.Close()
	lg := logger.Global()

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to initialize database pool")
	}
	defer dbPool.Close()

	m := metrics.NewDefault()
	clock := employee.SystemClock{Location: cfg.Quota.Location}
	txOpts, err := pg.TransactionOptions(cfg.Database)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to configure transactions")
	}
	txManager := pg.NewTransactionManager(dbPool, txOpts...)

	employeeRepo := postgres.NewEmployeeRepository(dbPool)
	transactionRepo := postgres.NewTransactionRepository(dbPool)

	engine := quota.NewEngine(employeeRepo, clock, txManager, quota.WithResetObserver(m))
	employeeSvc := employee.NewService(employeeRepo, clock, txManager,
		employee.WithQuotaGate(engine),
		employee.WithMaxMonthlyQuota(cfg.Quota.MaxMonthlyQuota),
		employee.WithDefaultPageSize(cfg.Admin.PageSize),
	)
	recorder := ledger.NewRecorder(transactionRepo, clock)
	distributionSvc := distribution.NewService(employeeRepo, engine, recorder,
		distribution.WithObserver(m),
		distribution.WithMaxGallons(cfg.Quota.MaxGallonsPerTransaction),
	)

	api := httpapi.NewServer(distributionSvc, employeeSvc, recorder,
		httpapi.WithMetrics(m),
		httpapi.WithLogger(*lg),
		httpapi.WithClock(clock),
		httpapi.WithLocation(cfg.Quota.Location),
		httpapi.WithRecentTransactions(cfg.Admin.RecentTransactions),
	)

	httpServer := server.NewHTTP(cfg.Server.HTTPAddr, api.Handler(), cfg.Server.ShutdownTimeout)
	grpcServer := server.New(cfg.Server.ListenAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info().Str("addr", cfg.Server.HTTPAddr).Msg("HTTP server listening")
		return httpServer.Run(gctx)
	})
	g.Go(func() error {
		lg.Info().Str("addr", cfg.Server.ListenAddr).Msg("gRPC server listening")
		return grpcServer.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		lg.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	lg.Info().Msg("server stopped")
}
