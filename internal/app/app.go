package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/godilite/cs-eval-dashboard/internal/config"
	handler "github.com/godilite/cs-eval-dashboard/internal/grpc"
	"github.com/godilite/cs-eval-dashboard/internal/metrics"
	"github.com/godilite/cs-eval-dashboard/internal/refresh"
	"github.com/godilite/cs-eval-dashboard/internal/repository"
	"github.com/godilite/cs-eval-dashboard/internal/rest"
	"github.com/godilite/cs-eval-dashboard/internal/service"
	"github.com/godilite/cs-eval-dashboard/pkg/cache"
	dbbuilder "github.com/godilite/cs-eval-dashboard/pkg/database"
	grpcsrv "github.com/godilite/cs-eval-dashboard/pkg/grpc/server"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *sqlx.DB
	cache      cache.Cacher
	controller *refresh.Controller
	httpApp    *fiber.App
	grpcServer *grpcsrv.Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := dbbuilder.New(
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBDSN),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("driver", cfg.DBDriver))

	var cacheClient cache.Cacher = cache.Nop{}
	if cfg.RedisAddr != "" {
		cacheClient, err = cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
			cache.WithPassword(cfg.RedisPassword),
			cache.WithDB(cfg.RedisDB),
		)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("cache init failed: %w", err)
		}
		logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Info("REDIS_ADDR not set, response cache disabled")
	}

	repo := repository.NewEvaluationRepository(db)
	evaluations := service.NewEvaluationService(repo, logger, service.WithFetchLimit(cfg.FetchLimit))

	controller := refresh.NewController(evaluations, logger,
		refresh.WithInterval(cfg.RefreshInterval),
		refresh.WithTimeout(cfg.FetchTimeout),
		refresh.WithRecorder(metrics.Refresh{}),
	)

	httpApp := rest.NewApp(rest.NewHandlers(evaluations, controller, cacheClient, logger, cfg.CacheTTL), logger)

	grpcServer, err := grpcsrv.New(
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithLogging(true),
	)
	if err != nil {
		cacheClient.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	grpcHandlers := handler.NewGRPCHandlers(evaluations, controller, cacheClient, logger, cfg.CacheTTL)
	grpcServer.RegisterServiceWithHealth(handler.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING, func(s *grpc.Server) {
		handler.RegisterDashboardServer(s, grpcHandlers)
	})

	var ready sync.Once
	controller.OnSnapshot(func(*refresh.Snapshot) {
		ready.Do(func() {
			grpcServer.SetServiceHealth(handler.ServiceName, healthpb.HealthCheckResponse_SERVING)
		})
	})

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		cache:      cacheClient,
		controller: controller,
		httpApp:    httpApp,
		grpcServer: grpcServer,
	}, nil
}

// Run starts the refresh loop and both servers, and blocks until ctx is
// cancelled, a shutdown signal arrives, or one of them fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("application starting",
		zap.Int("http_port", a.cfg.HTTPPort),
		zap.Int("grpc_port", a.cfg.GRPCPort),
		zap.Duration("refresh_interval", a.cfg.RefreshInterval))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.controller.Run(gctx)
	})
	g.Go(func() error {
		if err := a.httpApp.Listen(fmt.Sprintf(":%d", a.cfg.HTTPPort)); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(a.grpcServer.Serve)
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("application shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(
			a.httpApp.ShutdownWithContext(shutdownCtx),
			a.grpcServer.Shutdown(shutdownCtx),
		)
	})

	err := g.Wait()

	if cerr := a.cache.Close(); cerr != nil {
		a.logger.Error("cache shutdown error", zap.Error(cerr))
	}
	if cerr := a.db.Close(); cerr != nil {
		a.logger.Error("database shutdown error", zap.Error(cerr))
	}

	if err != nil {
		return err
	}
	a.logger.Info("graceful shutdown completed successfully")
	return nil
}
