package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/config"
	"github.com/pesio-ai/be-app-crm/internal/handler"
	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/notify"
	"github.com/pesio-ai/be-app-crm/internal/repository"
	"github.com/pesio-ai/be-app-crm/internal/service"
	"github.com/pesio-ai/be-app-crm/internal/storage"
	jwtpkg "github.com/pesio-ai/be-app-crm/pkg/jwt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const (
	shutdownTimeout = 15 * time.Second
	healthInterval  = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gRPC health server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("Connecting to database")
	pool, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info().Msg("Database connection established")

	checks := map[string]handler.Pinger{"database": pool}
	store, closeStore, err := notifyStore(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	jwtManager, err := newJWTManager(cfg, log)
	if err != nil {
		return err
	}

	// Repositories
	userRepo := repository.NewUserRepository(pool, log)
	permRepo := repository.NewPermissionRepository(pool, log)
	leadRepo := repository.NewLeadRepository(pool, log)
	detailRepo := repository.NewLeadDetailRepository(pool, log)
	callRepo := repository.NewCallTrackingRepository(pool, log, cfg.Location())

	// Services
	svc := handler.Services{
		Auth:          service.NewAuthService(userRepo, permRepo, jwtManager, log),
		Users:         service.NewUserService(userRepo, permRepo, log),
		Leads:         service.NewLeadService(leadRepo, detailRepo, log),
		LeadDetails:   service.NewLeadDetailService(detailRepo, leadRepo, log),
		Calls:         service.NewCallTrackingService(callRepo, leadRepo, detailRepo, storage.NewRecordings(cfg.RecordingsDir), log),
		Notifications: service.NewNotificationService(store, log),
		Dashboard:     service.NewDashboardService(detailRepo, leadRepo, userRepo, cfg.Location(), log),
		Catalogs: map[string]*service.CatalogService{
			service.ModuleServices: service.NewCatalogService(repository.NewCatalogRepository(pool, log, repository.CatalogServices), log),
			service.ModuleStatuses: service.NewCatalogService(repository.NewCatalogRepository(pool, log, repository.CatalogStatuses), log),
		},
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.NewHTTPHandler(svc, cfg.Location(), log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	health := handler.NewGRPCHandler(checks, log)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLogger(log)))
	health.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to create gRPC listener on port %s: %w", cfg.GRPCPort, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		health.Watch(gctx, healthInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}

// notifyStore opens the configured notification backend. A Redis backend is
// also registered as a health check.
func notifyStore(ctx context.Context, cfg *config.Config, log *logger.Logger, checks map[string]handler.Pinger) (notify.Store, func(), error) {
	if cfg.NotifyBackend != "redis" {
		log.Info().Msg("Using in-memory notification queue")
		return notify.NewMemoryStore(), func() {}, nil
	}

	client, err := notify.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis notification queue")

	checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return notify.NewRedisStore(client), func() { _ = client.Close() }, nil
}

// newJWTManager builds the token manager. Without configured keys a throwaway
// pair is generated, so tokens do not survive a restart.
func newJWTManager(cfg *config.Config, log *logger.Logger) (*jwtpkg.Manager, error) {
	privateKeyPEM, publicKeyPEM := cfg.JWTPrivateKey, cfg.JWTPublicKey
	if privateKeyPEM == "" || publicKeyPEM == "" {
		log.Info().Msg("Generating JWT key pair (development mode)")
		var err error
		privateKeyPEM, publicKeyPEM, err = jwtpkg.GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT key pair: %w", err)
		}
	}

	m, err := jwtpkg.NewManager(privateKeyPEM, publicKeyPEM, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT manager: %w", err)
	}
	return m, nil
}
