package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/balu-property/damage-service/internal/api/http"
	"github.com/balu-property/damage-service/internal/api/http/handlers"
	"github.com/balu-property/damage-service/internal/auth"
	"github.com/balu-property/damage-service/internal/config"
	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/events"
	"github.com/balu-property/damage-service/internal/observability"
	"github.com/balu-property/damage-service/internal/persistence"
	"github.com/balu-property/damage-service/internal/repository"
	"github.com/balu-property/damage-service/internal/repository/memory"
	"github.com/balu-property/damage-service/internal/service"
	"github.com/balu-property/damage-service/internal/storage"
	"github.com/balu-property/damage-service/internal/worker"
)

func newServeCommand() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  `Start the damage API. Without POSTGRES_DSN the service runs on an in-memory store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", true, "seed demo apartments and companies into the in-memory store")
	return cmd
}

func runServe(parent context.Context, seed bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var repos repository.Repositories
	if pg.Enabled() {
		repos = repository.NewPostgresRepositories(pg.PoolHandle())
	} else {
		store := memory.NewStore()
		if seed {
			seedDemoData(store)
			logger.Info("seeded in-memory store with demo data")
		}
		repos = store.Repositories()
	}

	var (
		dispatcher events.Dispatcher
		consumer   worker.Consumer
	)
	if redis.Enabled() {
		bus := events.NewRedisDispatcher(redis.Client, cfg.Notification.Channel, logger)
		dispatcher, consumer = bus, bus
	} else {
		dispatcher = events.NewInMemoryDispatcher()
	}

	var documents storage.DocumentStore = storage.NewURLStore()
	if cfg.Documents.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg.Documents)
		if err != nil {
			return fmt.Errorf("init document store: %w", err)
		}
		documents = s3Store
	}

	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	engine := service.NewWorkflowService(service.WorkflowDependencies{
		Repos:      repos,
		Documents:  documents,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Location:   cfg.App.Location(),
		BcryptCost: cfg.Auth.BcryptCost,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Repos:      repos,
		Documents:  documents,
		Tokens:     tokens,
		ShareTTL:   cfg.Auth.ShareLinkTTL(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	offerService := service.NewOfferService(service.OfferDependencies{
		Repos:      repos,
		Engine:     engine,
		Documents:  documents,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	notifications := service.NewNotificationService(dispatcher, service.NewLogNotifier(logger, cfg.Notification), logger)
	workerDone := worker.NewNotificationWorker(notifications, consumer, logger).Start(ctx)

	deps := map[string]handlers.Pinger{}
	if pg.Enabled() {
		deps["postgres"] = pg
	}
	if redis.Enabled() {
		deps["redis"] = redis
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env != "development",
		ReadTimeout:           cfg.App.RequestTimeout(),
		WriteTimeout:          cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps, metrics),
		Damages:        handlers.NewDamagesHandler(ticketService, engine),
		Offers:         handlers.NewOffersHandler(offerService),
		Public:         handlers.NewPublicHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("fiber listen: %w", err)
		}
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-workerDone
	return nil
}

// seedDemoData gives the in-memory store one apartment with every role and two companies,
// matching the ids the token command defaults to.
func seedDemoData(store *memory.Store) {
	store.PutApartment(domain.Apartment{
		ID:         "apt-demo",
		Name:       "Seestrasse 4, 2. OG",
		Active:     true,
		OwnerID:    "owner-demo",
		AdminIDs:   []string{"admin-demo"},
		JanitorIDs: []string{"janitor-demo"},
		TenantIDs:  []string{"tenant-demo"},
	})
	store.PutCompany(domain.Company{ID: "company-demo", Name: "Sanitär Meier", Email: "info@meier.ch", Active: true})
	store.PutCompany(domain.Company{ID: "company-demo-2", Name: "Maler Rossi", Email: "office@rossi.ch", Active: true})
	store.PutCategory(domain.Category{ID: "cat-water", Names: map[domain.Locale]string{
		domain.LocaleDE: "Wasserschaden",
		domain.LocaleEN: "Water damage",
		domain.LocaleFR: "Dégât des eaux",
		domain.LocaleIT: "Danno d'acqua",
	}})
}
