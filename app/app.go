package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"broker-calls/api"
	"broker-calls/auth"
	"broker-calls/cache"
	"broker-calls/calls"
	"broker-calls/config"
	"broker-calls/database"
	dbcalls "broker-calls/database/calls"
	"broker-calls/database/memory"
	dbnotifications "broker-calls/database/notifications"
	"broker-calls/database/tokens"
	"broker-calls/database/users"
	"broker-calls/market"
	"broker-calls/notifications"
	"broker-calls/realtime"
	"broker-calls/uploads"
	"broker-calls/watchlist"

	"go.uber.org/zap"
)

// userStore is what the auth and watchlist services need from user storage
type userStore interface {
	auth.UserStore
	watchlist.Store
}

// stores groups the persistence backends behind the services
type stores struct {
	users         userStore
	calls         calls.Store
	notifications notifications.Store
	tokens        auth.TokenStore
}

// App represents the main application
type App struct {
	config  *config.Config
	logger  *zap.Logger
	db      *database.Database
	redis   *cache.RedisClient
	broker  *realtime.Broker
	tracker *PriceTracker
	janitor *auth.Janitor
	server  *api.Server
}

// New creates a new application instance
func New(cfg *config.Config) (*App, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	return &App{
		config: cfg,
		logger: logger,
	}, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStores connects the configured storage backend
func (a *App) openStores() (*stores, error) {
	if a.config.Storage == "memory" {
		a.logger.Warn("using in-memory storage, data is lost on restart")
		m := memory.New()
		return &stores{
			users:         m.Users,
			calls:         m.Calls,
			notifications: m.Notifications,
			tokens:        m.Tokens,
		}, nil
	}

	a.logger.Info("🗄️  Connecting to database...")
	db, err := database.Connect(a.config.DatabaseURL, a.config.IsDevelopment())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	if err := db.InitSchema(a.logger); err != nil {
		return nil, fmt.Errorf("schema initialization failed: %w", err)
	}

	return &stores{
		users:         users.NewRepository(db.DB()),
		calls:         dbcalls.NewRepository(db.DB()),
		notifications: dbnotifications.NewRepository(db.DB()),
		tokens:        tokens.NewRepository(db.DB()),
	}, nil
}

// Start starts the application and blocks until shutdown
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer a.logger.Sync()

	st, err := a.openStores()
	if err != nil {
		return err
	}

	a.logger.Info("🧠 Connecting to Redis...")
	a.redis = cache.NewRedisClient(a.config.RedisHost, a.config.RedisPort, a.config.RedisPassword, a.logger)
	if a.redis == nil {
		a.logger.Warn("⚠️  Redis unavailable, falling back to in-process caches and locks")
	}

	uploadStore, err := uploads.NewStore(a.config.UploadDir)
	if err != nil {
		return fmt.Errorf("upload directory init failed: %w", err)
	}

	// Realtime broker
	a.broker = realtime.NewBroker(a.logger)

	// Market data
	marketClient := market.NewClient(a.config.Market.BaseURL)
	quotes := cache.NewQuoteCache(a.redis, marketClient, a.config.Market.QuoteCacheTTL)

	// Services
	revocations := auth.NewRevocations(st.tokens, a.redis, a.logger)
	authService := auth.NewService(
		st.users,
		auth.NewIssuer(a.config.Auth.JWTSecret, a.config.Auth.JWTExpiresIn),
		revocations,
		a.logger,
	)
	notificationService := notifications.NewService(st.notifications, a.broker, a.logger)
	callService := calls.NewService(st.calls, notificationService, marketClient, a.logger)
	watchlistService := watchlist.NewService(st.users, a.logger)

	// Background jobs
	var lease Lease
	if a.redis != nil {
		lease = NewRedisLease(a.redis, PriceTrackerLeaseKey, a.config.Tracker.LeaseTTL, a.logger)
	} else {
		lease = NewLocalLease()
	}
	a.tracker, err = NewPriceTracker(st.calls, quotes, lease, a.config.Tracker.Schedule, a.logger)
	if err != nil {
		return err
	}
	a.janitor = auth.NewJanitor(revocations, a.config.Auth.PurgeInterval, a.logger)

	a.server = api.NewServer(api.Deps{
		Config:        a.config,
		Auth:          authService,
		Calls:         callService,
		Watchlist:     watchlistService,
		Notifications: notificationService,
		Market:        marketClient,
		Quotes:        quotes,
		Broker:        a.broker,
		Uploads:       uploadStore,
		Redis:         a.redis,
		Health:        a.ping,
		Logger:        a.logger,
	})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		a.broker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.tracker.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		a.janitor.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErr <- err
		}
	}()

	err = a.gracefulShutdown(cancel, serverErr)
	wg.Wait()
	return err
}

// ping reports whether the storage and cache backends answer
func (a *App) ping(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.Ping(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// gracefulShutdown waits for a signal or a server failure, then stops
// everything within a 10 second budget
func (a *App) gracefulShutdown(cancel context.CancelFunc, serverErr <-chan error) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-interrupt:
		a.logger.Info("🛑 Shutdown signal received, initiating graceful shutdown...")
	case runErr = <-serverErr:
		a.logger.Error("API server stopped unexpectedly", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("error shutting down API server", zap.Error(err))
		}

		// Stop background loops
		cancel()
		a.tracker.Stop()

		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.logger.Error("error closing database", zap.Error(err))
			} else {
				a.logger.Info("✅ Database connection closed")
			}
		}
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.logger.Error("error closing redis", zap.Error(err))
			} else {
				a.logger.Info("✅ Redis connection closed")
			}
		}

		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		a.logger.Info("✅ Graceful shutdown completed")
		return runErr
	case <-shutdownCtx.Done():
		a.logger.Warn("⚠️  Shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}
