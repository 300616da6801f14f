package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"tripvault/auth"
	"tripvault/config"
	"tripvault/db/db"
	"tripvault/db/mem"
	"tripvault/db/pg"
	"tripvault/ledger"
	"tripvault/metrics"
	"tripvault/mq/gcppubsub"
	"tripvault/mq/goch"
	"tripvault/mq/mq"
	"tripvault/mq/rabbit"
	"tripvault/storage"
)

type Dependencies struct {
	Ledger *ledger.Ledger
	Users  db.UserDBWrapper
	Files  storage.FileStore
	Events mq.ExpenseMessageQueueWrapper
	JWT    *auth.JWTManager
}

// NewRouter builds the gin engine with all middlewares and routes.
func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if !cfg.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	setupMiddlewares(r, cfg)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.Use(AuthMiddleware(deps.JWT, deps.Users))
	api.Use(UserDataLoaderInjectionMiddleware(deps.Users))
	origins := cfg.AllowedOrigins
	if cfg.IsDev {
		origins = nil
	}
	NewHandler(deps.Ledger, deps.Files, deps.Events, WebsocketOriginChecker(origins)).Register(api)
	return r
}

func openStore(cfg *config.Config) (db.TripDBWrapper, db.UserDBWrapper, func(), error) {
	switch cfg.StoreMode {
	case config.StorePostgres:
		gormDB, err := pg.InitPostgresGORM(cfg.DSN())
		if err != nil {
			return nil, nil, nil, err
		}
		return pg.NewGORMTripDBWrapper(gormDB), pg.NewGORMUserDBWrapper(gormDB), func() { pg.CloseGORM(gormDB) }, nil
	default:
		return mem.NewInMemoryTripDBWrapper(), mem.NewInMemoryUserDBWrapper(), func() {}, nil
	}
}

func openMessageQueue(ctx context.Context, cfg *config.Config) (mq.ExpenseMessageQueueWrapper, error) {
	switch cfg.MqMode {
	case config.MqRabbit:
		conn, err := rabbit.NewRabbitConnection(cfg.RabbitURL)
		if err != nil {
			return nil, err
		}
		return rabbit.NewRabbitExpenseMessageQueueWrapper(conn)
	case config.MqGCPPubSub:
		return gcppubsub.NewGCPExpenseMessageQueueWrapper(ctx, cfg.GCPProjectID)
	default:
		return goch.NewGoChanExpenseMessageQueueWrapper(goch.DefaultBufferSize), nil
	}
}

// Serve runs the API until SIGINT or SIGTERM.
func Serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trips, users, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreMode, err)
	}
	defer closeStore()

	events, err := openMessageQueue(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s message queue: %w", cfg.MqMode, err)
	}
	defer events.Close()

	files, err := storage.NewLocalFileStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	router := NewRouter(cfg, Dependencies{
		Ledger: ledger.New(trips, users, files, events, ledger.WithLogger(slog.Default())),
		Users:  users,
		Files:  files,
		Events: events,
		JWT:    auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "port", cfg.Port, "store", cfg.StoreMode, "mq", cfg.MqMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
