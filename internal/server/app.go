// Package server wires the blogkeeper components together: it opens the
// database, runs migrations, builds the services and runs the REST and gRPC
// servers until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/server/auth"
	"github.com/dmitrijs2005/blogkeeper/internal/server/authz"
	"github.com/dmitrijs2005/blogkeeper/internal/server/config"
	"github.com/dmitrijs2005/blogkeeper/internal/server/llm"
	"github.com/dmitrijs2005/blogkeeper/internal/server/mail"
	"github.com/dmitrijs2005/blogkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/blogkeeper/internal/server/rest"
	"github.com/dmitrijs2005/blogkeeper/internal/server/revocation"
	"github.com/dmitrijs2005/blogkeeper/internal/server/services"
	"github.com/dmitrijs2005/blogkeeper/internal/server/storage"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/blogkeeper/internal/server/grpc"
)

const (
	startupTimeout = 30 * time.Second
	drainTimeout   = 10 * time.Second
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	redis    *redis.Client
	recorder *services.VisitorRecorder
	rest     *rest.Server
	grpc     *gs.GRPCServer
}

// NewApp connects to the database (and Redis, when configured), applies
// migrations and builds every service.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(logging.Options{Backend: c.LogBackend, Format: c.LogFormat, Level: c.LogLevel})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}
	if err := app.init(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	secret := []byte(c.SecretKey)
	if len(secret) == 0 {
		s, err := auth.RandomSecret()
		if err != nil {
			return fmt.Errorf("generate secret: %w", err)
		}
		secret = s
		app.logger.Warn(ctx, "no secret key configured; using a random per-process key, sessions will not survive a restart")
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	var revocations revocation.Store = revocation.NewMemoryStore()
	if c.RedisAddr != "" {
		client, err := revocation.NewRedisClient(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			return err
		}
		app.redis = client
		revocations = revocation.NewRedisStore(client, c.TokenValidity)
		app.logger.Info(ctx, "revocation marks stored in redis", "addr", c.RedisAddr)
	}

	mailer, err := mail.New(c.SMTPURL, c.MailFrom, app.logger)
	if err != nil {
		return fmt.Errorf("mail init error: %w", err)
	}

	m := metrics.New()
	hasher := auth.NewHasher(c.BcryptCost)
	tokens := auth.NewTokenManager(secret, c.TokenIssuer, c.TokenValidity)

	generator := llm.New(llm.Options{
		BaseURL:    c.LLMBaseURL,
		APIKey:     c.LLMAPIKey,
		Model:      c.LLMModel,
		Timeout:    c.LLMTimeout,
		MaxRetries: c.LLMMaxRetries,
	}, app.logger)
	media := storage.NewS3MediaStore(storage.Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	})

	app.recorder = services.NewVisitorRecorder(db, rm, services.RecorderOptions{
		QueueSize:      c.VisitorQueueSize,
		Workers:        c.VisitorWorkers,
		EnqueueTimeout: c.VisitorEnqueueTimeout,
	}, m, app.logger)

	app.rest = rest.NewServer(rest.Options{
		Addr:       c.HTTPAddr,
		Cookie:     auth.CookieOptions{Secure: c.CookieSecure, MaxAge: c.TokenValidity},
		TrustProxy: c.TrustProxy,
		Admin:      rest.AdminDefaults{Email: c.AdminEmail, Password: c.AdminPassword, Name: c.AdminName},
	}, rest.Deps{
		Accounts:       services.NewAccountService(db, rm, hasher, tokens, revocations, mailer, c.SiteURL, app.logger),
		Visitors:       app.recorder,
		Content:        services.NewContentService(db, rm, app.logger),
		Moderation:     services.NewModerationService(db, rm, app.logger),
		Newsletter:     services.NewNewsletterService(db, rm, mailer, c.SiteURL, app.logger),
		Assistant:      services.NewAssistantService(generator, media, app.logger),
		Gate:           authz.NewGate(tokens, rm.Users(db), revocations, app.logger),
		DB:             db,
		Metrics:        m,
		MetricsHandler: m.Handler(),
	}, app.logger)

	if c.GRPCAddr != "" {
		app.grpc = gs.NewGRPCServer(c.GRPCAddr, db, app.logger)
	}

	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a signal arrives or a server fails, then drains the
// visitor queue and releases connections.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.rest.Run(gctx)
	})
	if app.grpc != nil {
		g.Go(func() error {
			return app.grpc.Run(gctx)
		})
	}

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server failed", "error", err)
	}

	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
	return err
}

func (app *App) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	if app.recorder != nil {
		drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
		if err := app.recorder.Close(drainCtx); err != nil {
			app.logger.Warn(ctx, "visitor queue not drained", "error", err)
		}
		cancel()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "closing redis", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			app.logger.Warn(ctx, "closing database", "error", err)
		}
	}
	if s, ok := app.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}
