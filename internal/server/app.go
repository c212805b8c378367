// Package server wires the auth service together and runs it until a
// termination signal arrives, then releases resources in dependency order.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/queues"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/rest"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/uploads"
)

// brokerPublisher is a publisher holding a broker connection.
type brokerPublisher interface {
	queues.Publisher
	Close() error
}

type runner interface {
	Run(ctx context.Context) error
}

// closer releases one resource during shutdown.
type closer struct {
	name  string
	close func(ctx context.Context) error
}

// Seams for tests.
var (
	openDB               = repomanager.OpenPostgres
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
	dialBroker           = func(url string, l logging.Logger) (brokerPublisher, error) {
		return queues.NewAMQPPublisher(url, l)
	}
	newUploader = func(ctx context.Context, c *config.Config) (uploads.Uploader, error) {
		return uploads.NewS3Uploader(ctx, c)
	}
	newAsyncPublisher = queues.NewAsyncPublisher
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	server  runner
	closers []closer
}

// NewApp opens the database and broker, runs migrations, and builds the
// HTTP server. Resources opened before a failure are released.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger, err := logging.New(c.LogBackend, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			_ = app.shutdown(context.Background())
		}
	}()

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.addCloser("database", func(context.Context) error { return db.Close() })

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	broker, err := dialBroker(c.RabbitMQEndpoint, logger.With("module", "amqp"))
	if err != nil {
		return nil, fmt.Errorf("broker init error: %w", err)
	}
	app.addCloser("broker", func(context.Context) error { return broker.Close() })

	publisher := newAsyncPublisher(broker, c.PublishQueueSize, c.PublishTimeout, logger.With("module", "publisher"))
	app.addCloser("publisher", publisher.Close)

	uploader, err := newUploader(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	svc, tokens, gateway, err := buildAuth(db, rm, publisher, uploader, logger, c)
	if err != nil {
		return nil, err
	}

	app.server = rest.NewHTTPServer(c.EndpointAddrHTTP, logger, svc, gateway, tokens, c.ShutdownTimeout)
	return app, nil
}

func buildAuth(db *sql.DB, rm repomanager.RepositoryManager, pub queues.Publisher, up uploads.Uploader,
	logger logging.Logger, c *config.Config) (*services.AuthService, *auth.TokenService, *auth.GatewayVerifier, error) {

	tokens, err := auth.NewTokenService([]byte(c.SecretKey), c.SessionTokenValidityDuration)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("token service error: %w", err)
	}

	gateway, err := auth.NewGatewayVerifier([]byte(c.GatewaySecretKey), c.GatewayAllowedIDs, tokens)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("gateway verifier error: %w", err)
	}

	svc := services.NewAuthService(db, rm, pub, up, tokens, auth.NewPasswordHasher(0), logger, c)
	return svc, tokens, gateway, nil
}

// addCloser registers a resource; shutdown releases them newest first.
func (app *App) addCloser(name string, fn func(context.Context) error) {
	app.closers = append(app.closers, closer{name: name, close: fn})
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Received signal", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves until a termination signal or ctx cancellation, then shuts
// down. The HTTP server stops first so no request publishes into a closed
// queue.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	runErr := app.server.Run(ctx)
	if runErr != nil {
		app.logger.Error(ctx, "HTTP server error", "error", runErr)
	}

	shutdownCtx := context.Background()
	if app.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, app.config.ShutdownTimeout)
		defer cancel()
	}

	return errors.Join(runErr, app.shutdown(shutdownCtx))
}

func (app *App) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		c := app.closers[i]
		app.logger.Info(ctx, "Closing", "resource", c.name)
		if err := c.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
