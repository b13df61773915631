package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"go-notification-hub/internal/application/facade"
	"go-notification-hub/internal/infrastructure/config"
	"go-notification-hub/internal/infrastructure/hub"
	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/infrastructure/mail"
	"go-notification-hub/internal/infrastructure/persistence"
	"go-notification-hub/internal/infrastructure/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx := context.Background()
	sctx := WithSignal(ctx)

	cfg, err := config.Load()
	if err != nil {
		logger.NewLogrusLogger(logger.NewDefaultConfig()).Fatalf("failed to load config: %v", err)
	}

	log := logger.NewLogrusLogger(cfg.LoggerConfig())
	clock := clockwork.NewRealClock()

	db, err := persistence.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	registry := hub.NewRegistry(log,
		hub.WithClock(clock),
		hub.WithCacheRetention(cfg.CacheRetention),
		hub.WithJanitorInterval(cfg.JanitorInterval),
	)

	// Start the registry first so the transports never see it stopped.
	if err := registry.Start(sctx); err != nil {
		log.Errorf("failed to start registry: %v", err)
		return
	}

	dispatcher := mail.NewDispatcher(newMailSender(cfg, log), cfg.MailFrom, cfg.MailQueue, cfg.MailWorkers, log)
	if err := dispatcher.Start(sctx); err != nil {
		log.Errorf("failed to start mail dispatcher: %v", err)
		return
	}

	broadcaster := facade.NewNotificationBroadcaster(
		registry,
		hub.NewIDGenerator(clock),
		persistence.NewNotificationStore(db, clock),
		dispatcher,
		clock,
		facade.BroadcasterConfig{
			StreamTimeout: cfg.StreamTimeout,
			PushTimeout:   cfg.PushTimeout,
			FanOutLimit:   cfg.FanOutLimit,
		},
		log,
	)

	router := InitRouter(cfg, registry, broadcaster, db, log)
	httpSrv := server.NewHTTPServer(cfg.HTTPAddr, router, log)
	app := newApplication(log, httpSrv, registry, dispatcher)
	if err := app.Run(sctx); err != nil {
		log.Errorf("failed to run application: %v", err)
	}
}

func newMailSender(cfg *config.Config, log logger.Logger) mail.Sender {
	if cfg.SMTPHost == "" {
		return mail.NewLogSender(log)
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
}

type Application struct {
	logger     logger.Logger
	httpSrv    server.Server
	registry   *hub.Registry
	dispatcher *mail.Dispatcher
}

func newApplication(
	logger logger.Logger,
	httpSrv *server.HTTPServer,
	registry *hub.Registry,
	dispatcher *mail.Dispatcher,
) *Application {
	return &Application{
		logger:     logger.WithField("app", "notification-hub"),
		httpSrv:    httpSrv,
		registry:   registry,
		dispatcher: dispatcher,
	}
}

func (app *Application) Run(ctx context.Context) error {
	eg := errgroup.Group{}

	eg.Go(func() error {
		return app.httpSrv.Start(ctx)
	})

	eg.Go(func() error {
		<-ctx.Done()

		gracefulshutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Completing every connection releases the streaming handlers
		// that Shutdown would otherwise wait on.
		if err := app.registry.Stop(gracefulshutdownCtx); err != nil {
			app.logger.Errorf("failed to stop registry: %v", err)
		}
		app.dispatcher.Stop()

		return app.httpSrv.Stop(gracefulshutdownCtx)
	})

	return eg.Wait()
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}

func pingDatabase(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
