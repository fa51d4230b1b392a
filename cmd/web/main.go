package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/VNZray/capstone-project-sub008/internal/apiclient"
	"github.com/VNZray/capstone-project-sub008/internal/auth"
	"github.com/VNZray/capstone-project-sub008/internal/config"
	"github.com/VNZray/capstone-project-sub008/internal/events"
	apphttp "github.com/VNZray/capstone-project-sub008/internal/http"
	"github.com/VNZray/capstone-project-sub008/internal/http/handlers"
	"github.com/VNZray/capstone-project-sub008/internal/modules/authbridge"
	"github.com/VNZray/capstone-project-sub008/internal/modules/cart"
	"github.com/VNZray/capstone-project-sub008/internal/modules/email"
	"github.com/VNZray/capstone-project-sub008/internal/modules/grace"
	"github.com/VNZray/capstone-project-sub008/internal/modules/ledger"
	"github.com/VNZray/capstone-project-sub008/internal/modules/orders"
	"github.com/VNZray/capstone-project-sub008/internal/modules/payments"
	"github.com/VNZray/capstone-project-sub008/internal/modules/receipts"
	"github.com/VNZray/capstone-project-sub008/internal/modules/tracking"
	"github.com/VNZray/capstone-project-sub008/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

type stores struct {
	carts    cart.Store
	attempts ledger.Store
	close    func()
}

func openStores(ctx context.Context, cfg config.DBConfig) (stores, error) {
	switch cfg.Driver {
	case "mysql":
		db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
		if err != nil {
			return stores{}, fmt.Errorf("connect mysql: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return stores{}, err
		}
		return stores{
			carts:    cart.NewGormStore(db),
			attempts: ledger.NewGormStore(db),
			close:    func() { _ = sqlDB.Close() },
		}, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return stores{}, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return stores{}, fmt.Errorf("ping postgres: %w", err)
		}
		// carts live in the backend's MySQL; with postgres they stay in memory
		return stores{
			carts:    cart.NewMemoryStore(),
			attempts: ledger.NewPgStore(pool),
			close:    pool.Close,
		}, nil

	default:
		return stores{
			carts:    cart.NewMemoryStore(),
			attempts: ledger.NewMemoryStore(),
			close:    func() {},
		}, nil
	}
}

func newPublisher(cfg config.AMQPConfig, logger *slog.Logger) (events.Publisher, func(), error) {
	logPub := events.LogPublisher{Logger: logger}
	if cfg.URL == "" {
		return logPub, func() {}, nil
	}
	rp, err := events.DialRabbit(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, nil, err
	}
	return events.Multi{rp, logPub}, func() { _ = rp.Close() }, nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	st, err := openStores(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.close()

	publisher, closePub, err := newPublisher(cfg.AMQP, logger)
	if err != nil {
		return fmt.Errorf("amqp: %w", err)
	}
	defer closePub()

	blob, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	sender, err := email.NewSender(cfg.Email, cfg.SMTP, logger)
	if err != nil {
		return err
	}

	archiver := receipts.NewArchiver(blob.Storage)
	archiver.SetLogger(logger)
	tracker := tracking.New(st.attempts, publisher)
	tracker.SetLogger(logger)
	tracker.SetReceipts(archiver)
	tracker.SetNotifier(email.NewNotifier(sender))

	backend := apiclient.New(cfg.APIBaseURL, cfg.HTTPTimeout)
	processor := apiclient.New(cfg.Processor.BaseURL, cfg.HTTPTimeout)
	gateway := payments.NewClient(backend, processor, cfg.Processor.PublicKey)

	bridge := authbridge.New(authbridge.EventLauncher{Publisher: publisher, Logger: logger}, cfg.Processor.RedirectTimeout)
	bridge.SetLogger(logger)

	sessions := grace.NewRegistry(ctx, 0)
	sessions.SetLogger(logger)

	factory := &grace.Factory{
		Carts:     st.carts,
		Orders:    orders.NewClient(backend),
		Payments:  gateway,
		Bridge:    bridge,
		ReturnURL: payments.ReturnURLBuilder(cfg.APIBaseURL),
		Logger:    logger,
		Hooks:     tracker.Hooks(),
	}

	webhookSvc := payments.NewWebhookService(st.attempts, publisher)
	webhookSvc.SetLogger(logger)

	if !strings.EqualFold(cfg.Env, "dev") && os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := apphttp.NewRouter(apphttp.Deps{
		Logger:   logger,
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Cart:     handlers.NewCartHandler(st.carts),
		Checkout: handlers.NewCheckoutHandler(st.carts, sessions, factory, bridge),
		Payments: handlers.NewPaymentsHandler(payments.NewReconciler(gateway, cfg.Processor.PollInterval, cfg.Processor.PollTimeout), st.attempts),
		Return:   handlers.NewPaymentReturnHandler(sessions, bridge, cfg.DeepLinkBase, logger),
		Webhooks: handlers.NewWebhookHandler(logger, cfg.Processor.WebhookSecret, webhookSvc),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr, "db", cfg.DB.Driver, "storage", blob.Driver, "email", cfg.Email.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sessions.RunSweeper(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// running sessions see the base context end and settle before exit
		sessions.Wait()
		return err
	})

	return g.Wait()
}
