/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the booking engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, BOOKING_* environment, flags)
  2. Build logger and tracer
  3. Open the store (sqlite, postgres or memory)
  4. Load the refund/payout policy
  5. Wire notifiers, service, expiry sweeper and HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -addr    HTTP listen address (BOOKING_HTTP_ADDR, default :8080)
  -db      Store: "memory", a SQLite path, or a postgres:// URL
  -seed    Load a demo scenario at startup and log demo tokens

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the expiry sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Drain queued notifications
  5. Close the store and flush traces

EXAMPLES:
  BOOKING_JWT_SECRET=dev ./server -db=":memory:" -seed=pending-request
  BOOKING_JWT_SECRET=dev ./server -db="postgres://localhost/booking"
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/api"
	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/config"
	"github.com/warp/booking-engine/factory"
	"github.com/warp/booking-engine/generic"
	"github.com/warp/booking-engine/notify"
	"github.com/warp/booking-engine/obs"
	"github.com/warp/booking-engine/store/memory"
	"github.com/warp/booking-engine/store/postgres"
	"github.com/warp/booking-engine/store/sqlite"
)

const serviceName = "booking-engine"

var version = "dev"

func main() {
	// Flags
	addr := flag.String("addr", "", "HTTP listen address")
	db := flag.String("db", "", `store: "memory", a SQLite path, or a postgres:// URL`)
	seed := flag.String("seed", "", "demo scenario to load at startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(&cfg, *addr, *db)

	logger, err := obs.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, *seed, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// applyFlags lets command-line flags override the environment.
func applyFlags(cfg *config.App, addr, db string) {
	if addr != "" {
		cfg.HTTPAddr = addr
	}
	switch {
	case db == "":
	case db == "memory":
		cfg.DBDriver = "memory"
	case strings.HasPrefix(db, "postgres://"), strings.HasPrefix(db, "postgresql://"):
		cfg.DBDriver = "postgres"
		cfg.DatabaseURL = db
	default:
		cfg.DBDriver = "sqlite"
		cfg.SQLitePath = db
	}
}

func run(cfg config.App, seed string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, version, cfg.Env, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("store opened", zap.String("driver", cfg.DBDriver))

	policy, err := factory.NewPolicyFactory().LoadFile(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	service := booking.NewService(store,
		booking.WithPolicy(policy),
		booking.WithNotifier(notifier),
		booking.WithLogger(logger.Named("booking")),
	)

	if seed != "" {
		if err := seedDemo(ctx, service, seed, cfg.JWTSecret, logger); err != nil {
			return err
		}
	}

	var sweeper *booking.ExpirySweeper
	if cfg.SweepEnabled {
		sweeper = booking.NewExpirySweeper(service, booking.SweeperConfig{
			Interval:    cfg.SweepInterval,
			PendingTTL:  cfg.PendingTTL,
			Concurrency: cfg.SweepConcurrency,
			Logger:      logger,
		})
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	handler := api.NewHandler(service, sweeper, logger.Named("api"))
	auth := api.NewAuthenticator(cfg.JWTSecret, time.Hour)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(handler, auth, api.RouterConfig{}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.App) (booking.TxStore, func(), error) {
	switch cfg.DBDriver {
	case "memory":
		return memory.New(), func() {}, nil
	case "postgres":
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	}
}

// buildNotifier fans events out to the log and every configured sink.
// Remote sinks sit behind an async queue.
func buildNotifier(cfg config.App, logger *zap.Logger) (booking.Notifier, func(), error) {
	sinks := notify.Multi{notify.NewLog(logger.Named("events"))}
	var closers []func()

	var remote notify.Multi
	if cfg.AMQPURL != "" {
		p, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		remote = append(remote, p)
		closers = append(closers, func() { _ = p.Close() })
		logger.Info("publishing events to rabbitmq", zap.String("exchange", cfg.AMQPExchange))
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, nil, err
		}
		remote = append(remote, tg)
		logger.Info("sending events to telegram", zap.Int64("chat_id", cfg.TelegramChatID))
	}
	if len(remote) > 0 {
		async := notify.NewAsync(remote, cfg.NotifyQueue, logger.Named("notify"))
		sinks = append(sinks, async)
		// Drain before the sinks behind the queue are closed.
		closers = append([]func(){func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := async.Close(ctx); err != nil {
				logger.Warn("notification queue not drained", zap.Error(err))
			}
		}}, closers...)
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

// seedDemo loads a scenario and logs tokens for its users.
func seedDemo(ctx context.Context, service *booking.Service, scenario, secret string, logger *zap.Logger) error {
	res, err := api.Seed(ctx, service, scenario)
	if err != nil && !errors.Is(err, booking.ErrDuplicateBooking) {
		return fmt.Errorf("seed %s: %w", scenario, err)
	}
	if res != nil && res.Booking != nil {
		logger.Info("demo booking", zap.String("booking_id", res.Booking.ID), zap.String("status", res.Booking.Status))
	}

	auth := api.NewAuthenticator(secret, 24*time.Hour)
	for _, u := range []struct {
		id   generic.UserID
		role booking.Role
	}{
		{api.DemoLearnerID, booking.RoleLearner},
		{api.DemoTutorID, booking.RoleTutor},
		{"admin", booking.RoleAdmin},
	} {
		token, err := auth.IssueToken(u.id, u.role)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s (%s): Bearer %s\n", u.id, u.role, token)
	}
	return nil
}
