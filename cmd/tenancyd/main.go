package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/cache"
	"github.com/rentfold/tenancy/src/config"
	httptransport "github.com/rentfold/tenancy/src/http"
	"github.com/rentfold/tenancy/src/http/handler"
	"github.com/rentfold/tenancy/src/processor"
	"github.com/rentfold/tenancy/src/services"
)

func main() {
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newDB,
			newRedis,
			cache.NewEventDeduper,
			newProcessor,
			newNotifier,
			newIdentityDirectory,
			newPaymentService,
			services.NewApplicationReviewService,
			services.NewOnboardingService,
			services.NewOffboardingService,
			handler.NewApplicationHandler,
			handler.NewOnboardingHandler,
			handler.NewPaymentHandler,
			handler.NewOffboardingHandler,
			httptransport.NewRouter,
			httptransport.NewServer,
		),
		fx.Invoke(startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newDB(lc fx.Lifecycle, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}

func newRedis(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func newProcessor(cfg config.Config, log *zap.Logger) services.PaymentProcessor {
	return processor.New(cfg.ProcessorBaseURL, cfg.ProcessorAPIKey, log)
}

func newPaymentService(db *sql.DB, proc services.PaymentProcessor, cfg config.Config, log *zap.Logger) *services.PaymentService {
	svc := services.NewPaymentService(db, proc, log)
	svc.SetProvisioningTimeout(cfg.ProvisioningTimeout)
	return svc
}

func newNotifier(log *zap.Logger) services.Notifier {
	return services.NewLogNotifier(log)
}

func newIdentityDirectory(log *zap.Logger) services.IdentityDirectory {
	return services.NewLogIdentityDirectory(log)
}

func startHTTPServer(lc fx.Lifecycle, srv *httptransport.Server, cfg config.Config, log *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					log.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			log.Info("listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
