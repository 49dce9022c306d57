package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/sms-remarketing/internal/api"
	"github.com/LeventeLantos/sms-remarketing/internal/cache"
	"github.com/LeventeLantos/sms-remarketing/internal/client"
	"github.com/LeventeLantos/sms-remarketing/internal/config"
	"github.com/LeventeLantos/sms-remarketing/internal/credit"
	"github.com/LeventeLantos/sms-remarketing/internal/logger"
	"github.com/LeventeLantos/sms-remarketing/internal/queue"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
	"github.com/LeventeLantos/sms-remarketing/internal/scheduler"
	"github.com/LeventeLantos/sms-remarketing/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	slog.SetDefault(logger.New(cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("sms-remarketing stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("sms-remarketing starting",
		"addr", cfg.Server.Address,
		"provider", cfg.Provider.Kind,
		"schedule", cfg.Scheduler.Spec,
		"redis", cfg.Redis.Enabled,
	)

	pool, err := repo.NewPool(ctx, cfg.Database.PostgresURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		if err := repo.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	clients := repo.NewPostgresClientRepo(pool)
	leads := repo.NewPostgresLeadRepo(pool)
	templates := repo.NewPostgresTemplateRepo(pool)
	triggers := repo.NewPostgresTriggerRepo(pool)
	messages := repo.NewPostgresMessageRepo(pool)
	ledger := credit.NewPostgresLedger(pool)

	sender := service.NewSender(newProvider(cfg.Provider), messages)
	reconciler := service.NewReconciler(messages)

	var (
		delivery service.Deliverer = sender
		worker   *queue.Worker
		marker   cache.SweepMarker
	)

	if rdb := connectRedis(ctx, cfg.Redis); rdb != nil {
		defer rdb.Close()

		rc := cache.NewRedisCache(rdb, cfg.Redis.TTL)
		sender.WithCache(rc)
		reconciler.WithCache(rc)
		marker = rc

		opt := queue.RedisClientOpt(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		qc := asynq.NewClient(opt)
		defer qc.Close()

		delivery = queue.NewAsynqQueue(qc, messages, sender, queue.Options{
			Queue:    cfg.Queue.Name,
			MaxRetry: cfg.Queue.MaxRetry,
			Timeout:  cfg.Queue.Timeout,
		})
		worker = queue.NewWorker(opt, queue.WorkerConfig{
			Queue:       cfg.Queue.Name,
			Concurrency: cfg.Queue.Concurrency,
		}, queue.NewHandler(messages, sender))
	} else {
		slog.Warn("redis unavailable, delivering in the request and sweeping without de-duplication")
	}

	dispatcher := service.NewDispatcher(ledger, messages, delivery, cfg.Message.ContentMax).
		WithRegion(cfg.Message.DefaultRegion)
	matcher := service.NewMatcher(dispatcher, leads, templates, triggers)
	if marker != nil {
		matcher.WithSweepMarker(marker)
	}

	schedule, err := scheduler.ParseSpec(cfg.Scheduler.Spec)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(schedule, func(ctx context.Context) {
		res, err := matcher.RunLeadAgeSweep(ctx, time.Now())
		if err != nil {
			slog.Error("lead_age sweep failed", "error", err)
			return
		}
		slog.Info("lead_age sweep finished",
			"triggers", res.Triggers,
			"dispatched", res.Dispatched,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	})
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	h := api.NewHandler(api.Deps{
		Scheduler:  sched,
		Clients:    clients,
		Ledger:     ledger,
		Messages:   service.NewMessageService(dispatcher, messages, leads, templates),
		Leads:      service.NewLeadService(leads, matcher, cfg.Message.DefaultRegion),
		Triggers:   service.NewTriggerService(templates, triggers),
		Templates:  service.NewTemplateService(templates),
		Matcher:    matcher,
		Reconciler: reconciler,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if worker != nil {
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newProvider(cfg config.ProviderConfig) client.Provider {
	if cfg.Kind == config.ProviderWebhook {
		return client.NewWebhookClient(client.WebhookConfig{
			URL:     cfg.Webhook.URL,
			AuthKey: cfg.Webhook.AuthKey,
			Timeout: cfg.Timeout,
		})
	}
	return client.NewTwilioClient(client.TwilioConfig{
		AccountSID:        cfg.Twilio.AccountSID,
		AuthToken:         cfg.Twilio.AuthToken,
		FromNumber:        cfg.Twilio.FromNumber,
		BaseURL:           cfg.Twilio.BaseURL,
		StatusCallbackURL: cfg.Twilio.StatusCallbackURL,
		Timeout:           cfg.Timeout,
	})
}

// connectRedis returns nil when Redis is disabled or unreachable; the
// service then runs without cache and queue.
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis ping failed", "addr", cfg.Address, "error", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware stamps a request id on the request and response and
// logs one line per request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(logger.WithRequestID(r.Context(), id)))

		logger.FromContext(r.Context()).Info("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
