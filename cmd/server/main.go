package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"qochi/internal/documents"
	"qochi/internal/documents/blob"
	jwttoken "qochi/internal/jwt_token"
	"qochi/internal/platform/config"
	"qochi/internal/platform/httpserver"
	"qochi/internal/platform/logger"
	platformmetrics "qochi/internal/platform/metrics"
	"qochi/internal/platform/postgres"
	platformredis "qochi/internal/platform/redis"
	"qochi/internal/registry/handler"
	registrymetrics "qochi/internal/registry/metrics"
	"qochi/internal/registry/projection"
	"qochi/internal/registry/service"
	memorystore "qochi/internal/registry/store/memory"
	pgstore "qochi/internal/registry/store/postgres"
	audit "qochi/pkg/platform/audit"
	auditkafka "qochi/pkg/platform/audit/kafka"
	"qochi/pkg/platform/audit/publisher"
	auditmemory "qochi/pkg/platform/audit/store/memory"
	auditpg "qochi/pkg/platform/audit/store/postgres"
	"qochi/pkg/platform/audit/worker"
	"qochi/pkg/platform/middleware/metadata"
	request "qochi/pkg/platform/middleware/request"
	"qochi/pkg/platform/middleware/requesttime"
)

const shutdownTimeout = 10 * time.Second

// backend is the record store as main sees it.
type backend interface {
	service.Backend
	Ping(ctx context.Context) error
}

// main wires the registry, exposes the HTTP router and keeps background
// workers on one errgroup so a failure in any of them stops the process.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	policy, err := config.LoadExpiryPolicy(cfg.ExpiryPolicyFile)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		store   backend
		db      *sql.DB
		checks  = map[string]httpserver.Check{}
		cleanup []func()
	)
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	if cfg.Database.URL != "" {
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db, log); err != nil {
			return err
		}
		store = pgstore.New(db)
		log.Info("using postgres record store")
	} else {
		store = memorystore.New()
		log.Warn("QOCHI_DATABASE_URL not set, records are kept in memory")
	}
	checks["store"] = store.Ping

	// Audit: postgres outbox relayed by a worker, or memory mirrored to the
	// sink directly.
	var (
		auditStore audit.Store
		sink       *auditkafka.Sink
		relay      *worker.Worker
	)
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err = auditkafka.NewSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, sink.Close)
		if err := sink.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		checks["kafka"] = sink.Ping
	}
	var publisherOpts []publisher.Option
	if db != nil {
		outbox := auditpg.New(db)
		auditStore = outbox
		if sink != nil {
			relay = worker.NewWorker(outbox, sink, worker.WithLogger(log))
		}
	} else {
		auditStore = auditmemory.NewInMemoryStore()
		if sink != nil {
			publisherOpts = append(publisherOpts, publisher.WithSink(sink))
		}
	}
	auditPublisher := publisher.NewPublisher(auditStore,
		append(publisherOpts, publisher.WithAsyncBuffer(1024), publisher.WithLogger(log))...)
	cleanup = append(cleanup, auditPublisher.Close)

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(registrymetrics.New(reg)),
		service.WithExpiryPolicy(policy),
		service.WithRegistryID(cfg.RegistryID),
	}
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		cleanup = append(cleanup, func() { _ = redisClient.Close() })
		svcOpts = append(svcOpts, service.WithLocker(platformredis.NewLocker(redisClient, cfg.RegistryID,
			platformredis.WithLockTTL(cfg.Redis.LockTTL),
			platformredis.WithLockLogger(log),
		)))
		checks["redis"] = redisClient.Health
		log.Info("using redis locker")
	}
	svc := service.New(store, store, svcOpts...)

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	docs := documents.New(blobs,
		documents.WithLogger(log),
		documents.WithAuditPublisher(auditPublisher),
		documents.WithMaxBytes(cfg.Blob.MaxBytes),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "qochi", cfg.RegistryID)
	if cfg.AdminToken == "" {
		log.Warn("QOCHI_ADMIN_TOKEN not set, admin routes are disabled")
	}

	h := handler.New(svc, projection.New(store), docs, jwttoken.NewVerifier(jwtService), cfg.AdminToken, log,
		handler.WithAuditPublisher(auditPublisher),
		handler.WithAuditLog(auditPublisher),
		handler.WithTimeout(cfg.HTTP.RequestTimeout),
		handler.WithMaxDocumentBytes(cfg.Blob.MaxBytes),
	)

	httpMetrics := platformmetrics.New(reg)
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Logger(log))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(httpMetrics.Middleware)
	r.Method(http.MethodGet, "/metrics", platformmetrics.Handler(reg))
	r.Method(http.MethodGet, "/healthz", httpserver.Health(checks))
	h.Register(r)

	srv := httpserver.New(cfg.Addr, r, cfg.HTTP)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting qochi registry", "addr", cfg.Addr, "registry_id", cfg.RegistryID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCancel(service.NewExpirySweeper(svc, cfg.SweepInterval, log).Run(gctx))
	})
	if relay != nil {
		g.Go(func() error { return ignoreCancel(relay.Run(gctx)) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
