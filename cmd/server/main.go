package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mailstead/internal/audit"
	"mailstead/internal/dnscheck"
	"mailstead/internal/domain/handler"
	domainmetrics "mailstead/internal/domain/metrics"
	"mailstead/internal/domain/service"
	"mailstead/internal/domain/store"
	"mailstead/internal/gateway/cloudflare"
	"mailstead/internal/gateway/ses"
	"mailstead/internal/platform/config"
	"mailstead/internal/platform/httpserver"
	"mailstead/internal/platform/kafka"
	"mailstead/internal/platform/logger"
	platformmetrics "mailstead/internal/platform/metrics"
	"mailstead/internal/platform/postgres"
	platformredis "mailstead/internal/platform/redis"
	"mailstead/internal/worker/provision"
	"mailstead/internal/worker/scheduler"
	"mailstead/internal/worker/verify"
	"mailstead/pkg/platform/httputil"
)

// domainStore is the union of the store slices the service and the
// background jobs consume; both store implementations satisfy it.
type domainStore interface {
	service.Store
	provision.Store
	verify.Store
}

// identityGateway is the union of the provider slices across
// provisioning, verification, and deletion.
type identityGateway interface {
	provision.IdentityGateway
	verify.IdentityGateway
	service.IdentityGateway
}

// dnsGateway is the union of the zone management slices.
type dnsGateway interface {
	provision.DNSGateway
	service.DNSGateway
}

// main wires dependencies and owns the process lifecycle. Business
// logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage. Without DATABASE_URL everything lives in memory, which
	// is how dev mode runs.
	var (
		domains    domainStore
		auditStore audit.Store
		db         *sql.DB
	)
	if cfg.DatabaseURL != "" {
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		var err error
		db, err = postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		domains = store.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		log.Info("using postgres storage")
	} else {
		domains = store.NewInMemory()
		auditStore = audit.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, domains will not survive restarts")
	}

	// Verification locks: distributed when Redis is configured, so
	// multiple replicas never double-process a domain.
	var locker verify.Locker = verify.NewMemoryLocker()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = verify.NewRedisLocker(redisClient.Client, verify.WithLockerLogger(log))
		log.Info("using redis verification locks")
	}

	// Audit pipeline: store always, Kafka export when brokers are set.
	publisherOpts := []audit.PublisherOption{
		audit.WithLogger(log),
		audit.WithAsyncBuffer(cfg.AuditBuffer),
	}
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer producer.Close()
		publisherOpts = append(publisherOpts, audit.WithSink(audit.NewKafkaSink(producer)))
		log.Info("audit events exported to kafka", "topic", cfg.KafkaTopic)
	}
	publisher := audit.NewPublisher(auditStore, publisherOpts...)
	defer publisher.Close()

	// Provider gateways fall back to deterministic mocks so the whole
	// lifecycle can run locally.
	var identity identityGateway
	if cfg.AWS.Enabled() {
		identity, err = ses.New(ses.Config{
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			AccountID: cfg.AWS.AccountID,
		})
		if err != nil {
			return fmt.Errorf("create ses gateway: %w", err)
		}
	} else {
		identity = ses.NewMock()
		log.Warn("AWS credentials not set, using mock identity gateway")
	}

	var zone dnsGateway
	if cfg.Cloudflare.Enabled() {
		zone, err = cloudflare.New(cloudflare.Config{
			APIToken: cfg.Cloudflare.APIToken,
			ZoneID:   cfg.Cloudflare.ZoneID,
		})
		if err != nil {
			return fmt.Errorf("create cloudflare gateway: %w", err)
		}
	} else {
		zone = cloudflare.NewMock()
		log.Warn("Cloudflare zone not set, using mock DNS gateway")
	}

	// The system resolver goes first so checks see what this host sees;
	// the pinned public resolvers catch propagation the host has not.
	resolvers := make([]dnscheck.Resolver, 0, len(cfg.DNSResolvers)+1)
	resolvers = append(resolvers, dnscheck.NewSystemResolver())
	for _, addr := range cfg.DNSResolvers {
		resolvers = append(resolvers, dnscheck.NewResolver(addr))
	}
	checker := dnscheck.NewPool(resolvers,
		dnscheck.WithQueryTimeout(cfg.DNSQueryTimeout),
		dnscheck.WithLogger(log),
	)

	lifecycleMetrics := domainmetrics.New()
	httpMetrics := platformmetrics.New()

	provisionJob := provision.NewJob(domains, identity, zone, cfg.ProviderDKIMSuffix,
		provision.WithLogger(log),
		provision.WithAuditPublisher(publisher),
		provision.WithMetrics(lifecycleMetrics),
	)
	verifyJob := verify.NewJob(domains, identity, checker, locker,
		verify.WithLogger(log),
		verify.WithAuditPublisher(publisher),
		verify.WithMetrics(lifecycleMetrics),
		verify.WithTimeoutWindow(cfg.VerifyTimeoutWindow),
	)

	sched := scheduler.New(scheduler.WithLogger(log))
	if err := sched.RunRecurring("verification sweep", cfg.VerifyInterval, verifyJob.Run); err != nil {
		return err
	}

	svc := service.New(domains, identity, zone, checker, provisionJob, verifyJob, sched,
		service.WithLogger(log),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(lifecycleMetrics),
	)

	h := handler.New(svc, log, httpMetrics)
	router := chi.NewRouter()
	router.Get("/healthz", healthz(db, redisClient, producer))
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	h.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("scheduler shutdown failed", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// healthz reports liveness plus reachability of the configured
// backends. Unconfigured backends are omitted rather than failed.
func healthz(db *sql.DB, redisClient *platformredis.Client, producer *kafka.Producer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		if db != nil {
			checks["postgres"] = "ok"
			if err := db.PingContext(ctx); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			}
		}
		if redisClient != nil {
			checks["redis"] = "ok"
			if err := redisClient.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}
		if producer != nil {
			checks["kafka"] = "ok"
			if err := producer.Ping(ctx); err != nil {
				checks["kafka"] = err.Error()
				healthy = false
			}
		}

		status := http.StatusOK
		body := map[string]any{"status": "ok", "checks": checks}
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, body)
	}
}
