package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"qsync/internal/events"
	"qsync/internal/events/bridge"
	indicatorhandler "qsync/internal/indicator/handler"
	indicatorservice "qsync/internal/indicator/service"
	jwttoken "qsync/internal/jwt_token"
	"qsync/internal/platform/config"
	"qsync/internal/platform/httpserver"
	"qsync/internal/platform/logger"
	"qsync/internal/platform/metrics"
	"qsync/internal/platform/middleware"
	"qsync/internal/platform/redis"
	"qsync/internal/push"
	riskhandler "qsync/internal/risk/handler"
	riskservice "qsync/internal/risk/service"
	"qsync/pkg/platform/audit/publisher"
	"qsync/pkg/platform/httputil"
	"qsync/pkg/platform/middleware/requesttime"
)

const (
	requestTimeout = 30 * time.Second
	tokenIssuer    = "qsync"
	tokenAudience  = "qsync-api"
)

// main wires dependencies and owns the process lifecycle. Business logic lives
// in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := metrics.New()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	bus := events.New(
		events.WithLogger(log),
		events.WithMetrics(events.NewMetrics(m.Registry())),
	)

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	auditPublisher := publisher.NewPublisher(st.audit, publisher.WithErrorHandler(func(err error) {
		log.Error("audit append failed", "error", err)
	}))
	defer auditPublisher.Close()

	profiles := indicatorservice.NewProfileService(st.profiles, st.submissions,
		indicatorservice.WithLogger(log),
		indicatorservice.WithMetrics(m),
		indicatorservice.WithTxRunner(st.tx),
		indicatorservice.WithEventPublisher(bus),
		indicatorservice.WithAuditPublisher(auditPublisher),
	)
	submissions := indicatorservice.NewSubmissionService(st.profiles, st.submissions,
		indicatorservice.WithLogger(log),
		indicatorservice.WithMetrics(m),
		indicatorservice.WithTxRunner(st.tx),
		indicatorservice.WithEventPublisher(bus),
		indicatorservice.WithAuditPublisher(auditPublisher),
	)
	risks := riskservice.New(st.risks,
		riskservice.WithLogger(log),
		riskservice.WithMetrics(m),
		riskservice.WithTxRunner(st.tx),
		riskservice.WithEventPublisher(bus),
		riskservice.WithAuditPublisher(auditPublisher),
	)

	limiter := push.NewSlidingWindowLimiter(cfg.Push.ConnectLimit, cfg.Push.ConnectWindow)
	pushServer := push.NewServer(bus,
		push.WithLogger(log),
		push.WithMetrics(push.NewMetrics(m.Registry())),
		push.WithBuffer(cfg.Push.Buffer),
		push.WithHeartbeat(cfg.Push.Heartbeat),
		push.WithConnectLimiter(limiter),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, tokenIssuer, tokenAudience)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.LatencyMiddleware(m))
	r.Use(requesttime.Middleware)
	r.Use(middleware.ResolveActor(jwttoken.NewJWTServiceAdapter(jwtService), log))

	r.Get("/healthz", healthHandler(st, rdb))
	r.Handle("/metrics", m.Handler())
	pushServer.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(middleware.ContentTypeJSON)
		indicatorhandler.New(profiles, submissions, log).Register(r)
		riskhandler.New(risks, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting qsync", "addr", cfg.Addr, "storage", st.kind, "bridge", rdb != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down", "open_push_connections", pushServer.ActiveConnections())
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Push.ConnectWindow)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Prune()
			}
		}
	})
	if rdb != nil {
		b := bridge.NewRedisBridge(bus, rdb.Client, cfg.Bridge.Channel, log)
		g.Go(func() error {
			if err := b.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("event bridge: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func healthHandler(st *stores, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{"status": "ok", "storage": st.kind}
		code := http.StatusOK
		if err := st.ping(ctx); err != nil {
			status["status"], status["storage"] = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
		if rdb != nil {
			status["bridge"] = "ok"
			if err := rdb.Health(ctx); err != nil {
				status["status"], status["bridge"] = "degraded", "unreachable"
				code = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, code, status)
	}
}
