package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	sbhttp "github.com/arbiterhq/Switchboard/internal/adapter/http"
	"github.com/arbiterhq/Switchboard/internal/adapter/mcp"
	sbnats "github.com/arbiterhq/Switchboard/internal/adapter/nats"
	"github.com/arbiterhq/Switchboard/internal/adapter/natskv"
	"github.com/arbiterhq/Switchboard/internal/adapter/otel"
	"github.com/arbiterhq/Switchboard/internal/adapter/postgres"
	"github.com/arbiterhq/Switchboard/internal/adapter/repusvc"
	"github.com/arbiterhq/Switchboard/internal/adapter/ristretto"
	"github.com/arbiterhq/Switchboard/internal/adapter/tiered"
	"github.com/arbiterhq/Switchboard/internal/adapter/ws"
	"github.com/arbiterhq/Switchboard/internal/config"
	"github.com/arbiterhq/Switchboard/internal/ledger"
	"github.com/arbiterhq/Switchboard/internal/logger"
	"github.com/arbiterhq/Switchboard/internal/mailbox"
	"github.com/arbiterhq/Switchboard/internal/middleware"
	"github.com/arbiterhq/Switchboard/internal/port/notifier"
	"github.com/arbiterhq/Switchboard/internal/protocol"
	"github.com/arbiterhq/Switchboard/internal/resilience"
	"github.com/arbiterhq/Switchboard/internal/service"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}

	cfg, source, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"source", source,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"stream", cfg.NATS.Stream,
	)

	ctx := context.Background()

	// --- Telemetry ---

	otelShutdown, err := otel.Setup(ctx, cfg.Logging.Service, cfg.OTel)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	// --- Infrastructure ---

	// PostgreSQL: agent directory of record.
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS JetStream: lifecycle events, L2 cache, idempotency store.
	stream, err := sbnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = stream.Close() }()

	// --- Directory cache (L1 in-process, L2 shared via NATS KV) ---

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB * 1 << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()

	l2kv, err := stream.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		return fmt.Errorf("l2 cache bucket: %w", err)
	}
	dirCache := tiered.New(l1, natskv.New(l2kv), cfg.Directory.CacheTTL)

	// --- Services ---

	store := postgres.NewStore(pool)
	boxes := mailbox.NewStore(cfg.Bus.MaxMailboxSize)
	tasks := ledger.NewLedger()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metric instruments: %w", err)
	}

	bus := service.NewBusService(boxes, store)
	bus.SetMetrics(metrics)
	delegation := service.NewDelegationService(tasks, bus)
	delegation.SetMetrics(metrics)
	discovery := service.NewDiscoveryService(store)
	discovery.SetCache(dirCache, cfg.Directory.CacheTTL)
	registrar := service.NewRegistrarService(store)
	registrar.SetDiscovery(discovery)
	registrar.SetStream(stream)

	var rep *repusvc.Client
	if cfg.Reputation.URL != "" {
		rep = repusvc.NewClient(cfg.Reputation.URL, cfg.Reputation.Timeout)
		rep.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		delegation.SetReputation(rep)
		discovery.SetReputation(rep)
		slog.Info("reputation service enabled", "url", cfg.Reputation.URL)
	}

	hub := ws.NewHub()
	notifiers := []notifier.Notifier{
		ws.NewNotifier(hub),
		sbnats.NewNotifier(stream.Conn()),
	}
	for name, settings := range cfg.Notify {
		n, err := notifier.New(name, settings)
		if err != nil {
			return fmt.Errorf("notifier %s: %w", name, err)
		}
		notifiers = append(notifiers, n)
		slog.Info("notifier enabled", "provider", name)
	}
	notifications := service.NewNotificationService(notifiers, cfg.Bus.NotifyConcurrency, cfg.Bus.NotifyTimeout)
	bus.SetNotificationService(notifications)
	bus.SetStream(stream)
	delegation.SetStream(stream)

	if cfg.Bus.CompactionInterval > 0 {
		bus.StartCompaction(ctx, cfg.Bus.CompactionInterval)
	}

	dispatcher := protocol.NewDispatcher(bus, discovery)
	dispatcher.SetMetrics(metrics)

	// --- HTTP ---

	idemKV, err := stream.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}

	handlers := &sbhttp.Handlers{
		Bus:       bus,
		Tasks:     delegation,
		Discovery: discovery,
		Registrar: registrar,
	}
	rpcHandler := &sbhttp.RPCHandler{Dispatcher: dispatcher}

	r := chi.NewRouter()
	r.Use(sbhttp.SecurityHeaders)
	r.Use(sbhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(sbhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))

	// Long-lived: the WebSocket endpoint must not sit behind the request
	// timeout, and health stays probe-cheap.
	r.Get("/health", healthHandler(pool, stream, rep))
	r.Get("/ws", hub.HandleWS)

	r.Group(func(api chi.Router) {
		api.Use(chimw.Timeout(30 * time.Second))
		api.Use(middleware.Idempotency(idemKV))
		sbhttp.MountRoutes(api, handlers, rpcHandler)
	})

	// --- MCP ---

	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(
			mcp.ServerConfig{Addr: cfg.MCP.Addr, Name: "switchboard", Version: version},
			mcp.ServerDeps{
				Mailer:      bus,
				TaskReader:  delegation,
				Finder:      discovery,
				AgentLister: registrar,
			},
		)
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mcpSrv.Stop(stopCtx); err != nil {
				slog.Error("mcp shutdown", "error", err)
			}
		}()
		slog.Info("mcp server started", "addr", cfg.MCP.Addr)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-done:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	if err := stream.Drain(); err != nil {
		slog.Error("nats drain", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// healthHandler reports the liveness of the core and its collaborators.
// A nil reputation client reports as disabled, not down.
func healthHandler(pool *pgxpool.Pool, stream *sbnats.Stream, rep *repusvc.Client) http.HandlerFunc {
	type healthStatus struct {
		Status     string `json:"status"`
		Version    string `json:"version"`
		Postgres   string `json:"postgres"`
		NATS       string `json:"nats"`
		Reputation string `json:"reputation"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status: "ok", Version: version,
			Postgres: "up", NATS: "up", Reputation: "disabled",
		}

		if err := pool.Ping(r.Context()); err != nil {
			status.Status = "degraded"
			status.Postgres = "down"
		}
		if !stream.IsConnected() {
			status.Status = "degraded"
			status.NATS = "down"
		}
		if rep != nil {
			status.Reputation = "up"
			if ok, _ := rep.Health(r.Context()); !ok {
				status.Status = "degraded"
				status.Reputation = "down"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}
