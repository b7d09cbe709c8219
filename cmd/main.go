package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Drivers
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	// Instrumentation
	"github.com/exaring/otelpgx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	// Interne
	"github.com/Shelq27/NMedia-DZ2/config"
	"github.com/Shelq27/NMedia-DZ2/internal/adapters/primary/events"
	grpc_adapter "github.com/Shelq27/NMedia-DZ2/internal/adapters/primary/grpc"
	http_adapter "github.com/Shelq27/NMedia-DZ2/internal/adapters/primary/http"
	"github.com/Shelq27/NMedia-DZ2/internal/adapters/secondary/eventbroker"
	"github.com/Shelq27/NMedia-DZ2/internal/adapters/secondary/repository"
	"github.com/Shelq27/NMedia-DZ2/internal/auth"
	"github.com/Shelq27/NMedia-DZ2/internal/core/services"
)

func main() {
	// 1. Config & Logger
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	initLogger(cfg)
	slog.Info("🚀 Starting Feed View Service", "env", cfg.Env, "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Télémétrie (Tracing)
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 3. Infrastructure: Postgres (source des posts)
	dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		slog.Error("Unable to parse DB config", "error", err)
		os.Exit(1)
	}
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Connected to Postgres")

	postRepo := repository.NewPostgresRepo(dbPool)
	if err := postRepo.EnsureSchema(ctx); err != nil {
		slog.Warn("Schema init failed (might be fine if already exists)", "error", err)
	}

	// 4. Infrastructure: Redis (snapshot affiché)
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		panic(err)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("Unable to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("✅ Connected to Redis")

	snapshotRepo := repository.NewRedisSnapshotRepo(rdb, cfg.SnapshotTTL)

	// 5. Infrastructure: NATS (events entrants + actions sortantes)
	nc, err := nats.Connect(cfg.NatsUrl)
	if err != nil {
		slog.Error("Unable to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	publisher, err := eventbroker.NewNatsPublisher(ctx, nc)
	if err != nil {
		slog.Error("Failed to init JetStream publisher", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Connected to NATS")

	// 6. Sécurité : clé publique du service d'identité
	pubKey, err := os.ReadFile(cfg.RSAPublicKeyPath)
	if err != nil {
		slog.Error("Failed to read RSA public key", "path", cfg.RSAPublicKeyPath, "error", err)
		os.Exit(1)
	}
	verifier, err := auth.NewVerifier(pubKey, cfg.TokenIssuer)
	if err != nil {
		slog.Error("Failed to init token verifier", "error", err)
		os.Exit(1)
	}

	// 7. Initialisation du Core
	feedService := services.NewFeedService(postRepo, snapshotRepo, publisher, cfg.PageSize)

	dispatcher := services.NewDispatcher(feedService, cfg.Workers, cfg.QueueSize)
	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(dispatcherDone)
	}()
	slog.Info("⚙️ Action workers started", "workers", cfg.Workers)

	// 8. Consumer NATS (Driving Adapter - Async)
	handler := events.NewEventHandler(feedService)
	if _, err := handler.Subscribe(nc); err != nil {
		slog.Error("Failed to subscribe to NATS", "error", err)
		os.Exit(1)
	}
	slog.Info("👂 Listening for events (NATS)", "subject", events.SubjectPostCreated)

	// 9. Serveur gRPC (Health Check + Reflection)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	health := grpc_adapter.NewHealthReporter()
	health.Register(grpcServer)
	healthToken := health.Observe(feedService)
	defer feedService.Unsubscribe(healthToken)
	if cfg.Env != "prod" {
		reflection.Register(grpcServer)
	}

	go func() {
		slog.Info("📡 gRPC health listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC server error", "error", err)
			os.Exit(1)
		}
	}()

	// 10. Serveur HTTP (Driving Adapter - Sync)
	api := http_adapter.NewServer(feedService, dispatcher)

	var h http.Handler = api.Routes()
	h = auth.Middleware(verifier)(h)
	h = cors.New(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "baggage", "traceparent"},
		AllowCredentials: true,
	}).Handler(h)
	h = otelhttp.NewHandler(h, "feed-view-http", otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	mux := http.NewServeMux()
	mux.Handle("/", h)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	srvHTTP := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("📡 Feed API listening", "port", cfg.HTTPPort)
		if err := srvHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("🛑 Shutting down server...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Les flux SSE sont coupés par l'annulation du contexte racine
	cancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	health.Shutdown()
	grpcServer.GracefulStop()
	<-dispatcherDone

	slog.Info("👋 Server exited")
}

// --- Helpers ---

func initLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Env == "local" {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
