// Support desk chat server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/ashureev/supportdesk/internal/agent"
	"github.com/ashureev/supportdesk/internal/api"
	"github.com/ashureev/supportdesk/internal/chat"
	"github.com/ashureev/supportdesk/internal/config"
	"github.com/ashureev/supportdesk/internal/health"
	"github.com/ashureev/supportdesk/internal/identity"
	"github.com/ashureev/supportdesk/internal/intent"
	"github.com/ashureev/supportdesk/internal/llm"
	"github.com/ashureev/supportdesk/internal/metrics"
	"github.com/ashureev/supportdesk/internal/middleware"
	"github.com/ashureev/supportdesk/internal/session"
	"github.com/ashureev/supportdesk/internal/store"
	"github.com/ashureev/supportdesk/internal/workflow"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "db_driver", cfg.DB.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ticket store is optional; the chat keeps working without it.
	var (
		repo    store.Repository
		tickets workflow.TicketStore
		history agent.HistoryStore
		checker store.ExistenceChecker
		pinger  health.Pinger
	)
	if cfg.StoreEnabled() {
		sqlStore, err := store.Open(ctx, cfg.DB.Driver, cfg.DB.Path, cfg.DB.DatabaseURL)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := sqlStore.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()

		if err := sqlStore.Ping(ctx); err != nil {
			slog.Error("Database health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Database connected")
		repo, tickets, history, checker, pinger = sqlStore, sqlStore, sqlStore, sqlStore, sqlStore
	} else {
		slog.Info("Ticket persistence disabled (DB_DRIVER=none)")
	}

	gen := llm.NewClient(llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		MaxConcurrency: cfg.LLM.MaxConcurrency,
	}, logger)
	slog.Info("Generation client initialized", "base_url", cfg.LLM.BaseURL, "model", gen.Model())

	// Initialize services.
	hub := chat.NewHub()
	sessions := session.NewRegistry(session.Config{
		MaxSessions: cfg.Session.MaxSessions,
		IdleTTL:     cfg.Session.IdleTTL,
		OnEvict: func(clientID string) {
			hub.Close(clientID, "session expired")
		},
	}, checker)

	wf := workflow.New(workflow.Deps{
		Classifier: intent.NewClassifier(gen, logger),
		Responder:  intent.NewResponder(gen, logger),
		Stages: workflow.Stages{
			Summary:         agent.NewSummarizer(gen, logger),
			Actions:         agent.NewActionExtractor(gen, logger),
			Recommendations: agent.NewRecommender(gen, history, logger),
			Routing:         agent.NewRouter(gen, logger),
			TimeEstimate:    agent.NewTimeEstimator(gen, history, logger),
		},
		Tickets: tickets,
		Logger:  logger,
	}, workflow.Options{
		PersistTimeout:     cfg.PersistTimeout,
		IncrementalSummary: cfg.IncrementalSummary,
	})

	origins := middleware.SplitOrigins(cfg.AllowedOrigin)

	// Initialize handlers.
	wsHandler := chat.NewWebSocketHandler(sessions, wf, hub, chat.Config{
		AllowedOrigins: origins,
		IsDev:          cfg.IsDevelopment(),
		MessageRate:    cfg.MessageRatePerSec,
		MessageBurst:   cfg.MessageRateBurst,
	})
	apiHandler := api.NewHandler(repo, sessions, agent.NewEvaluator(gen, logger), hub)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(origins))

	apiHandler.RegisterRoutes(r)
	r.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint.
	r.With(identity.Middleware).Get("/ws/{clientID}", wsHandler.ServeHTTP)

	// WriteTimeout stays 0 so long-lived channels are not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	session.StartEvictionWorker(ctx, sessions)

	healthSrv := health.NewServer(pinger, 0, logger)
	grpcServer := grpc.NewServer()
	healthSrv.Register(grpcServer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			return err
		}
		slog.Info("gRPC health service listening", "addr", lis.Addr().String())
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		healthSrv.Run(gctx)
		return nil
	})

	// Wait for shutdown signal or a listener failure.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		grpcServer.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
