package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/harborline/be-procurement-requests/internal/client"
	"github.com/harborline/be-procurement-requests/internal/comments"
	"github.com/harborline/be-procurement-requests/internal/config"
	"github.com/harborline/be-procurement-requests/internal/events"
	"github.com/harborline/be-procurement-requests/internal/handler"
	"github.com/harborline/be-procurement-requests/internal/logger"
	"github.com/harborline/be-procurement-requests/internal/metrics"
	"github.com/harborline/be-procurement-requests/internal/middleware"
	"github.com/harborline/be-procurement-requests/internal/notifications"
	"github.com/harborline/be-procurement-requests/internal/pricing"
	"github.com/harborline/be-procurement-requests/internal/repository"
	"github.com/harborline/be-procurement-requests/internal/service"
	"github.com/harborline/be-procurement-requests/internal/workflow"
)

func main() {
	root := &cobra.Command{
		Use:          "be-procurement-requests",
		Short:        "Procurement request approval service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("environment", cfg.Service.Environment).
		Msg("starting procurement requests service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.NewDB(ctx, repository.DBConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	log.Info().Msg("database connection established")

	requestRepo := repository.NewRequestRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	receiptRepo := repository.NewReadReceiptRepository(db)

	// NATS is optional; without it lifecycle events stay in-process.
	var natsClient *client.NATSClient
	if cfg.NATS.URL != "" {
		natsClient, err = client.ConnectNATS(cfg.NATS.URL, cfg.Service.Name)
		if err != nil {
			return fmt.Errorf("connect NATS: %w", err)
		}
		defer natsClient.Close()
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Warn().Msg("NATS_URL not set; notification publishing disabled")
	}

	m := metrics.New()

	dispatcher := events.NewDispatcher()
	tracker := notifications.New(receiptRepo,
		notifications.WithUpdateHook(m.BadgeUpdates.Inc))
	dispatcher.Subscribe(tracker.Apply)
	publisher := client.NewNotificationPublisher(natsClient, log.Logger)
	dispatcher.Subscribe(publisher.HandleEvent)

	pricingEngine := pricing.New(cfg.Pricing.VATRate)
	workflowEngine := workflow.New(pricingEngine)
	ledger := comments.New(commentRepo)

	requestService := service.NewRequestService(
		requestRepo, workflowEngine, ledger, tracker, dispatcher, m, log)

	httpHandler := handler.NewHTTPHandler(requestService, log)
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	httpHandler.Register(mux)

	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("server stopped")
	return nil
}
