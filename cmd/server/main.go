package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docvar/internal/api"
	"docvar/internal/config"
	"docvar/internal/deliver"
	"docvar/internal/embed"
	"docvar/internal/extract"
	"docvar/internal/job"
	"docvar/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := job.NewStore(cfg.JobsDir())
	if err != nil {
		log.Error("job store init failed", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.UploadsDir(), 0o755); err != nil {
		log.Error("uploads dir init failed", "error", err)
		os.Exit(1)
	}

	// Initialize clients.
	embedClient := embed.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	indexer, err := embed.NewIndexBuilder(embedClient, cfg.CacheDir(), log)
	if err != nil {
		log.Error("index builder init failed", "error", err)
		os.Exit(1)
	}
	llm := extract.NewClient(cfg.OpenAIAPIKey, cfg.ChatModel)

	var sender deliver.Sender
	if cfg.SendGridAPIKey != "" {
		sender = deliver.NewSendGridSender(cfg.SendGridAPIKey, cfg.FromEmail)
	} else {
		log.Warn("SENDGRID_API_KEY unset, results are kept on disk only")
		sender = deliver.NopSender{}
	}
	dispatcher := deliver.NewDispatcher(sender, log)

	// Initialize pipeline.
	worker := pipeline.NewWorker(store, indexer, llm, dispatcher, cfg.HeartbeatInterval, log)
	runner := pipeline.NewRunner(store, worker, cfg.MaxConcurrentJobs, cfg.JobMaxAge, log)
	runner.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(store, runner, llm, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		runner.Stop()
	}()

	log.Info("starting docvar", "port", cfg.Port, "model", cfg.ChatModel)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
