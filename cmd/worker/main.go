package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"docvar/internal/config"
	"docvar/internal/deliver"
	"docvar/internal/embed"
	"docvar/internal/extract"
	"docvar/internal/job"
	"docvar/internal/pipeline"
)

// Runs one staged job to completion and exits. Useful for reprocessing a
// job directory by hand and for supervisors that want one process per job.
func main() {
	jobDir := flag.String("job", "", "job directory containing request.json")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if *jobDir == "" {
		log.Error("-job directory is required")
		os.Exit(1)
	}

	cfg := config.Load()
	if cfg.OpenAIAPIKey == "" {
		log.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	req, err := pipeline.ReadRequest(*jobDir)
	if err != nil {
		log.Error("invalid job directory", "dir", *jobDir, "error", err)
		os.Exit(1)
	}
	log = log.With("job_id", req.JobID)

	store, err := job.NewStore(cfg.JobsDir())
	if err != nil {
		log.Error("job store init failed", "error", err)
		os.Exit(1)
	}
	if err := store.Restore(req.JobID, req.Email); err != nil {
		log.Error("job record init failed", "error", err)
		os.Exit(1)
	}

	embedClient := embed.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	indexer, err := embed.NewIndexBuilder(embedClient, cfg.CacheDir(), log)
	if err != nil {
		log.Error("index builder init failed", "error", err)
		os.Exit(1)
	}
	llm := extract.NewClient(cfg.OpenAIAPIKey, cfg.ChatModel)

	var sender deliver.Sender = deliver.NopSender{}
	if cfg.SendGridAPIKey != "" {
		sender = deliver.NewSendGridSender(cfg.SendGridAPIKey, cfg.FromEmail)
	}
	dispatcher := deliver.NewDispatcher(sender, log)

	worker := pipeline.NewWorker(store, indexer, llm, dispatcher, cfg.HeartbeatInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("signal received, stopping")
		_ = store.RequestCancel(req.JobID)
		cancel()
	}()

	if err := worker.Run(ctx, req, *jobDir); err != nil {
		log.Error("job failed", "error", err)
		os.Exit(1)
	}
	log.Info("job finished")
}
