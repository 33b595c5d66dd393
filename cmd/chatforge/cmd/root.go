package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/entrepeneur4lyf/chatforge/internal/config"
	"github.com/entrepeneur4lyf/chatforge/internal/ingest"
	"github.com/entrepeneur4lyf/chatforge/internal/ingest/extract"
	"github.com/entrepeneur4lyf/chatforge/internal/llm"
	"github.com/entrepeneur4lyf/chatforge/internal/llm/providers"
	"github.com/entrepeneur4lyf/chatforge/internal/orchestrator"
	"github.com/entrepeneur4lyf/chatforge/internal/session"
	"github.com/entrepeneur4lyf/chatforge/internal/transport/telegram"
	"github.com/entrepeneur4lyf/chatforge/internal/workers"
)

var (
	debug      bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "chatforge",
	Short: "Telegram AI assistant with multi-model fallback",
	Long: `ChatForge is a Telegram bot that answers questions, analyzes documents
(PDF, DOCX, TXT), and describes images, talking to OpenRouter models with
automatic fallback across a fixed candidate chain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
}

func run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "chatforge",
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}

	// Configuration problems are fatal here; nothing degrades.
	cfg, err := config.Load(configFile, debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := session.NewStore(
		cfg.Limits.MaxChatHistory,
		cfg.Limits.ContextTokens,
		cfg.Limits.TokenReserve,
		cfg.Limits.EstimatorDivisor,
	)

	handler := providers.NewOpenRouterHandler(llm.ApiHandlerOptions{
		APIKey:           cfg.OpenRouterAPIKey,
		HTTPReferer:      cfg.RefererURL,
		XTitle:           cfg.TitleName,
		RequestTimeoutMs: int(cfg.RequestTimeout / time.Millisecond),
	})

	orch := orchestrator.New(handler, store, logger.With("component", "orchestrator"))

	ocr := extract.DetectOCR()
	if ocr.Available() {
		logger.Info("local OCR available")
	} else {
		logger.Warn("tesseract not found, image analysis will rely on vision models only")
	}

	pipeline, err := ingest.NewPipeline(
		ingest.Options{
			StagingDir:       cfg.DownloadsDir,
			MaxFileSize:      cfg.MaxFileSizeBytes(),
			MaxPDFPages:      cfg.Limits.MaxPDFPages,
			MaxTextLength:    cfg.Limits.MaxTextLength,
			DownloadTimeout:  cfg.DownloadTimeout,
			StagingRetention: cfg.StagingRetention,
		},
		ingest.NewExtractCache(cfg.Limits.CacheEntries),
		workers.NewPool(int64(cfg.Limits.WorkerPoolSize)),
		ocr,
		orch,
		logger.With("component", "ingest"),
	)
	if err != nil {
		return err
	}

	pipeline.Purge()
	purgeDone := startPurgeLoop(ctx, pipeline, cfg.StagingRetention)

	bot, err := telegram.New(cfg, store, orch, pipeline, logger.With("component", "telegram"))
	if err != nil {
		return err
	}

	err = bot.Run(ctx)
	<-purgeDone
	pipeline.Purge()

	if err == context.Canceled {
		logger.Info("shut down cleanly")
		return nil
	}
	return err
}

// startPurgeLoop removes stale staged downloads on an interval tied to the
// retention window.
func startPurgeLoop(ctx context.Context, pipeline *ingest.Pipeline, retention time.Duration) <-chan struct{} {
	done := make(chan struct{})
	interval := retention / 2
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pipeline.Purge()
			}
		}
	}()
	return done
}
