package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studydesk/studydesk/internal/api"
	"github.com/studydesk/studydesk/internal/chunker"
	"github.com/studydesk/studydesk/internal/cleanup"
	"github.com/studydesk/studydesk/internal/config"
	"github.com/studydesk/studydesk/internal/domain"
	"github.com/studydesk/studydesk/internal/extract"
	"github.com/studydesk/studydesk/internal/pipeline"
	"github.com/studydesk/studydesk/internal/retrieval"
	"github.com/studydesk/studydesk/internal/store"
	"github.com/studydesk/studydesk/internal/vector"
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

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Error("create upload dir failed", "path", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Error("open store failed", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}

	// Extractors for the native-text formats are always available; OCR
	// and transcription join only when their services are configured.
	registry := extract.NewRegistry()
	registry.Register(domain.MediaPDF, &extract.PDF{FallbackPdftotext: cfg.PDFFallbackPdftotext})
	registry.Register(domain.MediaDocx, &extract.Docx{})
	registry.Register(domain.MediaMarkdown, &extract.Markdown{})
	registry.Register(domain.MediaHTML, &extract.HTML{})
	registry.Register(domain.MediaText, &extract.Text{})
	registry.Register(domain.MediaCSV, &extract.CSV{})

	var ocr *extract.OCR
	if cfg.OCRBaseURL != "" {
		ocr = extract.NewOCR(cfg.OCRBaseURL, cfg.OCRToken)
		registry.Register(domain.MediaImage, ocr)
	}
	var stt *extract.STT
	if cfg.STTBaseURL != "" {
		stt = extract.NewSTT(cfg.STTBaseURL, cfg.STTToken)
		registry.Register(domain.MediaAudio, stt)
	}

	// cleaner stays a nil interface unless a client exists, so the
	// pipeline's nil check works.
	var cleanupClient *cleanup.Client
	var cleaner cleanup.Cleaner
	if cfg.AnthropicAPIKey != "" {
		cleanupClient = cleanup.NewClient(cleanup.Config{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.CleanupModel,
			BaseURL:   cfg.CleanupBaseURL,
			MaxTokens: cfg.CleanupMaxTokens,
			Timeout:   cfg.CleanupTimeout,
			RPS:       cfg.CleanupRPS,
		})
		cleaner = cleanupClient
		log.Info("ai cleanup enabled", "model", cleanupClient.Model())
	}

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Error("invalid chunking config", "error", err)
		os.Exit(1)
	}
	embedder := vector.NewSurrogate(cfg.EmbedDim)

	ingestor := pipeline.NewIngestor(st, registry, ch, embedder, cleaner,
		cfg.EmbedConcurrency, cfg.MaxRetries, log.With("component", "pipeline"))
	runner := pipeline.NewRunner(ingestor, cfg.WorkerCount, cfg.MaxQueueSize, log.With("component", "pipeline"))
	runner.Start(ctx)

	engine := retrieval.NewEngine(st, embedder, cfg.TopK, log.With("component", "retrieval"))

	srv := api.NewServer(st, runner, engine, cleanupClient, log.With("component", "api"), cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: stop accepting requests first, then drain the
	// pipeline so accepted uploads still finish.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", "error", err)
		}

		runner.Stop()

		if ocr != nil {
			ocr.Close()
		}
		if stt != nil {
			stt.Close()
		}
		if cleanupClient != nil {
			cleanupClient.Close()
		}
		if err := st.Close(); err != nil {
			log.Error("close store", "error", err)
		}
	}()

	log.Info("starting studydesk", "port", cfg.Port, "store", cfg.StoreDriver, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	log.Info("shutdown complete")
}
