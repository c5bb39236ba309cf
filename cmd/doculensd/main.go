package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doculens/doculens/internal/common"
	"github.com/doculens/doculens/internal/document"
	"github.com/doculens/doculens/internal/export"
	"github.com/doculens/doculens/internal/ocr"
	"github.com/doculens/doculens/internal/pipeline"
	"github.com/doculens/doculens/internal/raster"
	"github.com/doculens/doculens/internal/server"
	"github.com/doculens/doculens/internal/store"
	"github.com/doculens/doculens/internal/summarize"
	sumopenai "github.com/doculens/doculens/internal/summarize/openai"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file; env vars take precedence")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var cfg *common.Config
	var err error
	if *configPath != "" {
		cfg, err = common.LoadConfigFile(*configPath)
		if err != nil {
			logger.Error("load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	} else {
		cfg = common.LoadConfig()
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Store.DSN, logger)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ingestor := document.NewIngestor(document.Config{
		MaxBytes:            cfg.Server.MaxUploadBytes,
		ExtractEmbeddedText: true,
	}, logger)
	rasterizer := raster.New(raster.Config{Pdftoppm: cfg.Tools.Pdftoppm}, logger)

	var engine ocr.Engine
	switch cfg.Tools.Engine {
	case "gosseract":
		engine = ocr.NewGosseractEngine(cfg.Tools.TessdataDir)
	default:
		engine = ocr.NewCLIEngine(ocr.CLIConfig{
			Tesseract:   cfg.Tools.Tesseract,
			TessdataDir: cfg.Tools.TessdataDir,
		}, logger)
	}
	adapter := ocr.NewAdapter(engine, logger)

	pool := pipeline.NewPool(rasterizer, adapter, logger)
	coord := pipeline.NewCoordinator(ingestor, pool, logger)

	var summarizer summarize.Summarizer
	if cfg.LLM.APIKey != "" {
		summarizer = sumopenai.NewClient(sumopenai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	}

	svc := server.NewService(ctx, coord, st, export.NewService(logger), summarizer, logger)

	// Retention sweep for finished requests.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := st.DeleteExpired(ctx, cfg.Store.Retention); err != nil {
					logger.Error("retention sweep", "error", err)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: svc.Router(),
	}
	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr, "engine", cfg.Tools.Engine)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	svc.Wait()
	logger.Info("stopped")
}
