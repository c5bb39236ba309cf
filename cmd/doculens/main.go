// doculens processes one PDF from the command line: page progress goes to
// stderr, the assembled text to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/doculens/doculens/constants"
	"github.com/doculens/doculens/internal/document"
	"github.com/doculens/doculens/internal/ocr"
	"github.com/doculens/doculens/internal/pipeline"
	"github.com/doculens/doculens/internal/raster"
)

func main() {
	var (
		dpi        = flag.Int("dpi", 0, "rasterization DPI (default 300)")
		threshold  = flag.Float64("threshold", 0, "acceptance threshold 0..1 (default 0.60)")
		parallel   = flag.Int("parallel", 0, "max pages processed in parallel (default 4)")
		timeout    = flag.Duration("timeout", 0, "per-page OCR timeout (default 90s)")
		lang       = flag.String("lang", "", "language hint, e.g. eng or eng+deu (default eng)")
		noEmbedded = flag.Bool("no-embedded", false, "always OCR, ignore embedded PDF text")
		engineName = flag.String("engine", "tesseract-cli", "OCR engine: tesseract-cli or gosseract")
		pdftoppm   = flag.String("pdftoppm", "pdftoppm", "pdftoppm binary")
		tesseract  = flag.String("tesseract", "tesseract", "tesseract binary")
		tessdata   = flag.String("tessdata", "", "tessdata directory")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: doculens [flags] <file.pdf>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "doculens: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ingestor := document.NewIngestor(document.Config{ExtractEmbeddedText: !*noEmbedded}, logger)
	rasterizer := raster.New(raster.Config{Pdftoppm: *pdftoppm}, logger)

	var engine ocr.Engine
	switch *engineName {
	case "gosseract":
		engine = ocr.NewGosseractEngine(*tessdata)
	default:
		engine = ocr.NewCLIEngine(ocr.CLIConfig{Tesseract: *tesseract, TessdataDir: *tessdata}, logger)
	}

	pool := pipeline.NewPool(rasterizer, ocr.NewAdapter(engine, logger), logger)
	coord := pipeline.NewCoordinator(ingestor, pool, logger)

	opts := pipeline.Options{
		TargetDPI:           *dpi,
		AcceptThreshold:     *threshold,
		MaxParallelPages:    *parallel,
		PerPageTimeout:      *timeout,
		LanguageHint:        *lang,
		DisableEmbeddedText: *noEmbedded,
	}

	bc := pipeline.NewBroadcaster()
	sub := bc.Subscribe()
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for ev := range sub.Events() {
			if ev.Type != pipeline.EventPage || ev.Page == nil {
				continue
			}
			p := ev.Page
			switch p.Status {
			case constants.PageRecognized, constants.PageDegraded:
				fmt.Fprintf(os.Stderr, "page %d: %s (%.2f, %s, %s)\n",
					p.PageIndex+1, p.Status, p.MeanConfidence, p.Source, p.Elapsed.Round(time.Millisecond))
			default:
				fmt.Fprintf(os.Stderr, "page %d: %s (%s)\n", p.PageIndex+1, p.Status, p.ErrorKind)
			}
		}
	}()

	start := time.Now()
	result, err := coord.Process(ctx, uuid.New(), filepath.Base(path), data, opts, bc)
	<-progressDone
	if err != nil {
		var rej *document.RejectionError
		if errors.As(err, &rej) {
			fmt.Fprintf(os.Stderr, "doculens: rejected: %s (%s)\n", rej.Kind, rej.Detail)
		} else {
			fmt.Fprintf(os.Stderr, "doculens: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "%s: %d pages, %s in %s\n",
		result.Name, result.PageCount, result.OverallStatus, time.Since(start).Round(time.Millisecond))
	fmt.Print(result.Text())

	if result.OverallStatus == constants.OverallAllFailed {
		os.Exit(1)
	}
}
