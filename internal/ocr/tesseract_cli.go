package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/doculens/doculens/internal/raster"
)

// CLIConfig holds the tesseract binary configuration.
type CLIConfig struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string
	PSM         int // e.g., 3 for full auto page segmentation; 0 = tool default
	OEM         int // 1 = LSTM; leave 0 to use default
}

// CLIEngine shells out to the tesseract binary in TSV mode, which yields one
// row per word with confidence and a bounding box.
type CLIEngine struct {
	cfg    CLIConfig
	runner raster.Runner
	logger *slog.Logger
}

func NewCLIEngine(cfg CLIConfig, logger *slog.Logger) *CLIEngine {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIEngine{cfg: cfg, runner: raster.ExecRunner{}, logger: logger}
}

// NewCLIEngineWithRunner is the test seam for stubbing the tesseract call.
func NewCLIEngineWithRunner(cfg CLIConfig, runner raster.Runner, logger *slog.Logger) *CLIEngine {
	e := NewCLIEngine(cfg, logger)
	e.runner = runner
	return e
}

func (e *CLIEngine) Name() string { return "tesseract-cli" }

func (e *CLIEngine) Recognize(ctx context.Context, img *raster.PageImage, lang string) (Recognition, error) {
	tmpDir, err := os.MkdirTemp("", "dl-ocr-*")
	if err != nil {
		return Recognition{}, fmt.Errorf("tesseract tmpdir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tmpdir.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	imgPath := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(imgPath, img.PNG, 0o600); err != nil {
		return Recognition{}, fmt.Errorf("tesseract write image: %w", err)
	}

	args := []string{imgPath, "stdout"}
	if lang != "" {
		args = append(args, "-l", lang)
	}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	if img.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(img.DPI))
	}
	args = append(args, "tsv")

	// tesseract <img> stdout -l <lang> ... tsv
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		if ctx.Err() != nil {
			return Recognition{}, ctx.Err()
		}
		return Recognition{}, fmt.Errorf("tesseract: %w: %s", err, truncateDetail(string(errb)))
	}

	spans, plain := parseTSV(string(out))
	return Recognition{
		Spans:          spans,
		PlainText:      plain,
		MeanConfidence: meanConfidence(spans),
		Language:       lang,
	}, nil
}

// parseTSV turns tesseract TSV output into word spans plus linearized text
// with line breaks restored. Columns:
// level page block par line word left top width height conf text.
// Rows with conf -1 are structural (page/block/line), not words.
func parseTSV(tsv string) ([]TextSpan, string) {
	var spans []TextSpan
	var sb strings.Builder
	var lastLine string

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 || len(row) == 0 {
			continue // header
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		conf, err := strconv.ParseFloat(confStr, 64)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}

		span := TextSpan{
			Text:       text,
			Confidence: conf / 100.0,
		}
		left, lerr := strconv.ParseFloat(cols[6], 64)
		top, terr := strconv.ParseFloat(cols[7], 64)
		width, werr := strconv.ParseFloat(cols[8], 64)
		height, herr := strconv.ParseFloat(cols[9], 64)
		if lerr == nil && terr == nil && werr == nil && herr == nil {
			span.Region = &Region{X: left, Y: top, Width: width, Height: height}
		}
		spans = append(spans, span)

		lineKey := cols[1] + ":" + cols[2] + ":" + cols[3] + ":" + cols[4]
		switch {
		case sb.Len() == 0:
		case lineKey != lastLine:
			sb.WriteByte('\n')
		default:
			sb.WriteByte(' ')
		}
		lastLine = lineKey
		sb.WriteString(text)
	}
	return spans, sb.String()
}

func truncateDetail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		return s[:512] + "...(truncated)"
	}
	return s
}
