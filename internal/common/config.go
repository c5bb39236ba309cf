package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Tools    ToolsConfig    `yaml:"tools"`
	LLM      LLMConfig      `yaml:"llm"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig holds result-store configuration.
type StoreConfig struct {
	// DSN selects the driver: postgres:// URLs use pgx, anything else is
	// treated as a SQLite path/URI.
	DSN       string        `yaml:"dsn"`
	Retention time.Duration `yaml:"retention"`
}

// PipelineConfig carries the per-request processing defaults.
type PipelineConfig struct {
	TargetDPI        int           `yaml:"target_dpi"`
	AcceptThreshold  float64       `yaml:"accept_threshold"`
	MaxParallelPages int           `yaml:"max_parallel_pages"`
	PerPageTimeout   time.Duration `yaml:"per_page_timeout"`
	LanguageHint     string        `yaml:"language_hint"`
}

// ToolsConfig holds external tool locations.
type ToolsConfig struct {
	Pdftoppm    string `yaml:"pdftoppm"`
	Tesseract   string `yaml:"tesseract"`
	TessdataDir string `yaml:"tessdata_dir"`
	// Engine selects the OCR provider: "tesseract-cli" (default) or "gosseract".
	Engine string `yaml:"engine"`
}

// LLMConfig holds configuration for the optional summarization stage.
type LLMConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 100<<20),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Store: StoreConfig{
			DSN:       getEnv("STORE_DSN", "file:doculens.db?_pragma=busy_timeout(5000)"),
			Retention: getEnvAsDuration("STORE_RETENTION", 24*time.Hour),
		},
		Pipeline: PipelineConfig{
			TargetDPI:        getEnvAsInt("TARGET_DPI", 300),
			AcceptThreshold:  getEnvAsFloat64("ACCEPT_THRESHOLD", 0.60),
			MaxParallelPages: getEnvAsInt("MAX_PARALLEL_PAGES", 4),
			PerPageTimeout:   getEnvAsDuration("PER_PAGE_TIMEOUT", 90*time.Second),
			LanguageHint:     getEnv("LANGUAGE_HINT", "eng"),
		},
		Tools: ToolsConfig{
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			Engine:      getEnv("OCR_ENGINE", "tesseract-cli"),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("LLM_API_KEY", ""),
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		},
	}
}

// LoadConfigFile reads a YAML config file and overlays it with environment
// variables (env wins, per the daemon's precedence rules).
func LoadConfigFile(path string) (*Config, error) {
	cfg := &Config{}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	env := LoadConfig()
	mergeConfig(cfg, env)
	return cfg, nil
}

// mergeConfig fills zero fields in dst from src and lets explicitly-set env
// values override file values.
func mergeConfig(dst, src *Config) {
	if v := os.Getenv("HTTP_ADDR"); v != "" || dst.Server.Addr == "" {
		dst.Server.Addr = src.Server.Addr
	}
	if dst.Server.MaxUploadBytes <= 0 {
		dst.Server.MaxUploadBytes = src.Server.MaxUploadBytes
	}
	if dst.Server.ShutdownTimeout <= 0 {
		dst.Server.ShutdownTimeout = src.Server.ShutdownTimeout
	}
	if v := os.Getenv("STORE_DSN"); v != "" || dst.Store.DSN == "" {
		dst.Store.DSN = src.Store.DSN
	}
	if dst.Store.Retention <= 0 {
		dst.Store.Retention = src.Store.Retention
	}
	if dst.Pipeline.TargetDPI <= 0 {
		dst.Pipeline.TargetDPI = src.Pipeline.TargetDPI
	}
	if dst.Pipeline.AcceptThreshold <= 0 {
		dst.Pipeline.AcceptThreshold = src.Pipeline.AcceptThreshold
	}
	if dst.Pipeline.MaxParallelPages <= 0 {
		dst.Pipeline.MaxParallelPages = src.Pipeline.MaxParallelPages
	}
	if dst.Pipeline.PerPageTimeout <= 0 {
		dst.Pipeline.PerPageTimeout = src.Pipeline.PerPageTimeout
	}
	if dst.Pipeline.LanguageHint == "" {
		dst.Pipeline.LanguageHint = src.Pipeline.LanguageHint
	}
	if dst.Tools.Pdftoppm == "" {
		dst.Tools.Pdftoppm = src.Tools.Pdftoppm
	}
	if dst.Tools.Tesseract == "" {
		dst.Tools.Tesseract = src.Tools.Tesseract
	}
	if dst.Tools.TessdataDir == "" {
		dst.Tools.TessdataDir = src.Tools.TessdataDir
	}
	if dst.Tools.Engine == "" {
		dst.Tools.Engine = src.Tools.Engine
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" || dst.LLM.APIKey == "" {
		dst.LLM.APIKey = src.LLM.APIKey
	}
	if dst.LLM.BaseURL == "" {
		dst.LLM.BaseURL = src.LLM.BaseURL
	}
	if dst.LLM.Model == "" {
		dst.LLM.Model = src.LLM.Model
	}
	if dst.LLM.Temperature <= 0 {
		dst.LLM.Temperature = src.LLM.Temperature
	}
	if dst.LLM.Timeout <= 0 {
		dst.LLM.Timeout = src.LLM.Timeout
	}
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Store.DSN == "" {
		return NewAppError("CONFIG_ERROR", "STORE_DSN is required", ErrInvalidInput)
	}
	if c.Pipeline.AcceptThreshold < 0 || c.Pipeline.AcceptThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "ACCEPT_THRESHOLD must be within [0,1]", ErrInvalidInput)
	}
	if c.Pipeline.MaxParallelPages <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_PARALLEL_PAGES must be positive", ErrInvalidInput)
	}
	if c.Pipeline.PerPageTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "PER_PAGE_TIMEOUT must be positive", ErrInvalidInput)
	}
	switch c.Tools.Engine {
	case "tesseract-cli", "gosseract":
	default:
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be tesseract-cli or gosseract", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
