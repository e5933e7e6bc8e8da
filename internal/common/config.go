package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds the extraction ledger connection settings
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	Workers     int    `yaml:"workers"`
	QueueSize   int    `yaml:"queue_size"`
	WatchDir    string `yaml:"watch_dir"`
	WatchOCR    bool   `yaml:"watch_ocr"`
}

// OCRConfig holds rasterizer and recognizer settings
type OCRConfig struct {
	Engine            string `yaml:"engine"`
	PdftoppmPath      string `yaml:"pdftoppm_path"`
	TesseractPath     string `yaml:"tesseract_path"`
	TessdataDir       string `yaml:"tessdata_dir"`
	PSM               int    `yaml:"psm"`
	BinarizeThreshold int    `yaml:"binarize_threshold"`
	TempDir           string `yaml:"temp_dir"`
}

// PipelineConfig holds extraction limits and timers
type PipelineConfig struct {
	ScannedThreshold int           `yaml:"scanned_threshold"`
	MaxTextPages     int           `yaml:"max_text_pages"`
	MaxOCRPages      int           `yaml:"max_ocr_pages"`
	OCRScale         float64       `yaml:"ocr_scale"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	StageTimeout     time.Duration `yaml:"stage_timeout"`
	CallerTimeout    time.Duration `yaml:"caller_timeout"`
	MaxSizeMB        float64       `yaml:"max_size_mb"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig loads configuration from environment variables (.env is read
// first when present) and overlays CONFIG_FILE if it is set.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError(CodeConfig, "reading .env", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:ledger.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
			Workers:     getEnvAsInt("QUEUE_WORKERS", 2),
			QueueSize:   getEnvAsInt("QUEUE_SIZE", 64),
			WatchDir:    getEnv("WATCH_DIR", ""),
			WatchOCR:    getEnvAsBool("WATCH_OCR", true),
		},
		OCR: OCRConfig{
			Engine:            getEnv("OCR_ENGINE", "gosseract"),
			PdftoppmPath:      getEnv("PDFTOPPM_PATH", "pdftoppm"),
			TesseractPath:     getEnv("TESSERACT_PATH", "tesseract"),
			TessdataDir:       getEnv("TESSDATA_PREFIX", ""),
			PSM:               getEnvAsInt("OCR_PSM", 6),
			BinarizeThreshold: getEnvAsInt("OCR_BINARIZE_THRESHOLD", 150),
			TempDir:           getEnv("OCR_TEMP_DIR", ""),
		},
		Pipeline: PipelineConfig{
			ScannedThreshold: getEnvAsInt("PIPELINE_SCANNED_THRESHOLD", 100),
			MaxTextPages:     getEnvAsInt("PIPELINE_MAX_TEXT_PAGES", 20),
			MaxOCRPages:      getEnvAsInt("PIPELINE_MAX_OCR_PAGES", 10),
			OCRScale:         getEnvAsFloat("PIPELINE_OCR_SCALE", 1.5),
			ProgressInterval: getEnvAsDuration("PIPELINE_PROGRESS_INTERVAL", 100*time.Millisecond),
			StageTimeout:     getEnvAsDuration("PIPELINE_STAGE_TIMEOUT", 2*time.Minute),
			CallerTimeout:    getEnvAsDuration("PIPELINE_CALLER_TIMEOUT", 3*time.Minute),
			MaxSizeMB:        getEnvAsFloat("PIPELINE_MAX_SIZE_MB", 10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path; keys it omits keep their values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, "reading config file", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("parsing %s", path), err)
	}
	return nil
}

// Helper functions for environment variable parsing
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "gosseract", "cli":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("OCR_ENGINE %q is not one of gosseract, cli", c.OCR.Engine), ErrInvalidInput)
	}
	if c.OCR.BinarizeThreshold < 0 || c.OCR.BinarizeThreshold > 255 {
		return NewAppError(CodeConfig, "OCR_BINARIZE_THRESHOLD must be within 0..255", ErrInvalidInput)
	}
	if c.Pipeline.ScannedThreshold < 0 {
		return NewAppError(CodeConfig, "PIPELINE_SCANNED_THRESHOLD must not be negative", ErrInvalidInput)
	}
	if c.Pipeline.MaxTextPages <= 0 || c.Pipeline.MaxOCRPages <= 0 {
		return NewAppError(CodeConfig, "page caps must be positive", ErrInvalidInput)
	}
	if c.Pipeline.OCRScale <= 0 {
		return NewAppError(CodeConfig, "PIPELINE_OCR_SCALE must be positive", ErrInvalidInput)
	}
	return nil
}
