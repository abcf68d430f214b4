package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"

	"github.com/joseph-ayodele/resume-parser/constants"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Cache      CacheConfig      `yaml:"cache"`
	Extract    ExtractConfig    `yaml:"extract"`
	Limits     LimitsConfig     `yaml:"limits"`
	Provenance ProvenanceConfig `yaml:"provenance"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds transport configuration
type ServerConfig struct {
	HTTPAddr     string        `yaml:"http_addr"`
	GRPCAddr     string        `yaml:"grpc_addr"`
	JWTSecret    string        `yaml:"jwt_secret"`
	JWTIssuer    string        `yaml:"jwt_issuer"`
	ParseTimeout time.Duration `yaml:"parse_timeout"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // postgres | sqlite | none
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	SendSchema  bool          `yaml:"send_schema"`
}

// CacheConfig configures the optional completion cache
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// ExtractConfig holds PDF text extraction configuration
type ExtractConfig struct {
	Pdftotext string `yaml:"pdftotext"`
	Fallback  bool   `yaml:"fallback"`
	MaxPages  int    `yaml:"max_pages"`

	// OCR renders pages with pdftoppm and reads them with tesseract when
	// neither text layer yields anything.
	OCR       bool   `yaml:"ocr"`
	Pdftoppm  string `yaml:"pdftoppm"`
	Tesseract string `yaml:"tesseract"`
	OCRLang   string `yaml:"ocr_lang"`
	OCRDPI    int    `yaml:"ocr_dpi"`
}

// LimitsConfig holds the early-exit gates
type LimitsConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	MinTextChars   int   `yaml:"min_text_chars"`
}

// ProvenanceConfig tunes the verbatim check
type ProvenanceConfig struct {
	Mode               string `yaml:"mode"` // key_only | strict
	CollapseWhitespace bool   `yaml:"collapse_whitespace"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:     ":8080",
			GRPCAddr:     ":9090",
			JWTIssuer:    "resume-parser",
			ParseTimeout: 2 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver:          "none",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.0,
			Timeout:     45 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Extract: ExtractConfig{
			Pdftotext: "pdftotext",
			Fallback:  true,
			Pdftoppm:  "pdftoppm",
			Tesseract: "tesseract",
			OCRLang:   "eng",
			OCRDPI:    300,
		},
		Limits: LimitsConfig{
			MaxUploadBytes: constants.MaxUploadBytesDefault,
			MinTextChars:   constants.MinTextCharsDefault,
		},
		Provenance: ProvenanceConfig{
			Mode:               "key_only",
			CollapseWhitespace: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig layers defaults, the optional YAML file named by CONFIG_FILE, a .env file
// if present, and finally environment variables.
func LoadConfig() (*Config, error) {
	// missing .env is fine
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeYAMLFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("read config file %q", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("parse config file %q", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.JWTSecret = getEnv("JWT_SECRET", c.Server.JWTSecret)
	c.Server.JWTIssuer = getEnv("JWT_ISSUER", c.Server.JWTIssuer)
	c.Server.ParseTimeout = getEnvAsDuration("PARSE_TIMEOUT", c.Server.ParseTimeout)

	c.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", c.Database.Driver))
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)
	// a DSN without a driver means the postgres deployment the service started with
	if c.Database.DSN != "" && c.Database.Driver == "none" {
		c.Database.Driver = "postgres"
	}

	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)
	c.LLM.SendSchema = getEnvAsBool("OPENAI_SEND_SCHEMA", c.LLM.SendSchema)

	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.TTL = getEnvAsDuration("COMPLETION_CACHE_TTL", c.Cache.TTL)

	c.Extract.Pdftotext = getEnv("PDFTOTEXT_BIN", c.Extract.Pdftotext)
	c.Extract.Fallback = getEnvAsBool("PDF_FALLBACK", c.Extract.Fallback)
	c.Extract.MaxPages = getEnvAsInt("MAX_PAGES", c.Extract.MaxPages)
	c.Extract.OCR = getEnvAsBool("OCR_ENABLED", c.Extract.OCR)
	c.Extract.Pdftoppm = getEnv("PDFTOPPM_BIN", c.Extract.Pdftoppm)
	c.Extract.Tesseract = getEnv("TESSERACT_BIN", c.Extract.Tesseract)
	c.Extract.OCRLang = getEnv("TESSERACT_LANG", c.Extract.OCRLang)
	c.Extract.OCRDPI = getEnvAsInt("OCR_DPI", c.Extract.OCRDPI)

	c.Limits.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", c.Limits.MaxUploadBytes)
	c.Limits.MinTextChars = getEnvAsInt("MIN_TEXT_CHARS", c.Limits.MinTextChars)

	c.Provenance.Mode = strings.ToLower(getEnv("PROVENANCE_MODE", c.Provenance.Mode))
	c.Provenance.CollapseWhitespace = getEnvAsBool("COLLAPSE_WHITESPACE", c.Provenance.CollapseWhitespace)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// Validate validates the loaded configuration for the parsing pipeline.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError(CodeConfig, "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return NewAppError(CodeConfig, "MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	if c.Limits.MinTextChars < 0 {
		return NewAppError(CodeConfig, "MIN_TEXT_CHARS must not be negative", ErrInvalidInput)
	}
	switch c.Provenance.Mode {
	case "key_only", "strict":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("PROVENANCE_MODE %q is not one of key_only, strict", c.Provenance.Mode), ErrInvalidInput)
	}
	switch c.Database.Driver {
	case "none":
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			return NewAppError(CodeConfig, "DB_URL is required when DB_DRIVER is set", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("DB_DRIVER %q is not one of postgres, sqlite, none", c.Database.Driver), ErrInvalidInput)
	}
	return nil
}

// ValidateServer adds the transport requirements on top of Validate.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "one of HTTP_ADDR or GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Server.JWTSecret == "" {
		return NewAppError(CodeConfig, "JWT_SECRET is required to serve HTTP or gRPC", ErrInvalidInput)
	}
	return nil
}
