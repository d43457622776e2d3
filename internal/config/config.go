// Package config loads ocrpipe settings from the environment.
//
// cmd/ocrpipe loads an optional .env file first, so every variable below can
// be set there as well.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Recognition engines.
const (
	EngineCTC       = "ctc"
	EngineTesseract = "tesseract"
)

// Config holds server configuration.
type Config struct {
	LogLevel string

	// Model and dictionary files loaded at startup.
	DetectionModelPath   string
	RecognitionModelPath string
	DictionaryPath       string

	// ONNX Runtime shared library; empty uses the default search path.
	OnnxRuntimeLib string
	IntraOpThreads int

	// Engine is EngineCTC or EngineTesseract.
	Engine            string
	TesseractLanguage string
	TessdataPrefix    string

	AutoDeskew  bool
	Concurrency int

	// Result cache. A non-empty RedisURL replaces the in-memory LRU.
	CacheCapacity int
	CacheDisabled bool
	RedisURL      string
	RedisPrefix   string
	RedisTTL      time.Duration
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:             getEnvOrDefault("OCRPIPE_LOG_LEVEL", "info"),
		DetectionModelPath:   getEnvOrDefault("OCRPIPE_DET_MODEL", ""),
		RecognitionModelPath: getEnvOrDefault("OCRPIPE_REC_MODEL", ""),
		DictionaryPath:       getEnvOrDefault("OCRPIPE_DICTIONARY", ""),
		OnnxRuntimeLib:       getEnvOrDefault("OCRPIPE_ONNXRUNTIME_LIB", ""),
		IntraOpThreads:       getEnvAsIntOrDefault("OCRPIPE_INTRA_OP_THREADS", 0),
		Engine:               strings.ToLower(getEnvOrDefault("OCRPIPE_ENGINE", EngineCTC)),
		TesseractLanguage:    getEnvOrDefault("OCRPIPE_TESSERACT_LANG", "eng"),
		TessdataPrefix:       getEnvOrDefault("TESSDATA_PREFIX", ""),
		AutoDeskew:           getEnvAsBoolOrDefault("OCRPIPE_AUTO_DESKEW", false),
		Concurrency:          getEnvAsIntOrDefault("OCRPIPE_CONCURRENCY", 4),
		CacheCapacity:        getEnvAsIntOrDefault("OCRPIPE_CACHE_CAPACITY", 10),
		CacheDisabled:        getEnvAsBoolOrDefault("OCRPIPE_CACHE_DISABLED", false),
		RedisURL:             getEnvOrDefault("OCRPIPE_REDIS_URL", ""),
		RedisPrefix:          getEnvOrDefault("OCRPIPE_REDIS_PREFIX", "ocrpipe:result:"),
		RedisTTL:             getEnvAsDurationOrDefault("OCRPIPE_REDIS_TTL", 24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if configuration is valid.
func (c *Config) Validate() error {
	if c.DetectionModelPath == "" {
		return fmt.Errorf("OCRPIPE_DET_MODEL is required")
	}

	switch c.Engine {
	case EngineCTC:
		if c.RecognitionModelPath == "" {
			return fmt.Errorf("OCRPIPE_REC_MODEL is required for the %s engine", EngineCTC)
		}
		if c.DictionaryPath == "" {
			return fmt.Errorf("OCRPIPE_DICTIONARY is required for the %s engine", EngineCTC)
		}
	case EngineTesseract:
	default:
		return fmt.Errorf("OCRPIPE_ENGINE must be %q or %q, got %q", EngineCTC, EngineTesseract, c.Engine)
	}

	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("OCRPIPE_CONCURRENCY must be between 1 and 64, got %d", c.Concurrency)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("OCRPIPE_CACHE_CAPACITY must be positive, got %d", c.CacheCapacity)
	}
	if c.IntraOpThreads < 0 {
		return fmt.Errorf("OCRPIPE_INTRA_OP_THREADS must not be negative, got %d", c.IntraOpThreads)
	}
	if c.RedisTTL < 0 {
		return fmt.Errorf("OCRPIPE_REDIS_TTL must not be negative, got %s", c.RedisTTL)
	}
	return nil
}

// ReadSources reads the configured model and dictionary files. Paths that are
// not set yield nil.
func (c *Config) ReadSources() (det, rec, dict []byte, err error) {
	if det, err = readOptional(c.DetectionModelPath); err != nil {
		return nil, nil, nil, err
	}
	if rec, err = readOptional(c.RecognitionModelPath); err != nil {
		return nil, nil, nil, err
	}
	if dict, err = readOptional(c.DictionaryPath); err != nil {
		return nil, nil, nil, err
	}
	return det, rec, dict, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
