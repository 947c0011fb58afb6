// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	log "github.com/sirupsen/logrus"
)

type Config struct {
	Port         string
	ModelDir     string
	OrtLibrary   string
	Workers      int
	QueueSize    int
	LogLevel     log.Level
	MaxBodyBytes int64
}

// Load reads the environment, applying defaults for unset variables.
func Load() (Config, error) {
	cfg := Config{
		Port:         getenv("PORT", "8080"),
		ModelDir:     os.Getenv("NODE_DETECT_MODEL_DIR"),
		OrtLibrary:   os.Getenv("ONNXRUNTIME_LIB"),
		Workers:      max(runtime.NumCPU()/2, 1),
		QueueSize:    16,
		LogLevel:     log.InfoLevel,
		MaxBodyBytes: 32 << 20,
	}

	var err error
	if cfg.Workers, err = intEnv("NODE_DETECT_WORKERS", cfg.Workers); err != nil {
		return Config{}, err
	}
	if cfg.QueueSize, err = intEnv("NODE_DETECT_QUEUE", cfg.QueueSize); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("NODE_DETECT_LOG_LEVEL"); v != "" {
		if cfg.LogLevel, err = log.ParseLevel(v); err != nil {
			return Config{}, fmt.Errorf("invalid NODE_DETECT_LOG_LEVEL: %w", err)
		}
	}
	if v := os.Getenv("NODE_DETECT_MAX_BODY_MB"); v != "" {
		mb, err := strconv.Atoi(v)
		if err != nil || mb <= 0 {
			return Config{}, fmt.Errorf("invalid NODE_DETECT_MAX_BODY_MB %q", v)
		}
		cfg.MaxBodyBytes = int64(mb) << 20
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}
