package config

import (
	"os"
	"strconv"
)

type Runtime struct {
	HTTPAddr     string
	MaxSteps     int
	StoreBackend string // memory | sqlite | redis
	SQLitePath   string
	RedisAddr    string
	ObsBuffer    int
}

func Load() Runtime {
	return Runtime{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		MaxSteps:     getenvInt("WORKFLOW_MAX_STEPS", 200, 1),
		StoreBackend: getenv("STORE_BACKEND", "memory"),
		SQLitePath:   getenv("SQLITE_PATH", "workflow.db"),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		ObsBuffer:    getenvInt("WORKFLOW_OBS_BUFFER", 4096, 1),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback, min int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return fallback
	}
	return v
}
