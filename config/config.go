package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	MongoURI  string
	RedisAddr string
	HTTPPort  string

	JWTSecret    string
	HostUsername string
	HostPassword string

	// Voice signaling endpoint (ws:// or wss://)
	VoiceSignalURL string

	// Per-stage timing
	ReadingDuration   time.Duration
	AnsweringDuration time.Duration
	ResolvedDwell     time.Duration

	// How long a finished room stays resident before eviction
	FinishedLinger time.Duration

	// Full-snapshot republish interval (push channel is primary,
	// this is the periodic reconciliation pass)
	ReconcileInterval time.Duration
}

func Load() *Config {
	return &Config{
		MongoURI:  getEnv("MONGO_URI", "mongodb://localhost:27017"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		HTTPPort:  getEnv("HTTP_PORT", "8080"),

		JWTSecret:    getEnv("JWT_SECRET", "super-secret-key-change-in-production"),
		HostUsername: getEnv("HOST_USERNAME", "admin"),
		HostPassword: getEnv("HOST_PASSWORD", "password123"),

		VoiceSignalURL: getEnv("VOICE_SIGNAL_URL", "ws://localhost:9090/signal"),

		ReadingDuration:   getDuration("READING_SECONDS", 10),
		AnsweringDuration: getDuration("ANSWERING_SECONDS", 30),
		ResolvedDwell:     getDuration("RESOLVED_SECONDS", 3),
		FinishedLinger:    getDuration("FINISHED_LINGER_SECONDS", 300),
		ReconcileInterval: getDuration("RECONCILE_SECONDS", 30),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultSec int) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(defaultSec) * time.Second
}
