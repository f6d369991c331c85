package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// APIBearerSecret returns the shared HS256 secret the API collaborator
// uses to validate bearer tokens in place of a full OAuth/TOTP flow.
func APIBearerSecret() string {
	return MustGetEnv("API_BEARER_SECRET")
}

// APIListenAddr returns the address the API collaborator binds to.
func APIListenAddr() string {
	return GetEnv("API_LISTEN_ADDR", ":8080")
}

// APICORSOrigins returns the comma-separated list of allowed CORS origins.
func APICORSOrigins() []string {
	raw := GetEnv("API_CORS_ORIGINS", "")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// SentryDSN returns the Sentry project DSN, or "" to disable error
// tracking entirely.
func SentryDSN() string {
	return GetEnv("SENTRY_DSN", "")
}

// Environment returns the deployment environment name reported to Sentry.
func Environment() string {
	return GetEnv("ENVIRONMENT", "development")
}

// APIReadTimeout returns the maximum duration for reading an API request.
func APIReadTimeout() time.Duration {
	return MustParseDuration("API_READ_TIMEOUT", "10s")
}

// APIReadHeaderTimeout returns the amount of time allowed to read request headers.
func APIReadHeaderTimeout() time.Duration {
	return MustParseDuration("API_READ_HEADER_TIMEOUT", "5s")
}

// APIWriteTimeout returns the maximum duration before timing out a response write.
func APIWriteTimeout() time.Duration {
	return MustParseDuration("API_WRITE_TIMEOUT", "15s")
}

// APIIdleTimeout returns the maximum amount of time to wait for the next
// request when keep-alives are enabled.
func APIIdleTimeout() time.Duration {
	return MustParseDuration("API_IDLE_TIMEOUT", "60s")
}

// IndexerWorkerCount controls how many goroutines drain the hand-off queue
// into the mailstore.
func IndexerWorkerCount() int {
	return parseIntEnv("INDEXER_WORKER_COUNT", 2)
}

// SMTPIngestWorkerCount controls the number of workers processing accepted
// SMTP DATA payloads into queue envelopes.
func SMTPIngestWorkerCount() int {
	return parseIntEnv("SMTP_INGEST_WORKER_COUNT", 4)
}

// WorkerQueueSize controls the queue size for each worker pool.
func WorkerQueueSize() int {
	return parseIntEnv("WORKER_QUEUE_SIZE", 1024)
}

func parseIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func parseBytes(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	// If plain number, treat as bytes
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "KB"):
		mult = 1 << 10
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "MB"):
		mult = 1 << 20
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "GB"):
		mult = 1 << 30
		s = strings.TrimSuffix(s, "GB")
	default:
		mult = 1
	}
	base := strings.TrimSpace(s)
	n, err := strconv.ParseFloat(base, 64)
	if err != nil {
		return 0, err
	}
	return int64(n * float64(mult)), nil
}
