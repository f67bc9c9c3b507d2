// Package config loads server configuration from environment variables.
package config

import (
	"os"
	"strconv"
)

// Config holds all PrinterPal server configuration. The printing
// configuration document itself lives in printcfg; this covers only the
// process-level knobs.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Paths
	UploadDir  string
	CacheDir   string
	ConfigPath string
	RootHelper string

	// Live updates
	HeartbeatSeconds int

	// Uploads listing cap for API and SSE payloads
	FileListLimit int
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		ListenAddr:       envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:      envOr("METRICS_ADDR", ":9090"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "json"),
		UploadDir:        envOr("PRINTERPAL_UPLOAD_DIR", "/var/lib/printerpal/uploads"),
		CacheDir:         envOr("PRINTERPAL_CACHE_DIR", "/var/lib/printerpal/cache"),
		ConfigPath:       envOr("PRINTERPAL_CONFIG", "/etc/printerpal/config.json"),
		RootHelper:       envOr("PRINTERPAL_ROOT_HELPER", "/usr/local/sbin/printerpal-root"),
		HeartbeatSeconds: envInt("PRINTERPAL_HEARTBEAT_SECONDS", 2),
		FileListLimit:    envInt("PRINTERPAL_FILE_LIST_LIMIT", 50),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
