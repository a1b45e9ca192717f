// Package config loads the control plane's environment-driven settings,
// following the flat-struct, validate-at-load idiom used throughout the
// Aureuma-si services.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr       string
	DBPath     string
	TokenSigningKey []byte

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	IdleThreshold    time.Duration
	SweeperInterval  time.Duration

	RegistryBaseURL  string
	ObjectStoreBucket string
	CloudProjectID   string
	BaseSandboxImage string

	SSHHostIP          string
	TermProxyExternalPort int
	TermProxyInternalAddr string

	DockerPortRangeStart int
	DockerPortRangeEnd   int

	InternalValidateURL string
	AuditLogPath        string
}

func Load() (Config, error) {
	cfg := Config{
		Addr:   env("POMODEX_ADDR", ":8080"),
		DBPath: env("POMODEX_DB_PATH", "data/pomodex.sqlite"),

		RegistryBaseURL:    env("POMODEX_REGISTRY_BASE_URL", ""),
		ObjectStoreBucket:  env("POMODEX_OBJECT_STORE_BUCKET", ""),
		CloudProjectID:     env("POMODEX_CLOUD_PROJECT_ID", ""),
		BaseSandboxImage:   env("POMODEX_BASE_SANDBOX_IMAGE", ""),
		SSHHostIP:          env("POMODEX_SSH_HOST_IP", "127.0.0.1"),
		TermProxyInternalAddr: env("POMODEX_TERMPROXY_ADDR", ":8081"),
		InternalValidateURL: env("POMODEX_INTERNAL_VALIDATE_URL", "http://127.0.0.1:8080/internal/validate"),
		AuditLogPath:        env("POMODEX_AUDIT_LOG_PATH", "data/terminal-audit.log"),
	}

	key := env("POMODEX_TOKEN_SIGNING_KEY", "")
	if strings.TrimSpace(key) == "" {
		return Config{}, errors.New("missing POMODEX_TOKEN_SIGNING_KEY")
	}
	cfg.TokenSigningKey = []byte(key)

	var err error
	if cfg.AccessTokenTTL, err = durationEnv("POMODEX_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv("POMODEX_REFRESH_TOKEN_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.IdleThreshold, err = durationEnv("POMODEX_IDLE_THRESHOLD", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SweeperInterval, err = durationEnv("POMODEX_SWEEPER_INTERVAL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.DockerPortRangeStart, err = intEnv("POMODEX_SSH_PORT_RANGE_START", 30000); err != nil {
		return Config{}, err
	}
	if cfg.DockerPortRangeEnd, err = intEnv("POMODEX_SSH_PORT_RANGE_END", 60000); err != nil {
		return Config{}, err
	}
	if cfg.TermProxyExternalPort, err = intEnv("POMODEX_TERMPROXY_EXTERNAL_PORT", 8081); err != nil {
		return Config{}, err
	}

	if cfg.BaseSandboxImage == "" {
		return Config{}, errors.New("missing POMODEX_BASE_SANDBOX_IMAGE")
	}

	return cfg, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
