package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the federation gateway.
type Config struct {

	// Counter chain
	CounterChainURLs []string
	CounterChainWS   string
	RPCRPS           int
	RPCBurst         int

	// PostgreSQL
	PostgresURL string

	// Redis
	RedisURL      string
	EventsTopic   string
	WakeupTopic   string
	ConsumerGroup string

	// Federation
	FederationKey     []byte   // this node's public key
	FederationMembers [][]byte // initial roster

	// Sync
	SyncStartHeight uint64

	// Logging
	LogLevel string

	// HTTP API
	HTTPAddr   string
	AdminToken string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Defaults
		RPCRPS:        20,
		RPCBurst:      40,
		EventsTopic:   "federation-events",
		WakeupTopic:   "matured-tips",
		ConsumerGroup: "fedgateway-workers",
		LogLevel:      "info",
	}

	// Required
	cfg.PostgresURL = os.Getenv("POSTGRES_URL")
	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("POSTGRES_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	if v := os.Getenv("COUNTERCHAIN_URLS"); v != "" {
		for _, ep := range strings.Split(v, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				cfg.CounterChainURLs = append(cfg.CounterChainURLs, ep)
			}
		}
	}
	if len(cfg.CounterChainURLs) == 0 {
		return nil, fmt.Errorf("COUNTERCHAIN_URLS is required")
	}

	key, err := parseHexKey(os.Getenv("FEDERATION_KEY"))
	if err != nil {
		return nil, fmt.Errorf("FEDERATION_KEY: %w", err)
	}
	cfg.FederationKey = key

	if v := os.Getenv("FEDERATION_MEMBERS"); v != "" {
		for _, m := range strings.Split(v, ",") {
			member, err := parseHexKey(strings.TrimSpace(m))
			if err != nil {
				return nil, fmt.Errorf("FEDERATION_MEMBERS: %w", err)
			}
			cfg.FederationMembers = append(cfg.FederationMembers, member)
		}
	}
	if len(cfg.FederationMembers) == 0 {
		return nil, fmt.Errorf("FEDERATION_MEMBERS is required")
	}

	// Optional overrides
	cfg.CounterChainWS = os.Getenv("COUNTERCHAIN_WS_URL")

	if v := os.Getenv("RPC_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RPCRPS = n
		}
	}

	if v := os.Getenv("RPC_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RPCBurst = n
		}
	}

	if v := os.Getenv("EVENTS_TOPIC"); v != "" {
		cfg.EventsTopic = v
	}

	if v := os.Getenv("WAKEUP_TOPIC"); v != "" {
		cfg.WakeupTopic = v
	}

	if v := os.Getenv("CONSUMER_GROUP"); v != "" {
		cfg.ConsumerGroup = v
	}

	if v := os.Getenv("SYNC_START_HEIGHT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.SyncStartHeight = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080" // Default port
	}

	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	if cfg.AdminToken == "" {
		cfg.AdminToken = "devtoken" // Default token for development
	}

	return cfg, nil
}

func parseHexKey(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty key")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad hex key: %w", err)
	}
	if len(b) != 32 && len(b) != 33 {
		return nil, fmt.Errorf("bad key length %d", len(b))
	}
	return b, nil
}

// ParseDuration reads a duration env var, returning def when unset or
// malformed.
func ParseDuration(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
