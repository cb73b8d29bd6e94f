package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string

	// Client provider.
	ProviderURL         string
	WalletPath          string
	WorkspacePath       string
	Commitment          string
	SkipPreflight       bool
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
	RPCRateLimit        int

	// Invocation ledger. Empty disables persistence.
	DatabaseURL string

	// Local validator.
	LocalnetPort       string
	LocalnetSlotTime   time.Duration
	FinalityDepth      int
	MaxAirdropLamports uint64
	RateLimitPerMin    int
	CORSAllowedOrigins []string
	TrustedProxies     []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	WorkerPollInterval time.Duration
	WorkerPendingTTL   time.Duration
	WorkerBatchSize    int
}

var validCommitments = map[string]struct{}{
	"processed": {},
	"confirmed": {},
	"finalized": {},
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		ProviderURL:         os.Getenv("ANCHOR_PROVIDER_URL"),
		WalletPath:          os.Getenv("ANCHOR_WALLET"),
		WorkspacePath:       getEnv("ANCHOR_WORKSPACE", "Anchor.toml"),
		Commitment:          strings.ToLower(getEnv("COMMITMENT", "processed")),
		SkipPreflight:       getEnvBool("SKIP_PREFLIGHT", false),
		ConfirmTimeout:      time.Second * time.Duration(getEnvInt("CONFIRM_TIMEOUT_SECONDS", 30)),
		ConfirmPollInterval: time.Millisecond * time.Duration(getEnvInt("CONFIRM_POLL_INTERVAL_MS", 400)),
		RPCRateLimit:        getEnvInt("RPC_RATE_LIMIT", 0),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		LocalnetPort:        getEnv("LOCALNET_PORT", "8899"),
		LocalnetSlotTime:    time.Millisecond * time.Duration(getEnvInt("LOCALNET_SLOT_MS", 400)),
		FinalityDepth:       getEnvInt("LOCALNET_FINALITY_DEPTH", 2),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 6000),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS"),
		TrustedProxies:      getEnvList("TRUSTED_PROXIES"),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		WorkerPollInterval:  time.Second * time.Duration(getEnvInt("WORKER_POLL_SECONDS", 2)),
		WorkerPendingTTL:    time.Second * time.Duration(getEnvInt("WORKER_PENDING_TTL_SECONDS", 120)),
		WorkerBatchSize:     getEnvInt("WORKER_BATCH_SIZE", 50),
	}

	maxAirdrop, err := getEnvUint64("LOCALNET_MAX_AIRDROP_LAMPORTS", 1_000_000_000_000)
	if err != nil {
		return nil, err
	}
	cfg.MaxAirdropLamports = maxAirdrop

	if _, ok := validCommitments[cfg.Commitment]; !ok {
		return nil, fmt.Errorf("COMMITMENT must be one of processed, confirmed, finalized (got %q)", cfg.Commitment)
	}
	if cfg.ConfirmTimeout <= 0 {
		return nil, fmt.Errorf("CONFIRM_TIMEOUT_SECONDS must be positive")
	}
	if cfg.ConfirmPollInterval <= 0 {
		cfg.ConfirmPollInterval = 400 * time.Millisecond
	}
	if cfg.FinalityDepth < 1 {
		cfg.FinalityDepth = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvUint64 rejects negative or malformed values instead of wrapping them.
func getEnvUint64(key string, fallback uint64) (uint64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a non-negative integer (got %q)", key, v)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
