package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ANCHOR_PROVIDER_URL", "")
	t.Setenv("COMMITMENT", "")
	t.Setenv("LOCALNET_PORT", "")
	t.Setenv("CONFIRM_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Commitment != "processed" {
		t.Fatalf("Commitment mismatch: got %q want %q", cfg.Commitment, "processed")
	}
	if cfg.LocalnetPort != "8899" {
		t.Fatalf("LocalnetPort mismatch: got %q want %q", cfg.LocalnetPort, "8899")
	}
	if cfg.ConfirmTimeout != 30*time.Second {
		t.Fatalf("ConfirmTimeout mismatch: got %s", cfg.ConfirmTimeout)
	}
	if cfg.WorkspacePath != "Anchor.toml" {
		t.Fatalf("WorkspacePath mismatch: got %q", cfg.WorkspacePath)
	}
}

func TestLoadConfigNormalizesCommitment(t *testing.T) {
	t.Setenv("COMMITMENT", "Finalized")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Commitment != "finalized" {
		t.Fatalf("Commitment mismatch: got %q want finalized", cfg.Commitment)
	}
}

func TestLoadConfigRejectsUnknownCommitment(t *testing.T) {
	t.Setenv("COMMITMENT", "max")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown commitment")
	}
}

func TestLoadConfigParsesListsAndBools(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://localhost:3000, ,https://app.example.com ")
	t.Setenv("SKIP_PREFLIGHT", "true")
	t.Setenv("RPC_RATE_LIMIT", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"http://localhost:3000", "https://app.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(expected) {
		t.Fatalf("CORSAllowedOrigins mismatch: got %#v want %#v", cfg.CORSAllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
	if !cfg.SkipPreflight {
		t.Fatal("expected SkipPreflight to be true")
	}
	if cfg.RPCRateLimit != 0 {
		t.Fatalf("RPCRateLimit should fall back to 0, got %d", cfg.RPCRateLimit)
	}
}

func TestLoadConfigMaxAirdropLamports(t *testing.T) {
	tests := []struct {
		value   string
		want    uint64
		wantErr bool
	}{
		{"", 1_000_000_000_000, false},
		{"5000000000", 5_000_000_000, false},
		{"-1", 0, true},
		{"lots", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("LOCALNET_MAX_AIRDROP_LAMPORTS", tc.value)

			cfg, err := LoadConfig()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig returned error: %v", err)
			}
			if cfg.MaxAirdropLamports != tc.want {
				t.Fatalf("MaxAirdropLamports mismatch: got %d want %d", cfg.MaxAirdropLamports, tc.want)
			}
		})
	}
}
