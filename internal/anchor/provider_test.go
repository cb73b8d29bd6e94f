package anchor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"solaudit/internal/wallet"
)

func writeKeypair(t *testing.T) (string, *wallet.Keypair) {
	t.Helper()
	kp, err := wallet.Generate()
	require.NoError(t, err)
	raw, err := kp.Encode()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path, kp
}

func TestProviderFromEnvRequiresWallet(t *testing.T) {
	t.Setenv("ANCHOR_PROVIDER_URL", "")
	t.Setenv("ANCHOR_WALLET", "")

	_, err := ProviderFromEnv()
	require.ErrorIs(t, err, ErrWalletEnvNotSet)
	require.EqualError(t, err, "expected environment variable `ANCHOR_WALLET` is not set")
}

func TestProviderFromEnv(t *testing.T) {
	path, kp := writeKeypair(t)

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"defaults to localnet", "", rpc.LocalNet_RPC},
		{"explicit url", "http://127.0.0.1:9000", "http://127.0.0.1:9000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ANCHOR_PROVIDER_URL", tc.url)
			t.Setenv("ANCHOR_WALLET", path)

			p, err := ProviderFromEnv()
			require.NoError(t, err)
			require.Equal(t, tc.want, p.Connection.Endpoint())
			require.Equal(t, kp.PublicKey(), p.PublicKey())
			require.Equal(t, DefaultConfirmOptions(), p.Opts)
		})
	}
}

func TestProviderFromEnvWithOptions(t *testing.T) {
	path, _ := writeKeypair(t)
	t.Setenv("ANCHOR_PROVIDER_URL", "")
	t.Setenv("ANCHOR_WALLET", path)

	p, err := ProviderFromEnvWith(EnvOptions{
		Connection: ConnectionOptions{Endpoint: "http://ignored:1"},
		Confirm:    ConfirmOptions{Commitment: rpc.CommitmentConfirmed, SkipPreflight: true},
	})
	require.NoError(t, err)
	require.Equal(t, rpc.LocalNet_RPC, p.Connection.Endpoint())
	require.Equal(t, rpc.CommitmentConfirmed, p.Connection.Commitment())
	require.Equal(t, rpc.CommitmentConfirmed, p.Opts.Commitment)
	require.Equal(t, rpc.CommitmentConfirmed, p.Opts.PreflightCommitment)
	require.True(t, p.Opts.SkipPreflight)

	t.Setenv("ANCHOR_WALLET", filepath.Join(t.TempDir(), "missing.json"))
	_, err = ProviderFromEnv()
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrWalletEnvNotSet)
}
