package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"solaudit/internal/anchor"
	"solaudit/internal/http/handlers"
	"solaudit/internal/localnet"
	"solaudit/internal/wallet"
)

func newServer(t *testing.T, opts Options) (*localnet.Validator, *httptest.Server) {
	t.Helper()
	reg := prometheus.NewRegistry()
	v, err := localnet.New(localnet.Options{Registerer: reg})
	require.NoError(t, err)
	srv := httptest.NewServer(NewRouter(handlers.NewApp(v, reg, nil), opts))
	t.Cleanup(srv.Close)
	return v, srv
}

func newConnection(srv *httptest.Server) *anchor.Connection {
	return anchor.NewConnection(anchor.ConnectionOptions{
		Endpoint:     srv.URL,
		Commitment:   rpc.CommitmentProcessed,
		PollInterval: 10 * time.Millisecond,
		Registerer:   prometheus.NewRegistry(),
	})
}

func TestClientRoundTrip(t *testing.T) {
	_, srv := newServer(t, Options{})
	conn := newConnection(srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.WaitForHealthy(ctx))

	kp := wallet.MustGenerate()
	sig, err := conn.RequestAirdrop(ctx, kp.PublicKey(), 2*solana.LAMPORTS_PER_SOL)
	require.NoError(t, err)
	_, err = conn.ConfirmSignature(ctx, sig, rpc.CommitmentProcessed)
	require.NoError(t, err)

	bal, err := conn.Balance(ctx, kp.PublicKey())
	require.NoError(t, err)
	require.Equal(t, 2*solana.LAMPORTS_PER_SOL, bal)

	acct, err := conn.AccountInfo(ctx, kp.PublicKey())
	require.NoError(t, err)
	require.Equal(t, solana.SystemProgramID, acct.Owner)
	require.Equal(t, 2*solana.LAMPORTS_PER_SOL, acct.Lamports)

	_, err = conn.AccountInfo(ctx, solana.NewWallet().PublicKey())
	require.ErrorIs(t, err, anchor.ErrAccountNotFound)

	provider := anchor.NewProvider(conn, kp, anchor.ConfirmOptions{}, nil)
	to := solana.NewWallet().PublicKey()
	sig, err = provider.SendAndConfirm(ctx, []solana.Instruction{
		system.NewTransferInstruction(1_000, kp.PublicKey(), to).Build(),
	})
	require.NoError(t, err)
	require.False(t, sig.IsZero())

	bal, err = conn.Balance(ctx, to)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), bal)
}

func TestClientSeesPreflightFailure(t *testing.T) {
	v, srv := newServer(t, Options{})
	conn := newConnection(srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kp := wallet.MustGenerate()
	v.SetAccount(kp.PublicKey(), &localnet.Account{Lamports: 100_000, Owner: solana.SystemProgramID})
	provider := anchor.NewProvider(conn, kp, anchor.ConfirmOptions{}, nil)

	_, err := provider.SendAndConfirm(ctx, []solana.Instruction{
		system.NewTransferInstruction(solana.LAMPORTS_PER_SOL, kp.PublicKey(), solana.NewWallet().PublicKey()).Build(),
	})
	var pe *anchor.ProgramError
	require.True(t, errors.As(err, &pe), "got %v", err)
	require.Equal(t, uint32(1), pe.Code)
	require.NotEmpty(t, anchor.Logs(err))
	require.Equal(t, uint64(100_000), v.Balance(kp.PublicKey()))
}

func TestSkipPreflightFailureLandsOnChain(t *testing.T) {
	v, srv := newServer(t, Options{})
	conn := newConnection(srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kp := wallet.MustGenerate()
	v.SetAccount(kp.PublicKey(), &localnet.Account{Lamports: 100_000, Owner: solana.SystemProgramID})
	provider := anchor.NewProvider(conn, kp, anchor.ConfirmOptions{SkipPreflight: true}, nil)

	sig, err := provider.SendAndConfirm(ctx, []solana.Instruction{
		system.NewTransferInstruction(solana.LAMPORTS_PER_SOL, kp.PublicKey(), solana.NewWallet().PublicKey()).Build(),
	})
	require.False(t, sig.IsZero())
	var pe *anchor.ProgramError
	require.True(t, errors.As(err, &pe), "got %v", err)
	require.Equal(t, uint32(1), pe.Code)
	require.Equal(t, uint64(100_000-localnet.LamportsPerSignature), v.Balance(kp.PublicKey()))
}

func TestRoutes(t *testing.T) {
	_, srv := newServer(t, Options{CORSAllowedOrigins: []string{"http://localhost:3000"}})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRPCRateLimited(t *testing.T) {
	_, srv := newServer(t, Options{RateLimitPerMin: 2})
	body := `{"jsonrpc":"2.0","id":1,"method":"getSlot"}`

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
