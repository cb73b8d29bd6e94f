package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type rpcHandler func(params json.RawMessage) (any, map[string]any)

// fakeNode answers JSON-RPC calls from a per-method handler table.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string]int
}

func newFakeNode(t *testing.T, handlers map[string]rpcHandler) (*fakeNode, *httptest.Server) {
	t.Helper()
	node := &fakeNode{handlers: handlers, calls: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(node.serve))
	t.Cleanup(srv.Close)
	return node, srv
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.calls[req.Method]++
	h := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if h == nil {
		resp["error"] = map[string]any{"code": -32601, "message": "Method not found"}
	} else if result, rpcErr := h(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func statusResult(slot uint64, status string, errValue any) any {
	return map[string]any{
		"context": map[string]any{"slot": slot},
		"value": []any{map[string]any{
			"slot":               slot,
			"confirmations":      0,
			"err":                errValue,
			"confirmationStatus": status,
			"status":             map[string]any{"Ok": nil},
		}},
	}
}

func TestConfirmSignatureWaitsForCommitment(t *testing.T) {
	var polls int
	var mu sync.Mutex
	_, srv := newFakeNode(t, map[string]rpcHandler{
		"getSignatureStatuses": func(json.RawMessage) (any, map[string]any) {
			mu.Lock()
			defer mu.Unlock()
			polls++
			switch {
			case polls == 1:
				return map[string]any{"context": map[string]any{"slot": 1}, "value": []any{nil}}, nil
			case polls == 2:
				return statusResult(5, "processed", nil), nil
			default:
				return statusResult(5, "confirmed", nil), nil
			}
		},
	})
	conn := NewConnection(ConnectionOptions{Endpoint: srv.URL, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := conn.ConfirmSignature(ctx, solana.Signature{1}, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	require.Equal(t, uint64(5), st.Slot)
	require.Equal(t, rpc.ConfirmationStatusConfirmed, st.ConfirmationStatus)
	mu.Lock()
	require.GreaterOrEqual(t, polls, 3)
	mu.Unlock()
}

func TestConfirmSignatureReturnsLandedFailure(t *testing.T) {
	_, srv := newFakeNode(t, map[string]rpcHandler{
		"getSignatureStatuses": func(json.RawMessage) (any, map[string]any) {
			return statusResult(9, "processed", map[string]any{
				"InstructionError": []any{0, map[string]any{"Custom": 6002}},
			}), nil
		},
	})
	conn := NewConnection(ConnectionOptions{Endpoint: srv.URL, PollInterval: 5 * time.Millisecond})

	st, err := conn.ConfirmSignature(context.Background(), solana.Signature{2}, rpc.CommitmentProcessed)
	require.NotNil(t, st)
	var pe *ProgramError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, uint32(6002), pe.Code)
}

func TestConfirmSignatureTimesOut(t *testing.T) {
	_, srv := newFakeNode(t, map[string]rpcHandler{
		"getSignatureStatuses": func(json.RawMessage) (any, map[string]any) {
			return map[string]any{"context": map[string]any{"slot": 1}, "value": []any{nil}}, nil
		},
	})
	conn := NewConnection(ConnectionOptions{Endpoint: srv.URL, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := conn.ConfirmSignature(ctx, solana.Signature{3}, rpc.CommitmentProcessed)
	require.ErrorIs(t, err, ErrConfirmTimeout)
}

func TestAccountInfoNotFound(t *testing.T) {
	_, srv := newFakeNode(t, map[string]rpcHandler{
		"getAccountInfo": func(json.RawMessage) (any, map[string]any) {
			return map[string]any{"context": map[string]any{"slot": 1}, "value": nil}, nil
		},
	})
	conn := NewConnection(ConnectionOptions{Endpoint: srv.URL})
	_, err := conn.AccountInfo(context.Background(), solana.SystemProgramID)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCallsAreRecordedInHistogram(t *testing.T) {
	_, srv := newFakeNode(t, map[string]rpcHandler{
		"getHealth": func(json.RawMessage) (any, map[string]any) { return "ok", nil },
		"getBalance": func(json.RawMessage) (any, map[string]any) {
			return map[string]any{"context": map[string]any{"slot": 1}, "value": 42}, nil
		},
	})
	reg := prometheus.NewRegistry()
	conn := NewConnection(ConnectionOptions{Endpoint: srv.URL, Registerer: reg, RateLimit: 100})

	require.NoError(t, conn.Health(context.Background()))
	bal, err := conn.Balance(context.Background(), solana.SystemProgramID)
	require.NoError(t, err)
	require.Equal(t, uint64(42), bal)

	require.Equal(t, 2, testutil.CollectAndCount(reg, "anchor_rpc_duration_seconds"))

	again := NewConnection(ConnectionOptions{Endpoint: srv.URL, Registerer: reg})
	require.NoError(t, again.Health(context.Background()))
}

func TestSendTransactionSurfacesPreflightFailure(t *testing.T) {
	_, srv := newFakeNode(t, map[string]rpcHandler{
		"sendTransaction": func(json.RawMessage) (any, map[string]any) {
			return nil, map[string]any{
				"code":    -32002,
				"message": "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x1771",
				"data": map[string]any{
					"err":  map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6001}}},
					"logs": []string{"Program log: AnchorError occurred"},
				},
			}
		},
	})
	conn := NewConnection(ConnectionOptions{Endpoint: srv.URL})
	tx := signedTestTransaction(t)

	_, err := conn.SendTransaction(context.Background(), tx, rpc.TransactionOpts{})
	var pe *ProgramError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, uint32(6001), pe.Code)
	require.Equal(t, []string{"Program log: AnchorError occurred"}, pe.Logs)
}

func signedTestTransaction(t *testing.T) *solana.Transaction {
	t.Helper()
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ix := solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(payer.PublicKey(), true, true),
	}, []byte{2, 0, 0, 0})
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{7}, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}
