package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"solaudit/internal/wallet"
)

const testIDL = `{
  "version": "0.1.0",
  "name": "solana_audit",
  "instructions": [
    {"name": "initialize", "accounts": [], "args": []},
    {
      "name": "slashing",
      "accounts": [
        {"name": "authority", "isMut": true, "isSigner": true},
        {"name": "vault", "isMut": true, "isSigner": false},
        {"name": "stakeMint", "isMut": true, "isSigner": false},
        {"name": "stakePool", "isMut": true, "isSigner": false},
        {"name": "tokenProgram", "isMut": false, "isSigner": false}
      ],
      "args": [
        {"name": "amount", "type": "u64"},
        {"name": "router", "type": "u8"},
        {"name": "isLocked", "type": "u8"}
      ]
    }
  ],
  "accounts": [
    {"name": "StakePool", "type": {"kind": "struct", "fields": [
      {"name": "creator", "type": "publicKey"},
      {"name": "rewardPools", "type": {"array": [{"defined": "RewardPool"}, 10]}}
    ]}}
  ],
  "errors": [
    {"code": 6000, "name": "InvalidAuthority", "msg": "Invalid stake pool authority"},
    {"code": 6001, "name": "InvalidStakePoolVault", "msg": "Invalid stake pool vault"}
  ],
  "metadata": {"address": "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"}
}`

func testProgram(t *testing.T, endpoint string) *Program {
	t.Helper()
	idl, err := ParseIDL([]byte(testIDL))
	require.NoError(t, err)
	conn := NewConnection(ConnectionOptions{Endpoint: endpoint, PollInterval: 5 * time.Millisecond})
	provider := NewProvider(conn, wallet.MustGenerate(), ConfirmOptions{Timeout: 2 * time.Second}, nil)
	prog, err := NewProgram(idl, solana.PublicKey{}, provider)
	require.NoError(t, err)
	return prog
}

func TestParseIDLKeepsCompositeTypes(t *testing.T) {
	idl, err := ParseIDL([]byte(testIDL))
	require.NoError(t, err)
	def, ok := idl.Account("stake_pool")
	require.True(t, ok)
	require.Equal(t, "publicKey", def.Type.Fields[0].Type.Primitive)
	require.Contains(t, def.Type.Fields[1].Type.String(), `"array"`)

	ix, ok := idl.Instruction("Slashing")
	require.True(t, ok)
	require.Len(t, ix.Accounts, 5)

	_, err = ParseIDL([]byte(`{"instructions": []}`))
	require.Error(t, err)
}

func TestMethodsInstructionOrdersAccounts(t *testing.T) {
	prog := testProgram(t, "http://127.0.0.1:1")
	authority := wallet.MustGenerate().PublicKey()
	vault := wallet.MustGenerate().PublicKey()
	mint := wallet.MustGenerate().PublicKey()
	pool := wallet.MustGenerate().PublicKey()

	ix, err := prog.Methods("slashing", uint64(5), uint8(1), uint8(1)).
		Accounts(Accounts{
			"stake_pool": pool,
			"authority":  authority,
			"vault":      vault,
			"stakeMint":  mint,
		}).
		Instruction()
	require.NoError(t, err)
	require.Equal(t, prog.ID(), ix.ProgramID())

	metas := ix.Accounts()
	require.Len(t, metas, 5)
	require.Equal(t, authority, metas[0].PublicKey)
	require.True(t, metas[0].IsSigner)
	require.Equal(t, pool, metas[3].PublicKey)
	require.Equal(t, solana.TokenProgramID, metas[4].PublicKey)
	require.False(t, metas[4].IsWritable)
}

func TestMethodsErrorsBeforeNetwork(t *testing.T) {
	prog := testProgram(t, "http://127.0.0.1:1")

	_, err := prog.Methods("missing").Instruction()
	require.ErrorIs(t, err, ErrUnknownInstruction)

	_, err = prog.Methods("slashing", uint64(5), uint8(1), uint8(1)).Instruction()
	require.ErrorIs(t, err, ErrMissingAccount)

	_, err = prog.Methods("initialize", 1).RPC(context.Background())
	require.ErrorIs(t, err, ErrInvalidArgs)
}

func TestRPCSendsAndConfirms(t *testing.T) {
	node, srv := newFakeNode(t, map[string]rpcHandler{
		"getLatestBlockhash": func(json.RawMessage) (any, map[string]any) {
			return map[string]any{
				"context": map[string]any{"slot": 3},
				"value":   map[string]any{"blockhash": solana.Hash{9}.String(), "lastValidBlockHeight": 150},
			}, nil
		},
		"sendTransaction": func(params json.RawMessage) (any, map[string]any) {
			var raw []json.RawMessage
			_ = json.Unmarshal(params, &raw)
			var encoded string
			_ = json.Unmarshal(raw[0], &encoded)
			tx, err := solana.TransactionFromBase64(encoded)
			if err != nil {
				return nil, map[string]any{"code": -32602, "message": err.Error()}
			}
			if err := tx.VerifySignatures(); err != nil {
				return nil, map[string]any{"code": -32003, "message": err.Error()}
			}
			return tx.Signatures[0].String(), nil
		},
		"getSignatureStatuses": func(json.RawMessage) (any, map[string]any) {
			return statusResult(4, "processed", nil), nil
		},
	})
	prog := testProgram(t, srv.URL)

	sig, err := prog.Methods("initialize").RPC(context.Background())
	require.NoError(t, err)
	require.False(t, sig.IsZero())
	require.Equal(t, 1, node.count("sendTransaction"))
}

func TestRPCNamesProgramErrorsFromIDL(t *testing.T) {
	_, srv := newFakeNode(t, map[string]rpcHandler{
		"getLatestBlockhash": func(json.RawMessage) (any, map[string]any) {
			return map[string]any{
				"context": map[string]any{"slot": 3},
				"value":   map[string]any{"blockhash": solana.Hash{9}.String(), "lastValidBlockHeight": 150},
			}, nil
		},
		"sendTransaction": func(json.RawMessage) (any, map[string]any) {
			return nil, map[string]any{
				"code":    -32002,
				"message": "Transaction simulation failed",
				"data": map[string]any{
					"err":  map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6001}}},
					"logs": []string{},
				},
			}
		},
	})
	prog := testProgram(t, srv.URL)
	signer := wallet.MustGenerate()

	_, err := prog.Methods("slashing", uint64(1), uint8(0), uint8(1)).
		Accounts(Accounts{
			"authority": signer.PublicKey(),
			"vault":     solana.PublicKey{1},
			"stakeMint": solana.PublicKey{2},
			"stakePool": solana.PublicKey{3},
		}).
		Signers(signer).
		RPC(context.Background())

	var pe *ProgramError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "InvalidStakePoolVault", pe.Name)
	require.Equal(t, "Invalid stake pool vault", pe.Msg)
}
