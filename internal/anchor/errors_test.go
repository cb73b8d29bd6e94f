package anchor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/require"
)

func TestDecodeTransactionErrorCustom(t *testing.T) {
	raw := map[string]any{
		"InstructionError": []any{float64(0), map[string]any{"Custom": float64(6001)}},
	}
	err := DecodeTransactionError(raw, []string{"Program log: boom"})

	var pe *ProgramError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, uint32(6001), pe.Code)
	require.Equal(t, 0, pe.InstructionIndex)
	require.Empty(t, pe.Name)
	require.Equal(t, []string{"Program log: boom"}, Logs(err))
}

func TestDecodeTransactionErrorFrameworkCode(t *testing.T) {
	raw := map[string]any{
		"InstructionError": []any{float64(1), map[string]any{"Custom": float64(3010)}},
	}
	var pe *ProgramError
	require.True(t, errors.As(DecodeTransactionError(raw, nil), &pe))
	require.Equal(t, "AccountNotSigner", pe.Name)
	require.Equal(t, 1, pe.InstructionIndex)
}

func TestDecodeTransactionErrorRuntime(t *testing.T) {
	tests := []struct {
		name  string
		raw   any
		kind  string
		index int
	}{
		{name: "plain", raw: "BlockhashNotFound", kind: "BlockhashNotFound", index: -1},
		{name: "panic", raw: map[string]any{"InstructionError": []any{float64(0), "ProgramFailedToComplete"}}, kind: "ProgramFailedToComplete", index: 0},
		{name: "object detail", raw: map[string]any{"InstructionError": []any{float64(2), map[string]any{"BorshIoError": "x"}}}, kind: "BorshIoError", index: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var te *TransactionError
			require.True(t, errors.As(DecodeTransactionError(tc.raw, nil), &te))
			require.Equal(t, tc.kind, te.Kind)
			require.Equal(t, tc.index, te.InstructionIndex)
		})
	}
	require.NoError(t, DecodeTransactionError(nil, nil))
}

func TestTranslateRPCError(t *testing.T) {
	rpcErr := &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed",
		Data: map[string]any{
			"err":  map[string]any{"InstructionError": []any{float64(0), map[string]any{"Custom": float64(6000)}}},
			"logs": []any{"Program log: AnchorError"},
		},
	}
	err := translateRPCError(fmt.Errorf("anchor: sendTransaction: %w", rpcErr))
	var pe *ProgramError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, uint32(6000), pe.Code)
	require.Equal(t, []string{"Program log: AnchorError"}, pe.Logs)

	plain := &jsonrpc.RPCError{Code: -32003, Message: "Transaction signature verification failure"}
	require.Same(t, error(plain), translateRPCError(plain))
}

func TestProgramErrorMessage(t *testing.T) {
	pe := &ProgramError{Code: 6001, Name: "InvalidStakePoolVault", Msg: "Invalid stake pool vault"}
	require.Contains(t, pe.Error(), "InvalidStakePoolVault (6001)")
	unnamed := &ProgramError{Code: 6100}
	require.Contains(t, unnamed.Error(), "custom error 6100")
}
