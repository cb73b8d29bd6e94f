package localnet

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrSignatureVerification = errors.New("localnet: transaction signature verification failure")
	ErrMalformedTransaction  = errors.New("localnet: malformed transaction")
	ErrAirdropTooLarge       = errors.New("localnet: airdrop request exceeds faucet limit")
)

// InstructionError is the per-instruction failure reported by the runtime,
// either a named builtin error or a program's custom code.
type InstructionError struct {
	Kind   string
	Custom *uint32
}

func customError(code uint32) *InstructionError {
	return &InstructionError{Kind: "Custom", Custom: &code}
}

func builtinError(kind string) *InstructionError {
	return &InstructionError{Kind: kind}
}

func (e *InstructionError) Error() string {
	if e.Custom != nil {
		return fmt.Sprintf("custom program error: 0x%x", *e.Custom)
	}
	return e.Kind
}

func (e *InstructionError) MarshalJSON() ([]byte, error) {
	if e.Custom != nil {
		return json.Marshal(map[string]uint32{"Custom": *e.Custom})
	}
	return json.Marshal(e.Kind)
}

// TransactionError is the transaction-level failure recorded in signature
// statuses and preflight responses.
type TransactionError struct {
	Kind        string
	Index       uint8
	Instruction *InstructionError
}

func txError(kind string) *TransactionError {
	return &TransactionError{Kind: kind}
}

func instructionFailure(index int, ie *InstructionError) *TransactionError {
	return &TransactionError{Kind: "InstructionError", Index: uint8(index), Instruction: ie}
}

func (e *TransactionError) Error() string {
	if e.Instruction != nil {
		return fmt.Sprintf("Error processing Instruction %d: %s", e.Index, e.Instruction.Error())
	}
	return e.Kind
}

func (e *TransactionError) MarshalJSON() ([]byte, error) {
	if e.Instruction != nil {
		return json.Marshal(map[string][]any{"InstructionError": {e.Index, e.Instruction}})
	}
	return json.Marshal(e.Kind)
}

// PreflightError is returned by SendTransaction when simulation fails and
// preflight checks are enabled. No state was changed.
type PreflightError struct {
	Err  *TransactionError
	Logs []string
}

func (e *PreflightError) Error() string {
	return "Transaction simulation failed: " + e.Err.Error()
}

func (e *PreflightError) Unwrap() error { return e.Err }
