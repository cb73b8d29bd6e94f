package anchor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	ErrConfirmTimeout       = errors.New("anchor: confirmation timed out")
	ErrWalletEnvNotSet      = errors.New("expected environment variable `ANCHOR_WALLET` is not set")
	ErrUnknownInstruction   = errors.New("anchor: unknown instruction")
	ErrMissingAccount       = errors.New("anchor: missing account")
	ErrInvalidArgs          = errors.New("anchor: invalid instruction arguments")
	ErrAccountNotFound      = errors.New("anchor: account not found")
	ErrAccountOwner         = errors.New("anchor: account owned by wrong program")
	ErrAccountDiscriminator = errors.New("anchor: account discriminator mismatch")
)

// Custom error codes at or above this value belong to the program itself.
const ProgramErrorOffset = 6000

// ProgramError is an instruction failure carrying a numeric error code, either
// from the Anchor framework or from the program's own error enum.
type ProgramError struct {
	Code             uint32
	Name             string
	Msg              string
	InstructionIndex int
	Logs             []string
}

func (e *ProgramError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("anchor: instruction %d failed with custom error %d", e.InstructionIndex, e.Code)
	}
	if e.Msg == "" {
		return fmt.Sprintf("anchor: instruction %d failed: %s (%d)", e.InstructionIndex, e.Name, e.Code)
	}
	return fmt.Sprintf("anchor: instruction %d failed: %s (%d): %s", e.InstructionIndex, e.Name, e.Code, e.Msg)
}

// TransactionError is any runtime rejection that is not a custom program
// error, such as BlockhashNotFound or a program panic.
type TransactionError struct {
	Raw              json.RawMessage
	Kind             string
	InstructionIndex int
	Logs             []string
}

func (e *TransactionError) Error() string {
	if e.InstructionIndex >= 0 {
		return fmt.Sprintf("anchor: transaction failed at instruction %d: %s", e.InstructionIndex, e.Kind)
	}
	return fmt.Sprintf("anchor: transaction failed: %s", e.Kind)
}

type frameworkError struct {
	name string
	msg  string
}

var frameworkErrors = map[uint32]frameworkError{
	100:  {"InstructionMissing", "8 byte instruction identifier not provided"},
	101:  {"InstructionFallbackNotFound", "Fallback functions are not supported"},
	102:  {"InstructionDidNotDeserialize", "The program could not deserialize the given instruction"},
	103:  {"InstructionDidNotSerialize", "The program could not serialize the given instruction"},
	2000: {"ConstraintMut", "A mut constraint was violated"},
	2001: {"ConstraintHasOne", "A has one constraint was violated"},
	2002: {"ConstraintSigner", "A signer constraint was violated"},
	2003: {"ConstraintRaw", "A raw constraint was violated"},
	2006: {"ConstraintSeeds", "A seeds constraint was violated"},
	3001: {"AccountDiscriminatorNotFound", "No 8 byte discriminator was found on the account"},
	3002: {"AccountDiscriminatorMismatch", "8 byte discriminator did not match what was expected"},
	3003: {"AccountDidNotDeserialize", "Failed to deserialize the account"},
	3004: {"AccountDidNotSerialize", "Failed to serialize the account"},
	3005: {"AccountNotEnoughKeys", "Not enough account keys given to the instruction"},
	3006: {"AccountNotMutable", "The given account is not mutable"},
	3007: {"AccountOwnedByWrongProgram", "The given account is owned by a different program than expected"},
	3008: {"InvalidProgramId", "Program ID was not as expected"},
	3009: {"InvalidProgramExecutable", "Program account is not executable"},
	3010: {"AccountNotSigner", "The given account did not sign"},
	3011: {"AccountNotSystemOwned", "The given account is not owned by the system program"},
	3012: {"AccountNotInitialized", "The program expected this account to be already initialized"},
	3013: {"AccountNotProgramData", "The given account is not a program data account"},
	5000: {"Deprecated", "The API being used is deprecated and should no longer be used"},
}

// FrameworkError returns the Anchor framework name and message for code.
func FrameworkError(code uint32) (name, msg string, ok bool) {
	fe, ok := frameworkErrors[code]
	return fe.name, fe.msg, ok
}

// DecodeTransactionError converts the `err` value of a signature status or
// simulation result into a *ProgramError or *TransactionError. A nil value
// yields nil.
func DecodeTransactionError(raw any, logs []string) error {
	if raw == nil {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return &TransactionError{Kind: fmt.Sprint(raw), InstructionIndex: -1, Logs: logs}
	}
	if string(encoded) == "null" {
		return nil
	}

	var asString string
	if err := json.Unmarshal(encoded, &asString); err == nil {
		return &TransactionError{Raw: encoded, Kind: asString, InstructionIndex: -1, Logs: logs}
	}

	var wrapped struct {
		InstructionError []json.RawMessage `json:"InstructionError"`
	}
	if err := json.Unmarshal(encoded, &wrapped); err == nil && len(wrapped.InstructionError) == 2 {
		var index int
		if err := json.Unmarshal(wrapped.InstructionError[0], &index); err == nil {
			var custom struct {
				Custom *uint32 `json:"Custom"`
			}
			if err := json.Unmarshal(wrapped.InstructionError[1], &custom); err == nil && custom.Custom != nil {
				pe := &ProgramError{Code: *custom.Custom, InstructionIndex: index, Logs: logs}
				if name, msg, ok := FrameworkError(pe.Code); ok {
					pe.Name, pe.Msg = name, msg
				}
				return pe
			}
			return &TransactionError{
				Raw:              encoded,
				Kind:             instructionErrorKind(wrapped.InstructionError[1]),
				InstructionIndex: index,
				Logs:             logs,
			}
		}
	}

	return &TransactionError{Raw: encoded, Kind: string(encoded), InstructionIndex: -1, Logs: logs}
}

func instructionErrorKind(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for k := range obj {
			return k
		}
	}
	return strings.TrimSpace(string(raw))
}

type simulationData struct {
	Err  any      `json:"err"`
	Logs []string `json:"logs"`
}

// translateRPCError turns a preflight failure reported by the node into a
// typed transaction error. Other errors pass through unchanged.
func translateRPCError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Data == nil {
		return err
	}
	encoded, mErr := json.Marshal(rpcErr.Data)
	if mErr != nil {
		return err
	}
	var data simulationData
	if uErr := json.Unmarshal(encoded, &data); uErr != nil || data.Err == nil {
		return err
	}
	return DecodeTransactionError(data.Err, data.Logs)
}

// Logs returns program logs attached to a transaction failure, if any.
func Logs(err error) []string {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Logs
	}
	var te *TransactionError
	if errors.As(err, &te) {
		return te.Logs
	}
	return nil
}
