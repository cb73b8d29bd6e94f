package localnet

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// System program error codes.
const (
	systemAccountAlreadyInUse        = 0
	systemResultWithNegativeLamports = 1
	systemInvalidAccountDataLength   = 3
)

const maxPermittedDataLength = 10 * 1024 * 1024

func processSystem(in *invocation) *InstructionError {
	inst, err := system.DecodeInstruction(in.metas(), in.data)
	if err != nil {
		return builtinError("InvalidInstructionData")
	}
	switch impl := inst.Impl.(type) {
	case *system.Transfer:
		if impl.Lamports == nil {
			return builtinError("InvalidInstructionData")
		}
		return systemTransfer(in, *impl.Lamports)
	case *system.CreateAccount:
		if impl.Lamports == nil || impl.Space == nil || impl.Owner == nil {
			return builtinError("InvalidInstructionData")
		}
		return systemCreateAccount(in, *impl.Lamports, *impl.Space, *impl.Owner)
	default:
		in.log("Unsupported system instruction %d", inst.TypeID.Uint32())
		return builtinError("InvalidInstructionData")
	}
}

func systemTransfer(in *invocation, lamports uint64) *InstructionError {
	from, ierr := in.account(0)
	if ierr != nil {
		return ierr
	}
	to, ierr := in.account(1)
	if ierr != nil {
		return ierr
	}
	if !from.signer {
		in.log("Transfer: `from` account %s must sign", from.key)
		return builtinError("MissingRequiredSignature")
	}
	if len(from.account.Data) > 0 {
		in.log("Transfer: `from` must not carry data")
		return builtinError("InvalidArgument")
	}
	if from.account.Lamports < lamports {
		in.log("Transfer: insufficient lamports %d, need %d", from.account.Lamports, lamports)
		return customError(systemResultWithNegativeLamports)
	}
	from.account.Lamports -= lamports
	to.account.Lamports += lamports
	return nil
}

func systemCreateAccount(in *invocation, lamports, space uint64, owner solana.PublicKey) *InstructionError {
	from, ierr := in.account(0)
	if ierr != nil {
		return ierr
	}
	to, ierr := in.account(1)
	if ierr != nil {
		return ierr
	}
	if !from.signer || !to.signer {
		in.log("Create Account: both funding and new account must sign")
		return builtinError("MissingRequiredSignature")
	}
	if to.account.Lamports > 0 || len(to.account.Data) > 0 || to.account.Owner != solana.SystemProgramID {
		in.log("Create Account: account %s already in use", to.key)
		return customError(systemAccountAlreadyInUse)
	}
	if space > maxPermittedDataLength {
		return customError(systemInvalidAccountDataLength)
	}
	if from.account.Lamports < lamports {
		in.log("Transfer: insufficient lamports %d, need %d", from.account.Lamports, lamports)
		return customError(systemResultWithNegativeLamports)
	}
	to.account.Data = make([]byte, space)
	to.account.Owner = owner
	from.account.Lamports -= lamports
	to.account.Lamports += lamports
	return nil
}
