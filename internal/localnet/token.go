package localnet

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// SPL Token error codes.
const (
	tokenInsufficientFunds = 1
	tokenMintMismatch      = 3
	tokenOwnerMismatch     = 4
	tokenOverflow          = 14
	tokenAccountFrozen     = 17
)

func processToken(in *invocation) *InstructionError {
	inst, err := token.DecodeInstruction(in.metas(), in.data)
	if err != nil {
		return builtinError("InvalidInstructionData")
	}
	switch impl := inst.Impl.(type) {
	case *token.Transfer:
		in.log("Instruction: Transfer")
		if impl.Amount == nil {
			return builtinError("InvalidInstructionData")
		}
		return tokenTransfer(in, *impl.Amount)
	default:
		in.log("Instruction %d is not supported", inst.TypeID.Uint8())
		return builtinError("InvalidInstructionData")
	}
}

func tokenTransfer(in *invocation, amount uint64) *InstructionError {
	if len(in.accounts) < 3 {
		return builtinError("NotEnoughAccountKeys")
	}
	srcInfo, dstInfo, authority := in.accounts[0], in.accounts[1], in.accounts[2]
	for _, info := range []*instructionAccount{srcInfo, dstInfo} {
		if info.account.Owner != solana.TokenProgramID {
			return builtinError("IncorrectProgramId")
		}
	}
	src, err := decodeTokenAccount(srcInfo.account.Data)
	if err != nil {
		return builtinError("UninitializedAccount")
	}
	dst, err := decodeTokenAccount(dstInfo.account.Data)
	if err != nil {
		return builtinError("UninitializedAccount")
	}
	if src.State == token.Frozen || dst.State == token.Frozen {
		in.log("Error: Account is frozen")
		return customError(tokenAccountFrozen)
	}
	if src.Amount < amount {
		in.log("Error: insufficient funds")
		return customError(tokenInsufficientFunds)
	}
	if src.Mint != dst.Mint {
		in.log("Error: Account not associated with this Mint")
		return customError(tokenMintMismatch)
	}

	switch {
	case src.Delegate != nil && *src.Delegate == authority.key:
		if !authority.signer {
			return builtinError("MissingRequiredSignature")
		}
		if src.DelegatedAmount < amount {
			in.log("Error: insufficient funds")
			return customError(tokenInsufficientFunds)
		}
		if srcInfo.key != dstInfo.key {
			src.DelegatedAmount -= amount
			if src.DelegatedAmount == 0 {
				src.Delegate = nil
			}
		}
	default:
		if src.Owner != authority.key {
			in.log("Error: owner does not match")
			return customError(tokenOwnerMismatch)
		}
		if !authority.signer {
			return builtinError("MissingRequiredSignature")
		}
	}

	if srcInfo.key == dstInfo.key {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		in.log("Error: Operation overflowed")
		return customError(tokenOverflow)
	}
	src.Amount -= amount
	dst.Amount += amount

	srcData, err := encodeTokenAccount(src)
	if err != nil {
		return builtinError("InvalidAccountData")
	}
	dstData, err := encodeTokenAccount(dst)
	if err != nil {
		return builtinError("InvalidAccountData")
	}
	srcInfo.account.Data = srcData
	dstInfo.account.Data = dstData
	return nil
}
