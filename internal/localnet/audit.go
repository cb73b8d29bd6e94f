package localnet

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"solaudit/internal/anchor"
	"solaudit/internal/programs/solanaaudit"
)

// Anchor framework error codes raised by the account checks.
const (
	anchorInstructionMissing           = 100
	anchorInstructionFallbackNotFound  = 101
	anchorInstructionDidNotDeserialize = 102
	anchorConstraintMut                = 2000
	anchorDiscriminatorNotFound        = 3001
	anchorDiscriminatorMismatch        = 3002
	anchorAccountDidNotDeserialize     = 3003
	anchorAccountNotEnoughKeys         = 3005
	anchorAccountOwnedByWrongProgram   = 3007
	anchorInvalidProgramID             = 3008
	anchorInvalidProgramExecutable     = 3009
	anchorAccountNotSigner             = 3010
	anchorAccountNotInitialized        = 3012
)

var (
	initializeDiscriminator = anchor.InstructionDiscriminator("initialize")
	slashingDiscriminator   = anchor.InstructionDiscriminator("slashing")
)

// auditProgram is the solana-audit program executed natively.
type auditProgram struct {
	id solana.PublicKey
}

func newAuditProgram(id solana.PublicKey) *auditProgram {
	return &auditProgram{id: id}
}

func (p *auditProgram) process(in *invocation) *InstructionError {
	if len(in.data) < 8 {
		return anchorError(in, "", anchorInstructionMissing)
	}
	var disc [8]byte
	copy(disc[:], in.data[:8])
	switch disc {
	case initializeDiscriminator:
		in.log("Instruction: Initialize")
		return nil
	case slashingDiscriminator:
		in.log("Instruction: Slashing")
		return p.slashing(in, in.data[8:])
	default:
		return anchorError(in, "", anchorInstructionFallbackNotFound)
	}
}

type slashingArgs struct {
	amount   uint64
	router   uint8
	isLocked uint8
}

func decodeSlashingArgs(data []byte) (slashingArgs, error) {
	dec := bin.NewBorshDecoder(data)
	var args slashingArgs
	var err error
	if args.amount, err = dec.ReadUint64(bin.LE); err != nil {
		return args, err
	}
	if args.router, err = dec.ReadUint8(); err != nil {
		return args, err
	}
	if args.isLocked, err = dec.ReadUint8(); err != nil {
		return args, err
	}
	return args, nil
}

func (p *auditProgram) slashing(in *invocation, data []byte) *InstructionError {
	args, err := decodeSlashingArgs(data)
	if err != nil {
		return anchorError(in, "", anchorInstructionDidNotDeserialize)
	}
	if len(in.accounts) < 5 {
		return anchorError(in, "", anchorAccountNotEnoughKeys)
	}
	authority, vault, stakeMint, stakePool, tokenProgram := in.accounts[0], in.accounts[1], in.accounts[2], in.accounts[3], in.accounts[4]

	// Deserialization, in field order.
	if !authority.signer {
		return anchorError(in, "authority", anchorAccountNotSigner)
	}
	if code := checkOwned(vault, solana.TokenProgramID); code != 0 {
		return anchorError(in, "vault", code)
	}
	if _, err := decodeTokenAccount(vault.account.Data); err != nil {
		return anchorError(in, "vault", anchorAccountDidNotDeserialize)
	}
	if code := checkOwned(stakeMint, solana.TokenProgramID); code != 0 {
		return anchorError(in, "stake_mint", code)
	}
	if _, err := decodeMint(stakeMint.account.Data); err != nil {
		return anchorError(in, "stake_mint", anchorAccountDidNotDeserialize)
	}
	if code := checkOwned(stakePool, p.id); code != 0 {
		return anchorError(in, "stake_pool", code)
	}
	if len(stakePool.account.Data) < 8 {
		return anchorError(in, "stake_pool", anchorDiscriminatorNotFound)
	}
	if !bytes.Equal(stakePool.account.Data[:8], solanaaudit.StakePoolDiscriminator[:]) {
		return anchorError(in, "stake_pool", anchorDiscriminatorMismatch)
	}
	if tokenProgram.key != solana.TokenProgramID {
		return anchorError(in, "token_program", anchorInvalidProgramID)
	}
	if !tokenProgram.account.Executable {
		return anchorError(in, "token_program", anchorInvalidProgramExecutable)
	}

	// Constraints.
	for _, c := range []struct {
		name string
		acct *instructionAccount
	}{
		{"authority", authority},
		{"vault", vault},
		{"stake_mint", stakeMint},
		{"stake_pool", stakePool},
	} {
		if !c.acct.writable {
			return anchorError(in, c.name, anchorConstraintMut)
		}
	}
	var pool solanaaudit.StakePool
	if err := pool.UnmarshalBinary(stakePool.account.Data); err != nil {
		return anchorError(in, "stake_pool", anchorAccountDidNotDeserialize)
	}
	if pool.Vault != vault.key {
		in.log("Left: %s", pool.Vault)
		in.log("Right: %s", vault.key)
		return anchorError(in, "stake_pool", solanaaudit.ErrCodeInvalidStakePoolVault)
	}
	if pool.StakeMint != stakeMint.key {
		in.log("Left: %s", pool.StakeMint)
		in.log("Right: %s", stakeMint.key)
		return anchorError(in, "stake_pool", solanaaudit.ErrCodeInvalidAuthority)
	}

	// Handler. The stake pool stays mutably borrowed for the rest of it, and
	// indexing the fixed array panics for router >= MaxRewardPools.
	release := in.borrowMut(stakePool.key)
	defer release()
	reward := &pool.RewardPools[int(args.router)]
	reward.IsLocked = args.isLocked
	stakePool.account.Data[solanaaudit.RewardPoolLockOffset(int(args.router))] = reward.IsLocked

	// The transfer result is discarded, so slashing succeeds whatever it returns.
	transfer := token.NewTransferInstruction(args.amount, vault.key, vault.key, stakePool.key, nil).Build()
	if ierr := in.invokeSigned(transfer, solanaaudit.StakePoolSignerSeeds(&pool)); ierr != nil {
		in.exec.logger.Debug().
			Str("program", in.programID.String()).
			Str("error", ierr.Error()).
			Msg("localnet: slashing transfer result discarded")
	}
	return nil
}

func checkOwned(a *instructionAccount, owner solana.PublicKey) uint32 {
	if a.account.Owner == solana.SystemProgramID && a.account.Lamports == 0 {
		return anchorAccountNotInitialized
	}
	if a.account.Owner != owner {
		return anchorAccountOwnedByWrongProgram
	}
	return 0
}

// anchorError logs the error the way Anchor programs do and returns it as a
// custom program error.
func anchorError(in *invocation, account string, code uint32) *InstructionError {
	name, msg := errorText(code)
	if account != "" {
		in.log("AnchorError caused by account: %s. Error Code: %s. Error Number: %d. Error Message: %s.", account, name, code, msg)
	} else {
		in.log("AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.", name, code, msg)
	}
	return customError(code)
}

func errorText(code uint32) (string, string) {
	if code >= anchor.ProgramErrorOffset {
		if idl, err := solanaaudit.IDL(); err == nil {
			if e, ok := idl.Error(code); ok {
				return e.Name, e.Msg
			}
		}
	}
	name, msg, _ := anchor.FrameworkError(code)
	return name, msg
}
