// Package solanaaudit is a typed client for the solana_audit Anchor program:
// the initialize smoke-test instruction and the stake pool slashing handler.
package solanaaudit

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"solaudit/internal/anchor"
	"solaudit/internal/infra"
	"solaudit/internal/wallet"
)

// ProgramName is the workspace name used in Anchor.toml.
const ProgramName = "solana_audit"

// DefaultProgramID is the address declared by the program.
var DefaultProgramID = solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS")

const (
	ErrCodeInvalidAuthority            uint32 = 6000
	ErrCodeInvalidStakePoolVault       uint32 = 6001
	ErrCodeInvalidRewardPoolVaultIndex uint32 = 6002
)

//go:embed solana_audit.json
var idlJSON []byte

var (
	idlOnce   sync.Once
	parsedIDL *anchor.IDL
	idlErr    error
)

// IDL returns the embedded program interface.
func IDL() (*anchor.IDL, error) {
	idlOnce.Do(func() {
		parsedIDL, idlErr = anchor.ParseIDL(idlJSON)
	})
	return parsedIDL, idlErr
}

// Client calls the program through an anchor provider.
type Client struct {
	program *anchor.Program
	logger  *infra.Logger
}

// NewClient binds the embedded IDL to programID, or DefaultProgramID when zero.
func NewClient(provider *anchor.Provider, programID solana.PublicKey, logger *infra.Logger) (*Client, error) {
	idl, err := IDL()
	if err != nil {
		return nil, err
	}
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	prog, err := anchor.NewProgram(idl, programID, provider)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{program: prog, logger: logger}, nil
}

func (c *Client) Program() *anchor.Program { return c.program }

// Initialize invokes the zero-argument initialize instruction.
func (c *Client) Initialize(ctx context.Context) (solana.Signature, error) {
	sig, err := c.program.Methods("initialize").RPC(ctx)
	if err != nil {
		return sig, fmt.Errorf("solanaaudit: initialize: %w", err)
	}
	c.logger.Info().Str("signature", sig.String()).Msg("solanaaudit: initialized")
	return sig, nil
}

// SlashingAccounts are the accounts of the slashing instruction. A zero
// Authority means the provider wallet.
type SlashingAccounts struct {
	Authority solana.PublicKey
	Vault     solana.PublicKey
	StakeMint solana.PublicKey
	StakePool solana.PublicKey
}

type SlashingArgs struct {
	Amount   uint64
	Router   uint8
	IsLocked uint8
}

// SlashingInstruction builds the instruction without sending it.
func (c *Client) SlashingInstruction(accts SlashingAccounts, args SlashingArgs) (solana.Instruction, error) {
	return c.slashing(accts, args).Instruction()
}

// Slashing sets reward_pools[router].is_locked and moves amount between the
// pool vault and itself under the pool's signature.
func (c *Client) Slashing(ctx context.Context, accts SlashingAccounts, args SlashingArgs, signers ...*wallet.Keypair) (solana.Signature, error) {
	sig, err := c.slashing(accts, args).Signers(signers...).RPC(ctx)
	if err != nil {
		return sig, fmt.Errorf("solanaaudit: slashing: %w", err)
	}
	c.logger.Info().
		Str("signature", sig.String()).
		Str("stake_pool", accts.StakePool.String()).
		Uint8("router", args.Router).
		Msg("solanaaudit: slashed")
	return sig, nil
}

func (c *Client) slashing(accts SlashingAccounts, args SlashingArgs) *anchor.MethodBuilder {
	authority := accts.Authority
	if authority.IsZero() && c.program.Provider() != nil {
		authority = c.program.Provider().PublicKey()
	}
	return c.program.Methods("slashing", args.Amount, args.Router, args.IsLocked).
		Accounts(anchor.Accounts{
			"authority": authority,
			"vault":     accts.Vault,
			"stakeMint": accts.StakeMint,
			"stakePool": accts.StakePool,
		})
}

// FetchStakePool loads and decodes a stake pool account.
func (c *Client) FetchStakePool(ctx context.Context, address solana.PublicKey) (*StakePool, error) {
	data, err := c.program.FetchAccount(ctx, stakePoolAccount, address)
	if err != nil {
		return nil, fmt.Errorf("solanaaudit: fetch stake pool: %w", err)
	}
	var pool StakePool
	if err := pool.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &pool, nil
}
