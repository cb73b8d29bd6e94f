package anchor

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solaudit/internal/wallet"
)

// Accounts maps IDL account names to addresses. Camel and snake case keys
// are equivalent.
type Accounts map[string]solana.PublicKey

var wellKnownAccounts = map[string]solana.PublicKey{
	"systemprogram":          solana.SystemProgramID,
	"tokenprogram":           solana.TokenProgramID,
	"associatedtokenprogram": solana.SPLAssociatedTokenAccountProgramID,
	"rent":                   solana.SysVarRentPubkey,
	"clock":                  solana.SysVarClockPubkey,
}

// Program binds an IDL to a deployed address and a provider.
type Program struct {
	idl       *IDL
	programID solana.PublicKey
	provider  *Provider
}

// NewProgram binds idl to programID. A zero programID falls back to the
// address in the IDL metadata.
func NewProgram(idl *IDL, programID solana.PublicKey, provider *Provider) (*Program, error) {
	if idl == nil {
		return nil, errors.New("anchor: idl is required")
	}
	if programID.IsZero() {
		addr, err := idl.Address()
		if err != nil {
			return nil, err
		}
		if addr.IsZero() {
			return nil, fmt.Errorf("anchor: no program id for %s", idl.Name)
		}
		programID = addr
	}
	return &Program{idl: idl, programID: programID, provider: provider}, nil
}

func (p *Program) ID() solana.PublicKey { return p.programID }
func (p *Program) IDL() *IDL            { return p.idl }
func (p *Program) Provider() *Provider  { return p.provider }

// Methods starts building a call to the named instruction.
func (p *Program) Methods(name string, args ...any) *MethodBuilder {
	b := &MethodBuilder{program: p, name: name, args: args, accounts: Accounts{}}
	ix, ok := p.idl.Instruction(name)
	if !ok {
		b.err = fmt.Errorf("%w: %s", ErrUnknownInstruction, name)
		return b
	}
	b.ix = ix
	return b
}

// MethodBuilder collects accounts and signers for one instruction.
type MethodBuilder struct {
	program   *Program
	ix        *IDLInstruction
	name      string
	args      []any
	accounts  Accounts
	remaining []*solana.AccountMeta
	signers   []*wallet.Keypair
	err       error
}

// Accounts merges named accounts into the call.
func (b *MethodBuilder) Accounts(accounts Accounts) *MethodBuilder {
	for k, v := range accounts {
		b.accounts[normalizeName(k)] = v
	}
	return b
}

// RemainingAccounts appends accounts after the IDL-declared ones.
func (b *MethodBuilder) RemainingAccounts(metas ...*solana.AccountMeta) *MethodBuilder {
	b.remaining = append(b.remaining, metas...)
	return b
}

// Signers adds keypairs that sign alongside the provider wallet.
func (b *MethodBuilder) Signers(kps ...*wallet.Keypair) *MethodBuilder {
	b.signers = append(b.signers, kps...)
	return b
}

// Instruction encodes the call without sending it.
func (b *MethodBuilder) Instruction() (solana.Instruction, error) {
	if b.err != nil {
		return nil, b.err
	}
	data, err := EncodeInstruction(b.ix, b.args)
	if err != nil {
		return nil, err
	}
	metas := make(solana.AccountMetaSlice, 0, len(b.ix.Accounts)+len(b.remaining))
	for _, item := range b.ix.Accounts {
		key, ok := b.accounts[normalizeName(item.Name)]
		if !ok {
			key, ok = wellKnownAccounts[normalizeName(item.Name)]
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingAccount, b.ix.Name, item.Name)
		}
		metas = append(metas, solana.NewAccountMeta(key, item.IsMut, item.IsSigner))
	}
	metas = append(metas, b.remaining...)
	return solana.NewInstruction(b.program.programID, metas, data), nil
}

// RPC sends the instruction through the program's provider and waits for
// confirmation.
func (b *MethodBuilder) RPC(ctx context.Context) (solana.Signature, error) {
	ix, err := b.Instruction()
	if err != nil {
		return solana.Signature{}, err
	}
	if b.program.provider == nil {
		return solana.Signature{}, errors.New("anchor: program has no provider")
	}
	sig, err := b.program.provider.SendAndConfirm(ctx, []solana.Instruction{ix}, b.signers...)
	return sig, b.program.ResolveError(err)
}

// ResolveError names custom program errors using the IDL error table.
func (p *Program) ResolveError(err error) error {
	var pe *ProgramError
	if err == nil || !errors.As(err, &pe) {
		return err
	}
	if pe.Code >= ProgramErrorOffset {
		if e, ok := p.idl.Error(pe.Code); ok {
			pe.Name, pe.Msg = e.Name, e.Msg
		}
	}
	return err
}

// FetchAccount returns the raw data of an account of the named IDL type,
// discriminator included, after checking owner and discriminator.
func (p *Program) FetchAccount(ctx context.Context, name string, address solana.PublicKey) ([]byte, error) {
	def, ok := p.idl.Account(name)
	if !ok {
		return nil, fmt.Errorf("anchor: unknown account type %s", name)
	}
	acct, err := p.provider.Connection.AccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if !acct.Owner.Equals(p.programID) {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrAccountOwner, address, acct.Owner)
	}
	var data []byte
	if acct.Data != nil {
		data = acct.Data.GetBinary()
	}
	disc := AccountDiscriminator(def.Name)
	if len(data) < len(disc) || !bytes.Equal(data[:len(disc)], disc[:]) {
		return nil, fmt.Errorf("%w: %s is not a %s", ErrAccountDiscriminator, address, def.Name)
	}
	return data, nil
}
