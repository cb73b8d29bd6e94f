// Package localnet is an in-process Solana test validator. It keeps a bank of
// accounts in memory, advances slots on a clock and executes legacy
// transactions against the System program, SPL Token and the solana-audit
// program implemented natively.
package localnet

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/prometheus/client_golang/prometheus"

	"solaudit/internal/infra"
	"solaudit/internal/programs/solanaaudit"
	"solaudit/internal/workspace"
)

const (
	// LamportsPerSignature is the flat fee charged per required signature.
	LamportsPerSignature = 5000

	// Version reported by getVersion.
	Version = "1.18.26"

	faucetLamports      = 500_000_000 * solana.LAMPORTS_PER_SOL
	rentLamportsPerByte = 3480
	rentExemptionYears  = 2
	accountStorageBytes = 128
)

// Options configures a Validator.
type Options struct {
	SlotInterval       time.Duration
	FinalityDepth      uint64
	MaxBlockhashAge    uint64
	MaxAirdropLamports uint64
	AuditProgramID     solana.PublicKey
	Fixtures           []workspace.AccountFixture
	Logger             *infra.Logger
	Registerer         prometheus.Registerer
}

func (o *Options) applyDefaults() {
	if o.SlotInterval <= 0 {
		o.SlotInterval = 400 * time.Millisecond
	}
	if o.FinalityDepth == 0 {
		o.FinalityDepth = 2
	}
	if o.MaxBlockhashAge == 0 {
		o.MaxBlockhashAge = 150
	}
	if o.MaxAirdropLamports == 0 {
		o.MaxAirdropLamports = 1_000 * solana.LAMPORTS_PER_SOL
	}
	if o.AuditProgramID.IsZero() {
		o.AuditProgramID = solanaaudit.DefaultProgramID
	}
}

// SignatureStatus is the confirmation state of a landed transaction.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	Err                *TransactionError
	ConfirmationStatus string
}

type txRecord struct {
	slot uint64
	err  *TransactionError
	logs []string
}

// Validator is the bank plus clock. All methods are safe for concurrent use.
type Validator struct {
	mu sync.RWMutex

	opts    Options
	logger  *infra.Logger
	metrics *metrics

	accounts map[solana.PublicKey]*Account
	programs map[solana.PublicKey]processor
	records  map[solana.Signature]*txRecord

	slot        uint64
	blockhash   solana.Hash
	blockhashes map[solana.Hash]uint64
	genesis     solana.Hash
	identity    solana.PublicKey
	faucet      solana.PrivateKey
	txCount     uint64
}

// New creates a validator at slot 0 with the builtin programs, a funded
// faucet and every fixture account loaded.
func New(opts Options) (*Validator, error) {
	opts.applyDefaults()
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	identity, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("localnet: identity key: %w", err)
	}
	faucet, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("localnet: faucet key: %w", err)
	}

	v := &Validator{
		opts:        opts,
		logger:      logger,
		metrics:     newMetrics(opts.Registerer),
		accounts:    make(map[solana.PublicKey]*Account),
		records:     make(map[solana.Signature]*txRecord),
		blockhashes: make(map[solana.Hash]uint64),
		identity:    identity.PublicKey(),
		faucet:      faucet,
	}
	v.genesis = solana.Hash(sha256.Sum256(append([]byte("localnet genesis "), v.identity[:]...)))
	v.blockhash = nextBlockhash(v.genesis, 0)
	v.blockhashes[v.blockhash] = 0

	v.programs = map[solana.PublicKey]processor{
		solana.SystemProgramID: processSystem,
		solana.TokenProgramID:  processToken,
		opts.AuditProgramID:    newAuditProgram(opts.AuditProgramID).process,
	}
	v.accounts[solana.SystemProgramID] = &Account{Lamports: 1, Owner: NativeLoaderID, Data: []byte("system_program"), Executable: true}
	v.accounts[solana.TokenProgramID] = &Account{Lamports: 1, Owner: solana.BPFLoaderProgramID, Executable: true}
	v.accounts[opts.AuditProgramID] = &Account{Lamports: 1, Owner: solana.BPFLoaderUpgradeableProgramID, Executable: true}
	v.accounts[v.faucet.PublicKey()] = &Account{Lamports: faucetLamports, Owner: solana.SystemProgramID}

	for _, fx := range opts.Fixtures {
		v.accounts[fx.Pubkey] = &Account{
			Lamports:   fx.Account.Lamports,
			Owner:      fx.Account.Owner,
			Data:       append([]byte(nil), fx.Account.Data...),
			Executable: fx.Account.Executable,
			RentEpoch:  fx.Account.RentEpoch,
		}
	}
	v.metrics.slot.Set(0)
	v.logger.Info().
		Str("identity", v.identity.String()).
		Str("faucet", v.faucet.PublicKey().String()).
		Str("audit_program", opts.AuditProgramID.String()).
		Int("fixtures", len(opts.Fixtures)).
		Msg("localnet: genesis ready")
	return v, nil
}

func nextBlockhash(prev solana.Hash, slot uint64) solana.Hash {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], slot)
	return solana.Hash(sha256.Sum256(append(prev[:], buf[:]...)))
}

// Run advances the slot every SlotInterval until ctx is done.
func (v *Validator) Run(ctx context.Context) error {
	ticker := time.NewTicker(v.opts.SlotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v.AdvanceSlot()
		}
	}
}

// AdvanceSlot moves to the next slot with a fresh blockhash and returns it.
func (v *Validator) AdvanceSlot() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.advanceSlotLocked()
}

func (v *Validator) advanceSlotLocked() uint64 {
	v.slot++
	v.blockhash = nextBlockhash(v.blockhash, v.slot)
	v.blockhashes[v.blockhash] = v.slot
	for h, s := range v.blockhashes {
		if s+v.opts.MaxBlockhashAge < v.slot {
			delete(v.blockhashes, h)
		}
	}
	v.metrics.slot.Set(float64(v.slot))
	return v.slot
}

// Slot returns the current slot. Block height tracks it one to one.
func (v *Validator) Slot() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.slot
}

// LatestBlockhash returns the newest blockhash and the last block height at
// which transactions referencing it are accepted.
func (v *Validator) LatestBlockhash() (solana.Hash, uint64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.blockhash, v.slot + v.opts.MaxBlockhashAge
}

// IsBlockhashValid reports whether h is still inside the recent window.
func (v *Validator) IsBlockhashValid(h solana.Hash) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.blockhashes[h]
	return ok
}

func (v *Validator) GenesisHash() solana.Hash         { return v.genesis }
func (v *Validator) Identity() solana.PublicKey       { return v.identity }
func (v *Validator) FaucetKey() solana.PublicKey      { return v.faucet.PublicKey() }
func (v *Validator) AuditProgramID() solana.PublicKey { return v.opts.AuditProgramID }

// TransactionCount returns the number of transactions that landed.
func (v *Validator) TransactionCount() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.txCount
}

// Account returns a copy of the stored account, or nil when absent.
func (v *Validator) Account(key solana.PublicKey) *Account {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.accounts[key].Clone()
}

// SetAccount stores a copy of acct, or removes the address when acct is nil.
func (v *Validator) SetAccount(key solana.PublicKey, acct *Account) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if acct == nil {
		delete(v.accounts, key)
		return
	}
	v.accounts[key] = acct.Clone()
}

// Balance returns the lamports held by key, zero when the account is absent.
func (v *Validator) Balance(key solana.PublicKey) uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if a, ok := v.accounts[key]; ok {
		return a.Lamports
	}
	return 0
}

// MinimumBalanceForRentExemption returns the two-year rent for size bytes.
func MinimumBalanceForRentExemption(size uint64) uint64 {
	return (size + accountStorageBytes) * rentLamportsPerByte * rentExemptionYears
}

// Airdrop transfers lamports from the faucet to key through a regular
// system transfer and returns its signature.
func (v *Validator) Airdrop(key solana.PublicKey, lamports uint64) (solana.Signature, error) {
	if lamports > v.opts.MaxAirdropLamports {
		return solana.Signature{}, fmt.Errorf("%w: %d > %d", ErrAirdropTooLarge, lamports, v.opts.MaxAirdropLamports)
	}
	faucet := v.faucet.PublicKey()
	ix := system.NewTransferInstruction(lamports, faucet, key).Build()

	v.mu.Lock()
	defer v.mu.Unlock()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, v.blockhash, solana.TransactionPayer(faucet))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("localnet: build airdrop: %w", err)
	}
	if err := v.signFaucet(tx); err != nil {
		return solana.Signature{}, err
	}
	// Same recipient and amount within one slot signs to the same bytes.
	if _, dup := v.records[tx.Signatures[0]]; dup {
		v.advanceSlotLocked()
		tx.Message.RecentBlockhash = v.blockhash
		if err := v.signFaucet(tx); err != nil {
			return solana.Signature{}, err
		}
	}
	sig, err := v.submitLocked(tx, false)
	if err != nil {
		return solana.Signature{}, err
	}
	v.logger.Info().
		Str("recipient", key.String()).
		Uint64("lamports", lamports).
		Str("signature", sig.String()).
		Msg("localnet: airdrop")
	return sig, nil
}

func (v *Validator) signFaucet(tx *solana.Transaction) error {
	tx.Signatures = nil
	_, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(v.faucet.PublicKey()) {
			return &v.faucet
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("localnet: sign airdrop: %w", err)
	}
	return nil
}

// SignatureStatuses returns one entry per signature, nil for unknown ones.
func (v *Validator) SignatureStatuses(sigs ...solana.Signature) []*SignatureStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]*SignatureStatus, len(sigs))
	for i, sig := range sigs {
		rec, ok := v.records[sig]
		if !ok {
			continue
		}
		out[i] = v.statusOf(rec)
	}
	return out
}

func (v *Validator) statusOf(rec *txRecord) *SignatureStatus {
	st := &SignatureStatus{Slot: rec.slot, Err: rec.err}
	depth := v.slot - rec.slot
	switch {
	case depth >= v.opts.FinalityDepth:
		st.ConfirmationStatus = "finalized"
	case depth >= 1:
		st.ConfirmationStatus = "confirmed"
		st.Confirmations = &depth
	default:
		st.ConfirmationStatus = "processed"
		st.Confirmations = &depth
	}
	return st
}

// TransactionLogs returns the program logs recorded for a landed signature.
func (v *Validator) TransactionLogs(sig solana.Signature) ([]string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rec, ok := v.records[sig]
	if !ok {
		return nil, false
	}
	return append([]string(nil), rec.logs...), true
}

// RecordRequest counts one JSON-RPC call by method.
func (v *Validator) RecordRequest(method string) {
	v.metrics.requests.WithLabelValues(method).Inc()
}
