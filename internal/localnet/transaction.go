package localnet

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// SimulationResult is the outcome of executing a transaction without
// committing it.
type SimulationResult struct {
	Err  *TransactionError
	Logs []string
}

// SendTransaction verifies, executes and records tx. With preflight enabled a
// failing transaction returns *PreflightError and changes nothing. With
// skipPreflight the fee is charged and the failure lands in the signature
// status.
func (v *Validator) SendTransaction(tx *solana.Transaction, skipPreflight bool) (solana.Signature, error) {
	if err := sanitize(tx); err != nil {
		return solana.Signature{}, err
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.submitLocked(tx, skipPreflight)
}

// Simulate executes tx against current state and discards the result.
func (v *Validator) Simulate(tx *solana.Transaction, sigVerify bool) (*SimulationResult, error) {
	if err := sanitize(tx); err != nil {
		return nil, err
	}
	if sigVerify {
		if err := tx.VerifySignatures(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
		}
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if txErr := v.checkLocked(tx); txErr != nil {
		return &SimulationResult{Err: txErr}, nil
	}
	exec := v.execute(tx)
	return &SimulationResult{Err: exec.err, Logs: exec.logs}, nil
}

func (v *Validator) submitLocked(tx *solana.Transaction, skipPreflight bool) (solana.Signature, error) {
	sig := tx.Signatures[0]
	log := v.logger.With().Str("signature", sig.String()).Uint64("slot", v.slot).Logger()

	if txErr := v.checkLocked(tx); txErr != nil {
		v.metrics.transactions.WithLabelValues("rejected").Inc()
		if !skipPreflight {
			return solana.Signature{}, &PreflightError{Err: txErr}
		}
		// Dropped before execution, nothing is recorded.
		log.Warn().Str("error", txErr.Error()).Msg("localnet: dropped transaction")
		return sig, nil
	}

	exec := v.execute(tx)
	if exec.err != nil && !skipPreflight {
		v.metrics.transactions.WithLabelValues("preflight_failed").Inc()
		return solana.Signature{}, &PreflightError{Err: exec.err, Logs: exec.logs}
	}

	v.commitLocked(exec)
	v.records[sig] = &txRecord{slot: v.slot, err: exec.err, logs: exec.logs}
	v.txCount++
	if exec.err != nil {
		v.metrics.transactions.WithLabelValues("failed").Inc()
		log.Info().Str("error", exec.err.Error()).Msg("localnet: transaction failed")
	} else {
		v.metrics.transactions.WithLabelValues("success").Inc()
		log.Debug().Int("instructions", len(tx.Message.Instructions)).Msg("localnet: executed transaction")
	}
	return sig, nil
}

// checkLocked runs the pre-execution checks that do not charge a fee.
func (v *Validator) checkLocked(tx *solana.Transaction) *TransactionError {
	if _, dup := v.records[tx.Signatures[0]]; dup {
		return txError("AlreadyProcessed")
	}
	if _, ok := v.blockhashes[tx.Message.RecentBlockhash]; !ok {
		return txError("BlockhashNotFound")
	}
	payer := tx.Message.AccountKeys[0]
	acct, ok := v.accounts[payer]
	if !ok || acct.Lamports == 0 {
		return txError("AccountNotFound")
	}
	if acct.Owner != solana.SystemProgramID || len(acct.Data) > 0 {
		return txError("InvalidAccountForFee")
	}
	if acct.Lamports < fee(tx) {
		return txError("InsufficientFundsForFee")
	}
	return nil
}

func (v *Validator) commitLocked(exec *execution) {
	// A failed transaction only pays its fee.
	if exec.err != nil {
		payer := exec.keys[0]
		v.accounts[payer].Lamports -= exec.fee
		return
	}
	for i, key := range exec.keys {
		if !exec.writable[i] {
			continue
		}
		acct := exec.accounts[key]
		if acct.Lamports == 0 && len(acct.Data) == 0 && acct.Owner == solana.SystemProgramID {
			delete(v.accounts, key)
			continue
		}
		v.accounts[key] = acct
	}
}

func fee(tx *solana.Transaction) uint64 {
	return uint64(tx.Message.Header.NumRequiredSignatures) * LamportsPerSignature
}

// sanitize rejects transactions whose message cannot be executed as laid out.
func sanitize(tx *solana.Transaction) error {
	msg := &tx.Message
	if msg.IsVersioned() {
		return fmt.Errorf("%w: versioned transactions are not supported", ErrMalformedTransaction)
	}
	h := msg.Header
	n := len(msg.AccountKeys)
	switch {
	case h.NumRequiredSignatures == 0:
		return fmt.Errorf("%w: no required signatures", ErrMalformedTransaction)
	case h.NumReadonlySignedAccounts >= h.NumRequiredSignatures:
		return fmt.Errorf("%w: fee payer must be writable", ErrMalformedTransaction)
	case int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsignedAccounts) > n:
		return fmt.Errorf("%w: header exceeds account keys", ErrMalformedTransaction)
	case len(tx.Signatures) != int(h.NumRequiredSignatures):
		return fmt.Errorf("%w: %d signatures for %d signers", ErrMalformedTransaction, len(tx.Signatures), h.NumRequiredSignatures)
	}
	seen := make(map[solana.PublicKey]struct{}, n)
	for _, k := range msg.AccountKeys {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: account %s loaded twice", ErrMalformedTransaction, k)
		}
		seen[k] = struct{}{}
	}
	for i, ix := range msg.Instructions {
		if int(ix.ProgramIDIndex) >= n || ix.ProgramIDIndex == 0 {
			return fmt.Errorf("%w: instruction %d program index %d", ErrMalformedTransaction, i, ix.ProgramIDIndex)
		}
		for _, idx := range ix.Accounts {
			if int(idx) >= n {
				return fmt.Errorf("%w: instruction %d account index %d", ErrMalformedTransaction, i, idx)
			}
		}
	}
	return nil
}

func isSigner(h solana.MessageHeader, i int) bool {
	return i < int(h.NumRequiredSignatures)
}

func isWritable(h solana.MessageHeader, i, n int) bool {
	if i < int(h.NumRequiredSignatures) {
		return i < int(h.NumRequiredSignatures-h.NumReadonlySignedAccounts)
	}
	return i < n-int(h.NumReadonlyUnsignedAccounts)
}
