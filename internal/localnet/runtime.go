package localnet

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solaudit/internal/infra"
)

const maxInvokeDepth = 4

// processor executes one instruction for a builtin program.
type processor func(in *invocation) *InstructionError

type instructionAccount struct {
	key      solana.PublicKey
	account  *Account
	signer   bool
	writable bool
}

// execution holds the working copies of one transaction's accounts.
type execution struct {
	programs map[solana.PublicKey]processor
	keys     []solana.PublicKey
	writable []bool
	accounts map[solana.PublicKey]*Account
	fee      uint64
	logs     []string
	err      *TransactionError
	logger   *infra.Logger
}

// invocation is one program call, top level or cross-program.
type invocation struct {
	exec      *execution
	programID solana.PublicKey
	accounts  []*instructionAccount
	data      []byte
	depth     int
	// before is the state the program's own changes are checked against.
	before map[solana.PublicKey]*Account
	// borrowed holds accounts whose data the program keeps mutably borrowed.
	borrowed map[solana.PublicKey]bool
}

func (v *Validator) execute(tx *solana.Transaction) *execution {
	msg := &tx.Message
	n := len(msg.AccountKeys)
	exec := &execution{
		programs: v.programs,
		keys:     msg.AccountKeys,
		writable: make([]bool, n),
		accounts: make(map[solana.PublicKey]*Account, n),
		fee:      fee(tx),
		logger:   v.logger,
	}
	for i, key := range msg.AccountKeys {
		exec.writable[i] = isWritable(msg.Header, i, n)
		if acct, ok := v.accounts[key]; ok {
			exec.accounts[key] = acct.Clone()
		} else {
			exec.accounts[key] = &Account{Owner: solana.SystemProgramID}
		}
	}
	exec.accounts[msg.AccountKeys[0]].Lamports -= exec.fee

	for i, ix := range msg.Instructions {
		programID := msg.AccountKeys[ix.ProgramIDIndex]
		if _, ok := v.programs[programID]; !ok {
			exec.err = txError("ProgramAccountNotFound")
			return exec
		}
		accounts := make([]*instructionAccount, len(ix.Accounts))
		for j, idx := range ix.Accounts {
			key := msg.AccountKeys[idx]
			accounts[j] = &instructionAccount{
				key:      key,
				account:  exec.accounts[key],
				signer:   isSigner(msg.Header, int(idx)),
				writable: exec.writable[idx],
			}
		}
		if ierr := exec.invoke(programID, accounts, ix.Data, 1); ierr != nil {
			exec.err = instructionFailure(i, ierr)
			return exec
		}
	}
	return exec
}

func (e *execution) logf(format string, args ...any) {
	e.logs = append(e.logs, fmt.Sprintf(format, args...))
}

func (e *execution) invoke(programID solana.PublicKey, accounts []*instructionAccount, data []byte, depth int) *InstructionError {
	proc, ok := e.programs[programID]
	if !ok {
		return builtinError("UnsupportedProgramId")
	}
	if depth > maxInvokeDepth {
		return builtinError("CallDepth")
	}
	e.logf("Program %s invoke [%d]", programID, depth)

	in := &invocation{exec: e, programID: programID, accounts: accounts, data: data, depth: depth, before: snapshot(accounts)}
	ierr := e.run(proc, in)
	if ierr == nil {
		ierr = verifyChanges(programID, accounts, in.before)
	}
	if ierr != nil {
		e.logf("Program %s failed: %s", programID, ierr.Error())
		return ierr
	}
	e.logf("Program %s success", programID)
	return nil
}

func (e *execution) run(proc processor, in *invocation) (ierr *InstructionError) {
	defer func() {
		if r := recover(); r != nil {
			e.logf("Program log: panicked at '%v'", r)
			ierr = builtinError("ProgramFailedToComplete")
		}
	}()
	return proc(in)
}

// verifyChanges enforces the runtime's account rules on what a program did.
func verifyChanges(programID solana.PublicKey, accounts []*instructionAccount, before map[solana.PublicKey]*Account) *InstructionError {
	writable := make(map[solana.PublicKey]bool, len(accounts))
	for _, a := range accounts {
		writable[a.key] = writable[a.key] || a.writable
	}
	var pre, post uint64
	for key, old := range before {
		cur := accountOf(accounts, key)
		pre += old.Lamports
		post += cur.Lamports
		dataChanged := !bytes.Equal(old.Data, cur.Data)
		if !writable[key] {
			switch {
			case old.Owner != cur.Owner:
				return builtinError("ModifiedProgramId")
			case old.Lamports != cur.Lamports:
				return builtinError("ReadonlyLamportChange")
			case dataChanged:
				return builtinError("ReadonlyDataModified")
			}
			continue
		}
		if old.Owner == programID {
			continue
		}
		switch {
		case old.Owner != cur.Owner:
			return builtinError("ModifiedProgramId")
		case cur.Lamports < old.Lamports:
			return builtinError("ExternalAccountLamportSpend")
		case dataChanged:
			return builtinError("ExternalAccountDataModified")
		}
	}
	if pre != post {
		return builtinError("UnbalancedInstruction")
	}
	return nil
}

func snapshot(accounts []*instructionAccount) map[solana.PublicKey]*Account {
	out := make(map[solana.PublicKey]*Account, len(accounts))
	for _, a := range accounts {
		if _, ok := out[a.key]; !ok {
			out[a.key] = a.account.Clone()
		}
	}
	return out
}

func accountOf(accounts []*instructionAccount, key solana.PublicKey) *Account {
	for _, a := range accounts {
		if a.key == key {
			return a.account
		}
	}
	return nil
}

func (in *invocation) log(format string, args ...any) {
	in.exec.logf("Program log: "+format, args...)
}

// account returns the i-th instruction account.
func (in *invocation) account(i int) (*instructionAccount, *InstructionError) {
	if i >= len(in.accounts) {
		return nil, builtinError("NotEnoughAccountKeys")
	}
	return in.accounts[i], nil
}

// borrowMut marks key's data as mutably borrowed until release is called.
func (in *invocation) borrowMut(key solana.PublicKey) (release func()) {
	if in.borrowed == nil {
		in.borrowed = make(map[solana.PublicKey]bool)
	}
	in.borrowed[key] = true
	return func() { delete(in.borrowed, key) }
}

func (in *invocation) metas() []*solana.AccountMeta {
	out := make([]*solana.AccountMeta, len(in.accounts))
	for i, a := range in.accounts {
		out[i] = solana.NewAccountMeta(a.key, a.writable, a.signer)
	}
	return out
}

// invokeSigned performs a cross-program call. Accounts keep at most the
// privileges the caller holds, except that program addresses derived from
// signerSeeds under the caller's id are promoted to signers.
func (in *invocation) invokeSigned(ix solana.Instruction, signerSeeds ...[][]byte) *InstructionError {
	for _, meta := range ix.Accounts() {
		if in.borrowed[meta.PublicKey] {
			return builtinError("AccountBorrowFailed")
		}
	}

	derived := make(map[solana.PublicKey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		pda, err := solana.CreateProgramAddress(seeds, in.programID)
		if err != nil {
			in.log("Could not create program address with signer seeds: %v", err)
			return builtinError("InvalidSeeds")
		}
		derived[pda] = true
	}

	callerSigner := make(map[solana.PublicKey]bool, len(in.accounts))
	callerWritable := make(map[solana.PublicKey]bool, len(in.accounts))
	for _, a := range in.accounts {
		callerSigner[a.key] = callerSigner[a.key] || a.signer
		callerWritable[a.key] = callerWritable[a.key] || a.writable
	}

	callee := ix.ProgramID()
	if accountOf(in.accounts, callee) == nil {
		in.log("Unknown program %s", callee)
		return builtinError("MissingAccount")
	}
	metas := ix.Accounts()
	accounts := make([]*instructionAccount, len(metas))
	for i, meta := range metas {
		acct := accountOf(in.accounts, meta.PublicKey)
		if acct == nil {
			in.log("Instruction references an unknown account %s", meta.PublicKey)
			return builtinError("MissingAccount")
		}
		if meta.IsSigner && !callerSigner[meta.PublicKey] && !derived[meta.PublicKey] {
			in.exec.logf("%s's signer privilege escalated", meta.PublicKey)
			return builtinError("PrivilegeEscalation")
		}
		if meta.IsWritable && !callerWritable[meta.PublicKey] {
			in.exec.logf("%s's writable privilege escalated", meta.PublicKey)
			return builtinError("PrivilegeEscalation")
		}
		accounts[i] = &instructionAccount{
			key:      meta.PublicKey,
			account:  acct,
			signer:   meta.IsSigner,
			writable: meta.IsWritable,
		}
	}
	data, err := ix.Data()
	if err != nil {
		return builtinError("InvalidInstructionData")
	}
	// The caller's changes are checked at the call boundary, and the callee's
	// changes are not attributed to the caller afterwards.
	if ierr := verifyChanges(in.programID, in.accounts, in.before); ierr != nil {
		return ierr
	}
	ierr := in.exec.invoke(callee, accounts, data, in.depth+1)
	in.before = snapshot(in.accounts)
	return ierr
}
