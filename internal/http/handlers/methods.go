package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"

	"solaudit/internal/localnet"
)

const (
	maxSignatureStatuses = 256
	// Largest serialized transaction accepted, matching the packet size limit.
	maxTransactionBytes = 1232
	featureSet          = 3469865029
)

func (a *App) slotContext() rpc.RPCContext {
	return rpc.RPCContext{Context: rpc.Context{Slot: a.Validator.Slot()}}
}

func (a *App) getHealth(_ []json.RawMessage) (any, error) {
	return "ok", nil
}

func (a *App) getVersion(_ []json.RawMessage) (any, error) {
	return rpc.GetVersionResult{SolanaCore: localnet.Version, FeatureSet: featureSet}, nil
}

func (a *App) getSlot(_ []json.RawMessage) (any, error) {
	return a.Validator.Slot(), nil
}

func (a *App) getBlockHeight(_ []json.RawMessage) (any, error) {
	return a.Validator.Slot(), nil
}

func (a *App) getGenesisHash(_ []json.RawMessage) (any, error) {
	return a.Validator.GenesisHash().String(), nil
}

func (a *App) getIdentity(_ []json.RawMessage) (any, error) {
	return rpc.GetIdentityResult{Identity: a.Validator.Identity()}, nil
}

func (a *App) getTransactionCount(_ []json.RawMessage) (any, error) {
	return a.Validator.TransactionCount(), nil
}

func (a *App) getLatestBlockhash(_ []json.RawMessage) (any, error) {
	hash, lastValid := a.Validator.LatestBlockhash()
	return rpc.GetLatestBlockhashResult{
		RPCContext: a.slotContext(),
		Value:      &rpc.LatestBlockhashResult{Blockhash: hash, LastValidBlockHeight: lastValid},
	}, nil
}

func (a *App) isBlockhashValid(params []json.RawMessage) (any, error) {
	var raw string
	if err := param(params, 0, &raw); err != nil {
		return nil, err
	}
	hash, err := solana.HashFromBase58(raw)
	if err != nil {
		return nil, invalidParams("Invalid param: %v", err)
	}
	return rpc.IsValidBlockhashResult{RPCContext: a.slotContext(), Value: a.Validator.IsBlockhashValid(hash)}, nil
}

func (a *App) getBalance(params []json.RawMessage) (any, error) {
	key, err := pubkeyParam(params, 0)
	if err != nil {
		return nil, err
	}
	return rpc.GetBalanceResult{RPCContext: a.slotContext(), Value: a.Validator.Balance(key)}, nil
}

type accountInfoConfig struct {
	Encoding   string `json:"encoding"`
	Commitment string `json:"commitment"`
}

type accountValue struct {
	Data       [2]string        `json:"data"`
	Executable bool             `json:"executable"`
	Lamports   uint64           `json:"lamports"`
	Owner      solana.PublicKey `json:"owner"`
	RentEpoch  uint64           `json:"rentEpoch"`
	Space      int              `json:"space"`
}

type accountInfoResult struct {
	rpc.RPCContext
	Value *accountValue `json:"value"`
}

func (a *App) getAccountInfo(params []json.RawMessage) (any, error) {
	key, err := pubkeyParam(params, 0)
	if err != nil {
		return nil, err
	}
	var cfg accountInfoConfig
	if err := optionalParam(params, 1, &cfg); err != nil {
		return nil, err
	}
	res := accountInfoResult{RPCContext: a.slotContext()}
	acct := a.Validator.Account(key)
	if acct == nil {
		return res, nil
	}
	val := &accountValue{
		Executable: acct.Executable,
		Lamports:   acct.Lamports,
		Owner:      acct.Owner,
		RentEpoch:  acct.RentEpoch,
		Space:      len(acct.Data),
	}
	switch strings.ToLower(cfg.Encoding) {
	case "base58":
		val.Data = [2]string{base58.Encode(acct.Data), "base58"}
	case "", "base64", "jsonparsed":
		val.Data = [2]string{base64.StdEncoding.EncodeToString(acct.Data), "base64"}
	default:
		return nil, invalidParams("Invalid param: unsupported encoding %q", cfg.Encoding)
	}
	res.Value = val
	return res, nil
}

func (a *App) getMinimumBalanceForRentExemption(params []json.RawMessage) (any, error) {
	var size uint64
	if err := param(params, 0, &size); err != nil {
		return nil, err
	}
	return localnet.MinimumBalanceForRentExemption(size), nil
}

func (a *App) requestAirdrop(params []json.RawMessage) (any, error) {
	key, err := pubkeyParam(params, 0)
	if err != nil {
		return nil, err
	}
	var lamports uint64
	if err := param(params, 1, &lamports); err != nil {
		return nil, err
	}
	sig, err := a.Validator.Airdrop(key, lamports)
	if errors.Is(err, localnet.ErrAirdropTooLarge) {
		return nil, &rpcError{Code: codeInternalError, Message: "airdrop request failed: " + err.Error()}
	}
	if err != nil {
		return nil, err
	}
	return sig.String(), nil
}

type sendConfig struct {
	Encoding            string `json:"encoding"`
	SkipPreflight       bool   `json:"skipPreflight"`
	PreflightCommitment string `json:"preflightCommitment"`
	MaxRetries          *uint  `json:"maxRetries"`
}

func (a *App) sendTransaction(params []json.RawMessage) (any, error) {
	var encoded string
	if err := param(params, 0, &encoded); err != nil {
		return nil, err
	}
	var cfg sendConfig
	if err := optionalParam(params, 1, &cfg); err != nil {
		return nil, err
	}
	tx, err := decodeTransaction(encoded, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	sig, err := a.Validator.SendTransaction(tx, cfg.SkipPreflight)
	if err != nil {
		return nil, transactionRPCError(err)
	}
	return sig.String(), nil
}

type simulateConfig struct {
	Encoding               string `json:"encoding"`
	SigVerify              bool   `json:"sigVerify"`
	ReplaceRecentBlockhash bool   `json:"replaceRecentBlockhash"`
	Commitment             string `json:"commitment"`
}

func (a *App) simulateTransaction(params []json.RawMessage) (any, error) {
	var encoded string
	if err := param(params, 0, &encoded); err != nil {
		return nil, err
	}
	var cfg simulateConfig
	if err := optionalParam(params, 1, &cfg); err != nil {
		return nil, err
	}
	if cfg.SigVerify && cfg.ReplaceRecentBlockhash {
		return nil, invalidParams("sigVerify may not be used with replaceRecentBlockhash")
	}
	tx, err := decodeTransaction(encoded, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	if cfg.ReplaceRecentBlockhash {
		tx.Message.RecentBlockhash, _ = a.Validator.LatestBlockhash()
	}
	res, err := a.Validator.Simulate(tx, cfg.SigVerify)
	if err != nil {
		return nil, transactionRPCError(err)
	}
	out := simulationValue{Logs: nonNil(res.Logs)}
	if res.Err != nil {
		out.Err = res.Err
	}
	return simulationResult{RPCContext: a.slotContext(), Value: out}, nil
}

// simulationValue carries err as JSON null on success.
type simulationValue struct {
	Err           any      `json:"err"`
	Logs          []string `json:"logs"`
	Accounts      any      `json:"accounts"`
	UnitsConsumed uint64   `json:"unitsConsumed"`
}

type simulationResult struct {
	rpc.RPCContext
	Value simulationValue `json:"value"`
}

func (a *App) getSignatureStatuses(params []json.RawMessage) (any, error) {
	var raw []string
	if err := param(params, 0, &raw); err != nil {
		return nil, err
	}
	if len(raw) > maxSignatureStatuses {
		return nil, invalidParams("Too many inputs provided; max %d", maxSignatureStatuses)
	}
	sigs := make([]solana.Signature, len(raw))
	for i, s := range raw {
		sig, err := solana.SignatureFromBase58(s)
		if err != nil {
			return nil, invalidParams("Invalid param: %v", err)
		}
		sigs[i] = sig
	}
	statuses := a.Validator.SignatureStatuses(sigs...)
	out := make([]*rpc.SignatureStatusesResult, len(statuses))
	for i, st := range statuses {
		if st == nil {
			continue
		}
		res := &rpc.SignatureStatusesResult{
			Slot:               st.Slot,
			Confirmations:      st.Confirmations,
			ConfirmationStatus: rpc.ConfirmationStatusType(st.ConfirmationStatus),
			Status:             rpc.DeprecatedTransactionMetaStatus{"Ok": nil},
		}
		if st.Err != nil {
			res.Err = st.Err
			res.Status = rpc.DeprecatedTransactionMetaStatus{"Err": st.Err}
		}
		out[i] = res
	}
	return rpc.GetSignatureStatusesResult{RPCContext: a.slotContext(), Value: out}, nil
}

func transactionRPCError(err error) error {
	var pre *localnet.PreflightError
	switch {
	case errors.As(err, &pre):
		return &rpcError{
			Code:    codeSimulationFailed,
			Message: pre.Error(),
			Data:    simulationValue{Err: pre.Err, Logs: nonNil(pre.Logs)},
		}
	case errors.Is(err, localnet.ErrSignatureVerification):
		return &rpcError{Code: codeSignatureVerifyFail, Message: "Transaction signature verification failure"}
	case errors.Is(err, localnet.ErrMalformedTransaction):
		return invalidParams("invalid transaction: %v", err)
	}
	return err
}

func nonNil(logs []string) []string {
	if logs == nil {
		return []string{}
	}
	return logs
}

func decodeTransaction(encoded, encoding string) (*solana.Transaction, error) {
	var (
		raw []byte
		err error
	)
	switch strings.ToLower(encoding) {
	case "", "base58":
		raw, err = base58.Decode(encoded)
	case "base64":
		raw, err = base64.StdEncoding.DecodeString(encoded)
	default:
		return nil, invalidParams("unsupported encoding: %s", encoding)
	}
	if err != nil {
		return nil, invalidParams("invalid transaction: failed to decode %s string", encodingName(encoding))
	}
	if len(raw) > maxTransactionBytes {
		return nil, invalidParams("invalid transaction: encoded transaction too large: %d bytes (max: %d bytes)", len(raw), maxTransactionBytes)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, invalidParams("invalid transaction: failed to deserialize transaction: %v", err)
	}
	return tx, nil
}

func encodingName(encoding string) string {
	if encoding == "" {
		return "base58"
	}
	return encoding
}

func param(params []json.RawMessage, i int, dst any) error {
	if i >= len(params) {
		return invalidParams("Invalid params: missing parameter %d", i)
	}
	if err := json.Unmarshal(params[i], dst); err != nil {
		return invalidParams("Invalid params: %v", err)
	}
	return nil
}

func optionalParam(params []json.RawMessage, i int, dst any) error {
	if i >= len(params) || string(params[i]) == "null" {
		return nil
	}
	return param(params, i, dst)
}

func pubkeyParam(params []json.RawMessage, i int) (solana.PublicKey, error) {
	var raw string
	if err := param(params, i, &raw); err != nil {
		return solana.PublicKey{}, err
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, invalidParams("Invalid param: %v", err)
	}
	return key, nil
}
