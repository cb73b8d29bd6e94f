package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"solaudit/internal/infra"
	"solaudit/internal/middleware"
)

// JSON-RPC 2.0 and Solana specific error codes.
const (
	codeParseError          = -32700
	codeInvalidRequest      = -32600
	codeMethodNotFound      = -32601
	codeInvalidParams       = -32602
	codeInternalError       = -32603
	codeSimulationFailed    = -32002
	codeSignatureVerifyFail = -32003
)

const maxBodyBytes = 1 << 20

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

func invalidParams(format string, args ...any) *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

type rpcMethod func(a *App, params []json.RawMessage) (any, error)

var methods = map[string]rpcMethod{
	"getHealth":                         (*App).getHealth,
	"getVersion":                        (*App).getVersion,
	"getSlot":                           (*App).getSlot,
	"getBlockHeight":                    (*App).getBlockHeight,
	"getGenesisHash":                    (*App).getGenesisHash,
	"getIdentity":                       (*App).getIdentity,
	"getLatestBlockhash":                (*App).getLatestBlockhash,
	"isBlockhashValid":                  (*App).isBlockhashValid,
	"getBalance":                        (*App).getBalance,
	"getAccountInfo":                    (*App).getAccountInfo,
	"getMinimumBalanceForRentExemption": (*App).getMinimumBalanceForRentExemption,
	"requestAirdrop":                    (*App).requestAirdrop,
	"sendTransaction":                   (*App).sendTransaction,
	"simulateTransaction":               (*App).simulateTransaction,
	"getSignatureStatuses":              (*App).getSignatureStatuses,
	"getTransactionCount":               (*App).getTransactionCount,
}

// RPC handles POST / with a single request or a batch.
func (a *App) RPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		a.json(w, http.StatusOK, errorResponse(nil, &rpcError{Code: codeParseError, Message: "Parse error"}))
		return
	}
	logger := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			a.json(w, http.StatusOK, errorResponse(nil, &rpcError{Code: codeParseError, Message: "Parse error"}))
			return
		}
		if len(batch) == 0 {
			a.json(w, http.StatusOK, errorResponse(nil, &rpcError{Code: codeInvalidRequest, Message: "Invalid request"}))
			return
		}
		out := make([]rpcResponse, 0, len(batch))
		for _, raw := range batch {
			out = append(out, a.handle(raw, &logger))
		}
		a.json(w, http.StatusOK, out)
		return
	}
	a.json(w, http.StatusOK, a.handle(trimmed, &logger))
}

func (a *App) handle(raw json.RawMessage, logger *infra.Logger) rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		var syntax *json.SyntaxError
		if errors.As(err, &syntax) {
			return errorResponse(nil, &rpcError{Code: codeParseError, Message: "Parse error"})
		}
		return errorResponse(nil, &rpcError{Code: codeInvalidRequest, Message: "Invalid request"})
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, &rpcError{Code: codeInvalidRequest, Message: "Invalid request"})
	}
	a.Validator.RecordRequest(req.Method)

	method, ok := methods[req.Method]
	if !ok {
		return errorResponse(req.ID, &rpcError{Code: codeMethodNotFound, Message: "Method not found"})
	}
	params, perr := splitParams(req.Params)
	if perr != nil {
		return errorResponse(req.ID, perr)
	}
	result, err := method(a, params)
	if err != nil {
		var rerr *rpcError
		if !errors.As(err, &rerr) {
			logger.Error().Err(err).Str("method", req.Method).Msg("localnet: rpc method failed")
			rerr = &rpcError{Code: codeInternalError, Message: "Internal error"}
		}
		logger.Debug().Str("method", req.Method).Int("code", rerr.Code).Msg("localnet: rpc error")
		return errorResponse(req.ID, rerr)
	}
	logger.Debug().Str("method", req.Method).Msg("localnet: rpc")
	return rpcResponse{JSONRPC: "2.0", Result: result, ID: idOrNull(req.ID)}
}

func errorResponse(id json.RawMessage, err *rpcError) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", Error: err, ID: idOrNull(id)}
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// splitParams accepts an absent, null or array params member.
func splitParams(raw json.RawMessage) ([]json.RawMessage, *rpcError) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var params []json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("Invalid params: expected an array")
	}
	return params, nil
}
