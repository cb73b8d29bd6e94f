package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"solaudit/internal/infra"
	"solaudit/internal/localnet"
)

// App serves the validator over HTTP.
type App struct {
	Validator *localnet.Validator
	Gatherer  prometheus.Gatherer
	Logger    *infra.Logger
}

func NewApp(v *localnet.Validator, gatherer prometheus.Gatherer, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &App{Validator: v, Gatherer: gatherer, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
