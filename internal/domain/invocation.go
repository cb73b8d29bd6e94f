package domain

import (
	"encoding/json"
	"time"
)

// InvocationStatus enumerates the lifecycle of a submitted program call.
type InvocationStatus string

const (
	InvocationPending   InvocationStatus = "PENDING"
	InvocationConfirmed InvocationStatus = "CONFIRMED"
	InvocationFailed    InvocationStatus = "FAILED"
	InvocationExpired   InvocationStatus = "EXPIRED"
)

// Valid reports whether s is a known status.
func (s InvocationStatus) Valid() bool {
	switch s {
	case InvocationPending, InvocationConfirmed, InvocationFailed, InvocationExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected.
func (s InvocationStatus) Terminal() bool {
	return s == InvocationConfirmed || s == InvocationFailed || s == InvocationExpired
}

// Invocation records one program instruction sent to a cluster.
type Invocation struct {
	ID           string
	Cluster      string
	ProgramID    string
	Instruction  string
	Signature    string
	Status       InvocationStatus
	ErrorMessage string
	Slot         uint64
	Args         json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
