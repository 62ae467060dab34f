package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Token types
const (
	TokenTypeCashout = "CASHOUT"
	TokenTypeCashin  = "CASHIN"
)

// Token states
const (
	TokenStateOpen      = "OPEN"
	TokenStateLocked    = "LOCKED"
	TokenStateCompleted = "COMPLETED"
	TokenStateCanceled  = "CANCELED"
	TokenStateFailed    = "FAILED"
	TokenStateRejected  = "REJECTED"
	TokenStateRetracted = "RETRACTED"
	TokenStateDeleted   = "DELETED"
	TokenStateExpired   = "EXPIRED"
)

// Valid state transitions: from -> []to. Everything not listed is terminal.
var ValidTokenTransitions = map[string][]string{
	TokenStateOpen:      {TokenStateLocked, TokenStateRejected, TokenStateDeleted, TokenStateExpired},
	TokenStateLocked:    {TokenStateCompleted, TokenStateCanceled, TokenStateFailed, TokenStateRejected, TokenStateRetracted},
	TokenStateCompleted: {},
	TokenStateCanceled:  {},
	TokenStateFailed:    {},
	TokenStateRejected:  {},
	TokenStateRetracted: {},
	TokenStateDeleted:   {},
	TokenStateExpired:   {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidTokenTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalState reports whether a token in the given state can never change again.
func IsTerminalState(state string) bool {
	return len(ValidTokenTransitions[state]) == 0
}

// IsConfirmState reports whether state is a valid target for confirming a locked token.
func IsConfirmState(state string) bool {
	return IsValidTransition(TokenStateLocked, state)
}

type Token struct {
	ID             int64           `json:"-"`
	UUID           uuid.UUID       `json:"uuid"`
	OwnerID        int64           `json:"-"`
	OwnerDeviceID  int64           `json:"-"`
	LockDeviceID   *int64          `json:"-"`
	Type           string          `json:"type"`
	State          string          `json:"state"`
	Amount         int64           `json:"amount"`
	Symbol         string          `json:"symbol"`
	SecureCode     *string         `json:"secure_code,omitempty"`
	PlainCode      *string         `json:"plain_code,omitempty"`
	ClearState     int             `json:"clearstate"`
	RefName        *string         `json:"refname,omitempty"`
	LockRefName    *string         `json:"lockrefname,omitempty"`
	Info           json.RawMessage `json:"info,omitempty"`
	ProcessingInfo json.RawMessage `json:"processing_info,omitempty"`
	Expires        *time.Time      `json:"expires,omitempty"`
	Created        time.Time       `json:"created"`
	Updated        time.Time       `json:"updated"`
}

// StripSecrets removes the code material before a token leaves the engine
// on any path other than creation.
func (t *Token) StripSecrets() {
	t.SecureCode = nil
	t.PlainCode = nil
}
