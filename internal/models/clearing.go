package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Clearing snapshots the settlement parties of a completed token. It is written
// exactly once and never updated afterwards.
type Clearing struct {
	ID              int64           `json:"-"`
	TokenID         int64           `json:"-"`
	DebitorID       int64           `json:"-"`
	CreditorID      int64           `json:"-"`
	DebitorAccount  json.RawMessage `json:"debitor,omitempty"`
	CreditorAccount json.RawMessage `json:"creditor,omitempty"`
	Created         time.Time       `json:"created"`
}

// ClearingRow is the customer-facing listing shape, joined with token and device data.
type ClearingRow struct {
	Date            time.Time       `json:"date"`
	TokenUUID       uuid.UUID       `json:"uuid"`
	Type            string          `json:"type"`
	RefName         *string         `json:"refname,omitempty"`
	TokenDevice     *string         `json:"tokendevice,omitempty"`
	CashDevice      *string         `json:"cashdevice,omitempty"`
	Amount          int64           `json:"amount"`
	Symbol          string          `json:"symbol"`
	DebitorAccount  json.RawMessage `json:"debitor,omitempty"`
	CreditorAccount json.RawMessage `json:"creditor,omitempty"`
}
