package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Device types
const (
	DeviceTypeToken        = "TOKEN"
	DeviceTypeATM          = "ATM"
	DeviceTypeCashRegister = "CASH_REGISTER"
)

// Device is a customer-owned endpoint. Token devices hold the RSA private key
// matching PubKey; cash devices claim locks.
type Device struct {
	ID         int64           `json:"-"`
	CustomerID int64           `json:"-"`
	UUID       uuid.UUID       `json:"uuid"`
	PubKey     string          `json:"pubkey,omitempty"`
	Type       string          `json:"type"`
	RefName    *string         `json:"refname,omitempty"`
	Info       json.RawMessage `json:"info,omitempty"`
	Created    time.Time       `json:"created"`
}
