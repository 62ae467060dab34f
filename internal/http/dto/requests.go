package dto

import (
	"encoding/json"
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateTokenRequest struct {
	DeviceUUID string          `json:"device_uuid"`
	Type       string          `json:"type"`
	Amount     int64           `json:"amount"`
	Symbol     string          `json:"symbol"`
	RefName    *string         `json:"refname,omitempty"`
	Info       json.RawMessage `json:"info,omitempty"`
	Expires    *time.Time      `json:"expires,omitempty"`
}

type UpdateTokenRequest struct {
	ClearState *int            `json:"clearstate,omitempty"`
	Info       json.RawMessage `json:"info,omitempty"`
}

type ConfirmTokenRequest struct {
	State          string          `json:"state"`
	LockRefName    *string         `json:"lockrefname,omitempty"`
	Amount         *int64          `json:"amount,omitempty"`
	ProcessingInfo json.RawMessage `json:"processing_info,omitempty"`
}

type RegisterDeviceRequest struct {
	PubKey  string          `json:"pubkey,omitempty"`
	Type    string          `json:"type,omitempty"`
	RefName *string         `json:"refname,omitempty"`
	Info    json.RawMessage `json:"info,omitempty"`
}

type NotifyTriggerRequest struct {
	RadioCode string `json:"radiocode"`
	Signature string `json:"signature,omitempty"`
}
