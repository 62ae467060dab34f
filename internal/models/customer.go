package models

import "time"

// API access scopes
const (
	ScopeTokenAPI    = "token-api"
	ScopeCashAPI     = "cash-api"
	ScopeClearingAPI = "clearing-api"
)

type Customer struct {
	ID           int64     `json:"-"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Created      time.Time `json:"created"`
}

// Access is a scoped API credential. The secret is stored hashed; the key
// doubles as the listen key on the websocket endpoints.
type Access struct {
	ID            int64     `json:"id"`
	CustomerID    int64     `json:"-"`
	APIKey        string    `json:"apikey"`
	APISecretHash string    `json:"-"`
	Scope         string    `json:"scope"`
	Created       time.Time `json:"created"`
}
