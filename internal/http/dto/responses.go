package dto

type ErrorResponse struct {
	Error string `json:"error"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type TriggerResponse struct {
	TriggerCode string `json:"triggercode"`
}
