package controller

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WebhookResponse acknowledges a processed delivery.
type WebhookResponse struct {
	Outcome string `json:"outcome"`
	EventID string `json:"event_id,omitempty"`
}
