package errors

// ProviderError wraps a payment provider failure with the provider's own
// status and code. The service never retries these; retry policy belongs to
// the caller.
type ProviderError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return "provider error " + e.Code + ": " + e.Message
	}
	return "provider error: " + e.Message
}

// SignatureError indicates a webhook payload failed signature verification.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "webhook signature verification failed: " + e.Reason
}
