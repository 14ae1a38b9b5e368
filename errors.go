package intentpay

import "fmt"

// PaymentError represents a payment-specific error
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeInvalidTransition  = "invalid_transition"
	ErrCodePreviewFailed      = "preview_failed"
	ErrCodeOrderNotFound      = "order_not_found"
	ErrCodeHydrationFailed    = "hydration_failed"
	ErrCodeSubmissionFailed   = "submission_failed"
	ErrCodeVerificationFailed = "verification_failed"
	ErrCodeUnsupportedChain   = "unsupported_chain"
	ErrCodeInvalidAddress     = "invalid_address"
	ErrCodeInvalidTxHash      = "invalid_tx_hash"
	ErrCodeInvalidAmount      = "invalid_amount"
)

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}
