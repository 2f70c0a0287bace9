package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound             = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists        = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput         = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict  = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState         = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrOrderNumberConflict  = NewDomainError("ORDER_NUMBER_CONFLICT", "Order number already in use")
	ErrInsufficientTokens   = NewDomainError("INSUFFICIENT_TOKENS", "Not enough tokens available")
	ErrDeviceVerification   = NewDomainError("DEVICE_VERIFICATION_FAILED", "Token could not be verified on device")
	ErrInsufficientStock    = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrTokenAlreadyReserved = NewDomainError("TOKEN_ALREADY_RESERVED", "Token is already reserved by another sale")
)
