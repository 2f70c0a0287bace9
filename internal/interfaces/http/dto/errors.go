package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeNotFound   = "NOT_FOUND"
)

// errorCodeHTTPStatus maps domain error codes to HTTP status codes.
// Validation problems are the client's fault (400), business rule
// failures are well-formed but impossible (422), and contention
// failures that may succeed on retry are conflicts (409).
var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,

	"INVALID_INPUT":          http.StatusBadRequest,
	"INVALID_PAYMENT_METHOD": http.StatusBadRequest,
	"INVALID_LINE_KIND":      http.StatusBadRequest,
	"INVALID_QUANTITY":       http.StatusBadRequest,
	"INVALID_AMOUNT":         http.StatusBadRequest,
	"INVALID_TOKEN_CONFIG":   http.StatusBadRequest,
	"INVALID_ORDER_NUMBER":   http.StatusBadRequest,
	"INVALID_LINE_NAME":      http.StatusBadRequest,
	"INVALID_PRICE":          http.StatusBadRequest,
	"INVALID_DISCOUNT":       http.StatusBadRequest,
	"INVALID_TAX":            http.StatusBadRequest,
	"INVALID_REASON":         http.StatusBadRequest,
	"NO_LINES":               http.StatusBadRequest,
	"NO_COMPONENTS":          http.StatusBadRequest,

	"NOT_FOUND":      http.StatusNotFound,
	"LINE_NOT_FOUND": http.StatusNotFound,

	"ALREADY_EXISTS":         http.StatusConflict,
	"CONCURRENCY_CONFLICT":   http.StatusConflict,
	"ORDER_NUMBER_CONFLICT":  http.StatusConflict,
	"TOKEN_ALREADY_RESERVED": http.StatusConflict,

	"INVALID_STATE":              http.StatusUnprocessableEntity,
	"INSUFFICIENT_TOKENS":        http.StatusUnprocessableEntity,
	"DEVICE_VERIFICATION_FAILED": http.StatusUnprocessableEntity,
	"INSUFFICIENT_STOCK":         http.StatusUnprocessableEntity,
	"INSUFFICIENT_BALANCE":       http.StatusUnprocessableEntity,
	"INVALID_TRANSACTION_TYPE":   http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500 Internal Server Error.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
