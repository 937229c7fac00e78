package httputil

import "net/http"

// Envelope is the response shape of the metered extraction API. Exactly one
// of Data and Errors is non-nil.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Errors  any    `json:"errors"`
}

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorDetail is the single-object errors value for non-validation failures.
type ErrorDetail struct {
	Detail string `json:"detail"`
}

// WriteSuccess writes a 200 envelope carrying data.
func WriteSuccess(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// WriteFailure writes a failed envelope; errs is []FieldError or ErrorDetail.
func WriteFailure(w http.ResponseWriter, status int, message string, errs any) {
	WriteJSON(w, status, Envelope{Success: false, Message: message, Errors: errs})
}
