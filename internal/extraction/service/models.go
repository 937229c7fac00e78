package service

import (
	"net/http"

	"nidapi/internal/nationalid/codec"
)

// Outcome is the terminal state of one extraction attempt.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeBadRequest      Outcome = "bad_request"
	OutcomePaymentRequired Outcome = "payment_required"
	OutcomeInternalError   Outcome = "internal_error"
)

// Kinds for request-shape failures detected before the codec runs.
const (
	KindRequired      codec.Kind = "required"
	KindMalformedBody codec.Kind = "malformed_body"
)

// Input is one extraction request as decoded by the transport.
type Input struct {
	Scheme     codec.Scheme
	NationalID string
	// Malformed is set when the request body could not be decoded.
	Malformed bool
}

// Result is what the transport renders. Exactly one of Record and Validation
// is set for success and bad-request outcomes.
type Result struct {
	Outcome       Outcome
	Record        *codec.Record
	Validation    *codec.ValidationError
	TokensCharged int64
	Err           error
}

// Status maps the outcome to its HTTP status.
func (r *Result) Status() int {
	switch r.Outcome {
	case OutcomeSuccess:
		return http.StatusOK
	case OutcomeBadRequest:
		return http.StatusBadRequest
	case OutcomePaymentRequired:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func requiredError() *codec.ValidationError {
	return &codec.ValidationError{Kind: KindRequired, Field: codec.FieldNationalID, Message: "This field is required."}
}

func malformedBodyError() *codec.ValidationError {
	return &codec.ValidationError{Kind: KindMalformedBody, Field: codec.FieldNationalID, Message: "Invalid request body"}
}
