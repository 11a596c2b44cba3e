package promapi

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork wraps failures to complete the HTTP round trip: dial errors,
	// transport timeouts, cancelled contexts and truncated bodies.
	ErrNetwork = errors.New("network error")

	// ErrMalformedResponse wraps bodies that could not be decoded into the
	// query_range response shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// ErrorTypeUnexpectedResult is the APIError type reported when a successful
// response carries a result type other than matrix.
const ErrorTypeUnexpectedResult = "unexpected_result_type"

// APIError is a query rejected by the backend. Type and Message are the
// response's errorType and error fields, verbatim.
type APIError struct {
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %s: %s", e.Type, e.Message)
}
