// Package promapi issues range queries against a Prometheus-compatible HTTP API
// and validates the shape of the response.
//
// Client.QueryRange sends exactly one GET to <base>/api/v1/query_range and
// returns the decoded series list. Decode dispatches on the "status"
// discriminator before looking at any payload field:
//
//	status "success" + resultType "matrix" -> *Success
//	status "error"                         -> *Failure (errorType + error verbatim)
//	status "success" + other resultType    -> *Failure ("unexpected_result_type")
//	anything else                          -> ErrMalformedResponse
//
// Failures are reported with three distinct error kinds: ErrNetwork (the
// request could not complete), ErrMalformedResponse (the body could not be
// decoded) and *APIError (the backend rejected the query). Sample values are
// kept as raw text; interpreting them is the caller's job.
package promapi
