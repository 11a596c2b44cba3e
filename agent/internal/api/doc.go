// Package api implements the agent's HTTP REST API.
//
// New(store, detector) returns an http.Handler that serves:
//
//	GET /api/v1/health       : state counts across live checks
//	GET /api/v1/checks       : latest result of every live check ([]CheckResponse)
//	GET /api/v1/checks/{name}: one check; 404 if unknown or stale
//	GET /api/v1/snapshot     : all live checks + generated_at
//	GET /api/v1/edge         : ad-hoc query: query, from, to and either
//	                            max_age or start+end; 502 with the error
//	                            kind when the backend call fails
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. JSON types are defined in types.go.
package api
