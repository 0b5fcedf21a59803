// Package handler implements the FleetForge REST API.
//
// Handlers are thin: they decode the request, call one service method and
// encode the result. Every route is registered with a method pattern on a
// single http.ServeMux built by NewMux.
//
// # Errors
//
// Failures are returned as {error, details, reason}. The status code comes
// from the errdefs class of the error:
//
//	invalid argument    400
//	not found           404
//	conflict, exists    409
//	failed precondition 412
//	not implemented     501
//
// reason is present when a topology request was refused and names the
// offending node, interface and network.
//
// # Conditional assignment
//
// GET /api/nodes/{id}/interfaces returns the node's topology version as an
// ETag. Sending it back as If-Match on PUT makes the apply fail with 412
// when anything changed the node's topology in between.
//
// # Middleware
//
// Chain composes Recover, CORS and Logger. Logger must be innermost so that
// the matched route pattern is visible when the request completes.
package handler
