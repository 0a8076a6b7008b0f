// Package gateway serves the sketch-to-image generation API.
//
// # Overview
//
// The gateway owns the HTTP server, the SQLite store, the image generator
// and the idempotency replay cache. Clients authenticate with a bearer
// token from POST /api/login; teachers additionally manage accounts and
// review their students' conversations.
//
// # HTTP API
//
//   - GET /health - Liveness check
//   - POST /api/login - Exchange username and password for a token
//   - POST /api/register - Create an account (first account is a teacher)
//   - GET /api/my_history - Caller's turns, oldest first
//   - POST /api/initial - Generate from an uploaded sketch (multipart)
//   - POST /api/continue - Generate from the previous output image (JSON)
//   - GET /api/users - Accounts with turn counts (teacher)
//   - GET /api/users/{id}/history - A user's turns (teacher)
//   - GET /teacher/users/{id} - HTML transcript of a user's turns (teacher)
//
// Errors are JSON objects of the form {"error": "message"}.
//
// # Idempotency
//
// POST /api/initial and /api/continue honor an Idempotency-Key header. A
// repeated key from the same user within the configured TTL returns the
// turn that was already committed instead of generating again.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil { ... }
//	err = gw.Run(ctx) // blocks until ctx is canceled
//
// Run shuts the server down gracefully with a five second deadline and
// closes the store.
package gateway
