// Package client implements conversation.GenerationClient over HTTP.
//
// # Overview
//
// Client talks to a sketchbook gateway (or any service with the same
// contract). It turns transport and protocol failures into the
// conversation error taxonomy so the Session can record them:
//
//   - no response (dial failure, timeout, cancelled context): NetworkError
//   - non-2xx status: ServerError, with the JSON "error" field as Message
//   - 2xx with an undecodable body or missing id/prompt/outputImage:
//     MalformedResponseError
//
// # Routes
//
//   - GET  /api/my_history: prior turns, oldest first
//   - POST /api/initial: multipart form with a "sketch" file and "prompt"
//   - POST /api/continue: JSON {"prompt", "lastImage"}
//   - POST /api/login: JSON {"username", "password"}, returns {"token"}
//
// Generation requests carry a fresh Idempotency-Key header.
//
// # Usage
//
//	c := client.New("http://localhost:8080", client.WithToken(token))
//	sess := conversation.NewSession(c)
package client
