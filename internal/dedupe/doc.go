// Package dedupe provides a TTL cache that replays completed results for a
// repeated key within a configurable window.
//
// The gateway keys it by user and Idempotency-Key so a client retrying a
// generation request gets the turn that was already committed instead of
// a second one.
package dedupe
