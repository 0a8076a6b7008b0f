// Package auth provides authentication and authorization for sketchbook-gateway.
//
// Users log in with a username and password (bcrypt hashes, see
// HashPassword and CheckPassword) and receive an HS256 JWT:
//
//	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
//	token, err := verifier.Generate(user.ID, user.IsTeacher, cfg.Auth.TokenTTL)
//
// Requests carry the token as "Authorization: Bearer <token>".
// HTTPAuthMiddleware verifies it, loads the user, and stores an AuthContext
// in the request context. RequireTeacherHTTP gates teacher-only routes.
// OptionalAuthMiddleware attaches the identity when present and lets
// anonymous requests through.
package auth
