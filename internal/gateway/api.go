// ABOUTME: HTTP API handlers for accounts, history, and sketch generation
// ABOUTME: Encodes turns as camelCase JSON and answers errors as {"error": msg}

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/sketchbook/internal/auth"
	"github.com/2389/sketchbook/internal/conversation"
	"github.com/2389/sketchbook/internal/generator"
	"github.com/2389/sketchbook/internal/store"
)

// IdempotencyKeyHeader lets a client retry a generation without creating a second turn.
const IdempotencyKeyHeader = "Idempotency-Key"

// TurnResponse is a turn as sent to clients.
type TurnResponse struct {
	ID                int64  `json:"id"`
	Prompt            string `json:"prompt"`
	InputImage        string `json:"inputImage"`
	OutputImage       string `json:"outputImage"`
	ModelResponseText string `json:"modelResponseText"`
	CreatedAt         string `json:"createdAt"`
}

// UserResponse describes an account.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	IsTeacher bool   `json:"is_teacher"`
	TurnCount *int   `json:"turn_count,omitempty"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token for later requests.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	IsTeacher bool   `json:"is_teacher"`
}

// ContinueRequest is the body of POST /api/continue.
type ContinueRequest struct {
	Prompt    string `json:"prompt"`
	LastImage string `json:"lastImage"`
}

func newTurnResponse(t *store.Turn) TurnResponse {
	return TurnResponse{
		ID:                t.ID,
		Prompt:            t.Prompt,
		InputImage:        t.InputImage,
		OutputImage:       t.OutputImage,
		ModelResponseText: t.ModelResponseText,
		CreatedAt:         t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newTurnList(turns []*store.Turn) []TurnResponse {
	out := make([]TurnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, newTurnResponse(t))
	}
	return out
}

func newUserResponse(u *store.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, IsTeacher: u.IsTeacher}
}

// sendJSON writes v as a JSON response with the given status.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// isTooLarge reports whether err came from exceeding the MaxBytesReader limit.
// The multipart reader does not always wrap the underlying error.
func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

// handleLogin exchanges a username and password for a bearer token.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		g.sendJSONError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := g.store.GetUserByUsername(r.Context(), username)
	var hash string
	switch {
	case err == nil:
		hash = user.PasswordHash
	case errors.Is(err, store.ErrNotFound):
	default:
		g.logger.Error("failed to look up user", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// CheckPassword runs a full bcrypt comparison even for unknown users.
	if err := auth.CheckPassword(hash, req.Password); err != nil {
		g.logger.Info("login failed", "username", username)
		g.sendJSONError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := g.verifier.Generate(user.ID, user.IsTeacher, g.config.Auth.TokenTTL)
	if err != nil {
		g.logger.Error("failed to issue token", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	g.sendJSON(w, http.StatusOK, LoginResponse{Token: token, User: newUserResponse(user)})
}

// handleRegister creates an account. The first account needs no credentials
// and is always a teacher; later accounts can only be created by a teacher.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		g.sendJSONError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	g.registerMu.Lock()
	defer g.registerMu.Unlock()

	count, err := g.store.CountUsers(r.Context())
	if err != nil {
		g.logger.Error("failed to count users", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	firstUser := count == 0
	if !firstUser {
		caller := auth.FromContext(r.Context())
		if caller == nil {
			g.sendJSONError(w, http.StatusUnauthorized, "Only a teacher can create new accounts")
			return
		}
		if !caller.IsTeacher {
			g.sendJSONError(w, http.StatusForbidden, "Only a teacher can create new accounts")
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		g.logger.Error("failed to hash password", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		IsTeacher:    req.IsTeacher || firstUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := g.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			g.sendJSONError(w, http.StatusConflict, "Username already exists")
			return
		}
		g.logger.Error("failed to create user", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g.logger.Info("user registered", "user_id", user.ID, "username", user.Username, "teacher", user.IsTeacher)
	g.sendJSON(w, http.StatusCreated, newUserResponse(user))
}

// handleMyHistory returns the caller's turns, oldest first.
func (g *Gateway) handleMyHistory(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustFromContext(r.Context())

	turns, err := g.store.ListTurns(r.Context(), caller.UserID)
	if err != nil {
		g.logger.Error("failed to list turns", "user_id", caller.UserID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	g.sendJSON(w, http.StatusOK, newTurnList(turns))
}

// handleInitial generates the first image of a conversation from an uploaded sketch.
func (g *Gateway) handleInitial(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, g.config.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(g.config.Server.MaxUploadBytes); err != nil {
		if isTooLarge(err) {
			g.sendJSONError(w, http.StatusRequestEntityTooLarge, "Sketch file too large")
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			g.sendJSONError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
	}

	file, header, err := r.FormFile("sketch")
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "Missing sketch file")
		return
	}
	defer file.Close()

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if prompt == "" {
		g.sendJSONError(w, http.StatusBadRequest, "Missing prompt")
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "Missing sketch file")
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(image)
	}

	g.generate(w, r, generator.Request{Image: image, MIMEType: mimeType, Prompt: prompt},
		conversation.EncodeDataURL(mimeType, image))
}

// handleContinue refines the previous output image with a new prompt.
func (g *Gateway) handleContinue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, g.config.Server.MaxUploadBytes)

	var req ContinueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isTooLarge(err) {
			g.sendJSONError(w, http.StatusRequestEntityTooLarge, "lastImage too large")
			return
		}
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		g.sendJSONError(w, http.StatusBadRequest, "Missing prompt")
		return
	}
	if req.LastImage == "" {
		g.sendJSONError(w, http.StatusBadRequest, "Missing lastImage (data URL)")
		return
	}
	mimeType, image, err := conversation.DecodeDataURL(req.LastImage)
	if err != nil || len(image) == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "Invalid lastImage data URL")
		return
	}

	g.generate(w, r, generator.Request{Image: image, MIMEType: mimeType, Prompt: prompt}, req.LastImage)
}

// generate runs the generator, commits the turn, and writes it. A repeated
// Idempotency-Key from the same user replays the committed turn.
func (g *Gateway) generate(w http.ResponseWriter, r *http.Request, req generator.Request, inputImage string) {
	caller := auth.MustFromContext(r.Context())

	var key string
	if k := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); k != "" {
		key = caller.UserID + ":" + k
	}

	var genErr error
	turn, replayed, err := g.replays.Do(r.Context(), key, func() (*store.Turn, error) {
		start := time.Now()
		result, err := g.generator.Generate(r.Context(), req)
		if err != nil {
			genErr = err
			return nil, err
		}
		g.logger.Debug("generated image",
			"user_id", caller.UserID,
			"duration", time.Since(start),
			"bytes", len(result.Image),
		)

		turn := &store.Turn{
			UserID:            caller.UserID,
			Prompt:            req.Prompt,
			InputImage:        inputImage,
			OutputImage:       conversation.EncodeDataURL(result.MIMEType, result.Image),
			ModelResponseText: result.Text,
			CreatedAt:         time.Now().UTC(),
		}
		if err := g.store.AppendTurn(r.Context(), turn); err != nil {
			return nil, err
		}
		return turn, nil
	})
	if err != nil {
		if genErr != nil {
			g.logger.Error("generation failed", "user_id", caller.UserID, "error", err)
			g.sendJSONError(w, http.StatusBadGateway, "Image generation failed")
			return
		}
		g.logger.Error("failed to save turn", "user_id", caller.UserID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if replayed {
		g.logger.Info("replayed turn for repeated idempotency key", "user_id", caller.UserID, "turn_id", turn.ID)
	} else {
		g.logger.Info("turn committed", "user_id", caller.UserID, "turn_id", turn.ID)
	}
	g.sendJSON(w, http.StatusOK, newTurnResponse(turn))
}

// handleListUsers lists every account with its turn count.
func (g *Gateway) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := g.store.ListUsersWithTurnCounts(r.Context())
	if err != nil {
		g.logger.Error("failed to list users", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp := newUserResponse(&u.User)
		count := u.TurnCount
		resp.TurnCount = &count
		out = append(out, resp)
	}
	g.sendJSON(w, http.StatusOK, out)
}

// handleUserHistory returns another user's turns for a teacher.
func (g *Gateway) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := g.lookupUser(w, r)
	if !ok {
		return
	}

	turns, err := g.store.ListTurns(r.Context(), user.ID)
	if err != nil {
		g.logger.Error("failed to list turns", "user_id", user.ID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	g.sendJSON(w, http.StatusOK, newTurnList(turns))
}

// lookupUser resolves the {id} path value, writing 404 when it does not exist.
func (g *Gateway) lookupUser(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	user, err := g.store.GetUser(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	if err != nil {
		g.logger.Error("failed to get user", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return user, true
}
