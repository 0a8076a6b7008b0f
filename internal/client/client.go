// ABOUTME: HTTP implementation of the conversation GenerationClient
// ABOUTME: Talks to the sketchbook gateway: history, initial, continue, and login

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/sketchbook/internal/conversation"
)

const (
	// DefaultTimeout bounds a single request. Generation can be slow.
	DefaultTimeout = 2 * time.Minute

	// DefaultUserAgent identifies the client to the gateway.
	DefaultUserAgent = "sketchbook-client/1"

	// maxResponseBytes caps response bodies; images arrive inline as data URLs.
	maxResponseBytes = 64 << 20

	// IdempotencyHeader carries the per-request key on generation calls.
	IdempotencyHeader = "Idempotency-Key"
)

// Client calls the generation service over HTTP.
type Client struct {
	baseURL   string
	http      *http.Client
	token     string
	userAgent string
	logger    *slog.Logger
	newKey    func() string
}

var _ conversation.GenerationClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		logger:    slog.Default(),
		newKey:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "client")
	return c
}

// SetToken replaces the bearer token, e.g. after Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// FetchHistory returns the caller's committed turns, oldest first.
func (c *Client) FetchHistory(ctx context.Context) ([]conversation.Turn, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/my_history", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req, "history")
	if err != nil {
		return nil, err
	}
	return decodeHistory(body)
}

// Start uploads the sketch and prompt and returns the first generated turn.
func (c *Client) Start(ctx context.Context, sr conversation.StartRequest) (*conversation.Turn, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := sr.Sketch.Filename
	if filename == "" {
		filename = "sketch"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="sketch"; filename=%q`, filename))
	h.Set("Content-Type", sr.Sketch.ContentType())
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating sketch part: %w", err)
	}
	if _, err := part.Write(sr.Sketch.Data); err != nil {
		return nil, fmt.Errorf("writing sketch part: %w", err)
	}
	if err := mw.WriteField("prompt", sr.Prompt); err != nil {
		return nil, fmt.Errorf("writing prompt field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/initial", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(IdempotencyHeader, c.newKey())

	body, err := c.do(req, "initial")
	if err != nil {
		return nil, err
	}
	return decodeTurn(body)
}

// continueRequest is the JSON body of POST /api/continue.
type continueRequest struct {
	Prompt    string `json:"prompt"`
	LastImage string `json:"lastImage"`
}

// Continue sends the prompt with the previous output image.
func (c *Client) Continue(ctx context.Context, cr conversation.ContinueRequest) (*conversation.Turn, error) {
	payload, err := json.Marshal(continueRequest{Prompt: cr.Prompt, LastImage: cr.LastImage})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/continue", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, c.newKey())

	body, err := c.do(req, "continue")
	if err != nil {
		return nil, err
	}
	return decodeTurn(body)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token. The token is not stored on c.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	payload, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/login", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "login")
	if err != nil {
		return "", err
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &conversation.MalformedResponseError{Err: err}
	}
	if resp.Token == "" {
		return "", &conversation.MalformedResponseError{Missing: []string{"token"}}
	}
	return resp.Token, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends req and returns the body of a 2xx response. Transport failures
// are NetworkErrors and non-2xx responses are ServerErrors.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "op", op, "error", err)
		return nil, &conversation.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &conversation.NetworkError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.logger.Debug("request complete",
		"op", op,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverError(resp.StatusCode, body)
	}
	if len(body) > maxResponseBytes {
		return nil, &conversation.MalformedResponseError{Err: errors.New("response too large")}
	}
	return body, nil
}

// serverError extracts the service's message from an error response.
func serverError(status int, body []byte) *conversation.ServerError {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		return &conversation.ServerError{StatusCode: status, Message: strings.TrimSpace(eb.Error)}
	}
	return &conversation.ServerError{StatusCode: status}
}
