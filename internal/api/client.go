// Package api is the authenticated transport to the POS content backend.
//
// Every call carries the current session credential when one exists
// (Authorization: Bearer <jwt>) and a fresh X-Request-ID. Non-2xx responses
// are decoded into *Error, and FormatError is the only place such failures are
// turned into user-facing text.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"posdash/internal/logger"
)

// Credentials supplies the bearer token for outgoing calls. An empty token
// means "not signed in" and no Authorization header is sent.
type Credentials interface {
	Token() string
}

// StaticToken is a fixed credential.
type StaticToken string

// Token implements Credentials.
func (t StaticToken) Token() string { return string(t) }

// Client talks to the backend REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	log        zerolog.Logger
}

// NewClient creates a client for baseURL (e.g. "https://pos.example.com").
// creds may be nil for anonymous use.
func NewClient(baseURL string, timeout time.Duration, creds Credentials) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		creds: creds,
		log:   logger.WithComponent("api"),
	}
}

// request describes one backend call
type request struct {
	method string
	path   string
	query  url.Values
	body   any

	// raw bodies (multipart uploads) bypass JSON encoding
	rawBody     io.Reader
	contentType string

	// token overrides the session credential; anonymous suppresses it
	token     string
	anonymous bool
}

// send executes req and decodes a 2xx JSON body into out (when out is non-nil).
func (c *Client) send(ctx context.Context, req request, out any) error {
	op := req.method + " " + req.path

	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	contentType := req.contentType
	switch {
	case req.rawBody != nil:
		body = req.rawBody
	case req.body != nil:
		payload, err := json.Marshal(req.body)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return &Error{Op: op, Err: err}
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token := c.tokenFor(req); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	log := logger.WithRequestID(requestID).With().Str("component", "api").Logger()
	log.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Str("query", req.query.Encode()).
		Str("authorization", logger.MaskAuthorization(httpReq.Header.Get("Authorization"))).
		Msg("Sending request")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Str("op", op).Msg("Request failed before a response was received")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &Error{Op: op, Err: err}
		}
		return &Error{Op: op, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
	}

	log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Int("bytes", len(data)).
		Msg("Received response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Op: op, Status: resp.StatusCode, Err: statusError(resp.StatusCode)}
		var envelope errorEnvelope
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Name = envelope.Error.Name
			apiErr.Message = envelope.Error.Message
			if apiErr.Message == "" {
				apiErr.Message = envelope.Message
			}
		}
		log.Warn().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("message", apiErr.Message).
			Msg("Backend rejected request")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}
	return nil
}

func (c *Client) tokenFor(req request) string {
	if req.anonymous {
		return ""
	}
	if req.token != "" {
		return req.token
	}
	if c.creds == nil {
		return ""
	}
	return c.creds.Token()
}
