package racecheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/okian/courtside/internal/adapters/identity"
)

const tokenTTL = time.Hour

// client issues authenticated JSON requests against the API.
type client struct {
	http    *http.Client
	baseURL string
	issuer  *identity.JWT

	mu     sync.Mutex
	tokens map[string]string
}

func newClient(cfg *Config) *client {
	var opts []identity.JWTOption
	if cfg.Issuer != "" {
		opts = append(opts, identity.WithIssuer(cfg.Issuer))
	}
	return &client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		issuer:  identity.NewJWT(cfg.Secret, opts...),
		tokens:  map[string]string{},
	}
}

func (c *client) token(userID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tokens[userID]; ok {
		return t, nil
	}
	t, err := c.issuer.Issue(userID, userID, tokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	c.tokens[userID] = t
	return t, nil
}

// do sends body as JSON on behalf of userID (anonymous when empty) and
// decodes a 2xx response into out. Non-2xx responses return the status and
// the decoded error body.
func (c *client) do(ctx context.Context, method, path, userID string, body, out any) (int, errorResponse, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, errorResponse{}, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, errorResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		t, err := c.token(userID)
		if err != nil {
			return 0, errorResponse{}, err
		}
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errorResponse{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errorResponse{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		return resp.StatusCode, e, nil
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, errorResponse{}, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, errorResponse{}, nil
}

// expect wraps do and fails on any status other than want.
func (c *client) expect(ctx context.Context, want int, method, path, userID string, body, out any) error {
	status, e, err := c.do(ctx, method, path, userID, body, out)
	if err != nil {
		return err
	}
	if status != want {
		return fmt.Errorf("%w: %s %s: %d %s %s", ErrUnexpectedResponse, method, path, status, e.Code, e.Message)
	}
	return nil
}
