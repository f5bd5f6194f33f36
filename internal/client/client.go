// Package client provides an HTTP/JSON client for the configsync REST API,
// used by the CLI commands.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/configsync/configsync/internal/configstore"
	"github.com/configsync/configsync/internal/model"
)

// Client talks to a configsync server over HTTP. When token is non-empty,
// an Authorization header is set on every request.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client targeting the given base URL
// (e.g. "http://localhost:8080").
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// --- Auth ---

// RegisterRequest holds parameters for creating an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*model.PublicUser, error) {
	var user model.PublicUser
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", body, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Logout revokes the client's current token.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", struct{}{}, nil)
}

// --- Configs ---

// ownerQuery renders the optional admin owner filter.
func ownerQuery(owner *int64) string {
	if owner == nil {
		return ""
	}
	return "?owner=" + fmt.Sprintf("%d", *owner)
}

func (c *Client) GetConfig(ctx context.Context, service string, owner *int64) (*model.ServiceConfig, error) {
	var cfg model.ServiceConfig
	path := "/v1/configs/" + url.PathEscape(service) + ownerQuery(owner)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) SetConfig(ctx context.Context, service string, payload json.RawMessage, owner *int64) (*model.ServiceConfig, error) {
	body := map[string]json.RawMessage{"payload": payload}
	var cfg model.ServiceConfig
	path := "/v1/configs/" + url.PathEscape(service) + ownerQuery(owner)
	if err := c.doJSON(ctx, http.MethodPut, path, body, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) DeleteConfig(ctx context.Context, service string, owner *int64) error {
	path := "/v1/configs/" + url.PathEscape(service) + ownerQuery(owner)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) ListConfigs(ctx context.Context, owner *int64) ([]*model.ServiceConfig, error) {
	var resp struct {
		Configs []*model.ServiceConfig `json:"configs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/configs"+ownerQuery(owner), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Configs, nil
}

// --- Versions ---

func (c *Client) ListVersions(ctx context.Context, service string, owner *int64) ([]*model.ConfigVersion, error) {
	var resp struct {
		Versions []*model.ConfigVersion `json:"versions"`
	}
	path := "/v1/configs/" + url.PathEscape(service) + "/versions" + ownerQuery(owner)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}

func (c *Client) Rollback(ctx context.Context, service string, versionID int64, owner *int64) (*model.ServiceConfig, error) {
	body := map[string]int64{"version_id": versionID}
	var cfg model.ServiceConfig
	path := "/v1/configs/" + url.PathEscape(service) + "/rollback" + ownerQuery(owner)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) Diff(ctx context.Context, service string, from, to int64, owner *int64) (*configstore.DiffResult, error) {
	q := url.Values{}
	q.Set("from", fmt.Sprintf("%d", from))
	q.Set("to", fmt.Sprintf("%d", to))
	if owner != nil {
		q.Set("owner", fmt.Sprintf("%d", *owner))
	}
	path := "/v1/configs/" + url.PathEscape(service) + "/diff?" + q.Encode()
	var result configstore.DiffResult
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// --- Health ---

func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content means success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
