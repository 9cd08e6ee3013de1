package cpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/ikkim/cpportal-backend/pkg/logger"
)

// Client talks to the CP portal gateway and unwraps its response envelope.
// Any statusCode other than "0" is returned as *APIError and data is ignored.
type Client struct {
	config     Config
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a new gateway client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		token:      config.Token,
	}, nil
}

// SetToken replaces the bearer token used for later requests
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register creates a provider account and keeps its access token
func (c *Client) Register(ctx context.Context, email, password, name, phone string) (*AuthResponse, error) {
	var res AuthResponse
	body := map[string]string{"email": email, "password": password, "name": name, "phone": phone}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &res); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	c.SetToken(res.Tokens.AccessToken)
	return &res, nil
}

// Login authenticates and keeps the access token for later calls
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var res AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &res); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.SetToken(res.Tokens.AccessToken)
	return &res, nil
}

// Logout revokes the current access token and, when given, the refresh token
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/logout", body, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	c.SetToken("")
	return nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var res struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &res); err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return &res.User, nil
}

// MyMaterial returns nil when the provider has not saved anything yet
func (c *Client) MyMaterial(ctx context.Context) (*Material, error) {
	var m *Material
	if err := c.do(ctx, http.MethodGet, "/cp/material", nil, &m); err != nil {
		return nil, fmt.Errorf("get material: %w", err)
	}
	return m, nil
}

// SaveMaterial creates the material when materialID is 0 and updates it otherwise
func (c *Client) SaveMaterial(ctx context.Context, materialID uint, req SaveRequest) (*Material, error) {
	method, path := http.MethodPost, "/cp/material"
	if materialID != 0 {
		method, path = http.MethodPut, fmt.Sprintf("/cp/material/%d", materialID)
	}

	var m Material
	if err := c.do(ctx, method, path, req, &m); err != nil {
		return nil, fmt.Errorf("save material: %w", err)
	}
	return &m, nil
}

func (c *Client) Statuses(ctx context.Context) ([]StatusInfo, error) {
	var res struct {
		Statuses []StatusInfo `json:"statuses"`
	}
	if err := c.do(ctx, http.MethodGet, "/materials/statuses", nil, &res); err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	return res.Statuses, nil
}

// ListMaterials pages the admin queue; an empty status lists everything
func (c *Client) ListMaterials(ctx context.Context, status string, page, pageSize int) (*MaterialPage, error) {
	var res MaterialPage
	if err := c.do(ctx, http.MethodGet, "/admin/materials?"+listQuery(status, page, pageSize).Encode(), nil, &res); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return &res, nil
}

func (c *Client) GetMaterial(ctx context.Context, materialID uint) (*MaterialDetail, error) {
	var res MaterialDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/admin/materials/%d", materialID), nil, &res); err != nil {
		return nil, fmt.Errorf("get material: %w", err)
	}
	return &res, nil
}

func (c *Client) Approve(ctx context.Context, materialID uint) (*Material, error) {
	var m Material
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/admin/materials/%d/approve", materialID), nil, &m); err != nil {
		return nil, fmt.Errorf("approve material: %w", err)
	}
	return &m, nil
}

func (c *Client) Reject(ctx context.Context, materialID uint, comment string) (*Material, error) {
	var m Material
	body := map[string]string{"comment": comment}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/admin/materials/%d/reject", materialID), body, &m); err != nil {
		return nil, fmt.Errorf("reject material: %w", err)
	}
	return &m, nil
}

// Export streams the XLSX review queue into w
func (c *Client) Export(ctx context.Context, status string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, "/admin/materials/export?"+listQuery(status, 0, 0).Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("export materials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("export materials: %w", decodeEnvelope(resp.StatusCode, body, nil))
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("export materials: %w", err)
	}
	return n, nil
}

func listQuery(status string, page, pageSize int) url.Values {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	return q
}

// do sends payload as JSON and decodes the envelope's data into out
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return decodeEnvelope(resp.StatusCode, body, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reqBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger.Debug("Gateway request", map[string]interface{}{
		"method": method,
		"path":   path,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	return resp, nil
}

// decodeEnvelope returns *APIError for any non-"0" code without touching out
func decodeEnvelope(httpStatus int, body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unexpected response (status %d): %w", httpStatus, err)
	}
	if env.StatusCode != statusOK {
		return &APIError{
			HTTPStatus: httpStatus,
			Code:       env.StatusCode,
			Message:    env.StatusMessage,
			Fields:     env.Fields,
		}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}
