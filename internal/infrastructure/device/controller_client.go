package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/venda/backend/internal/domain/token"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 1 * 1024 * 1024 // 1MB

// ControllerClient implements DeviceGateway against the access point
// controller's HTTP API. Verification fails closed: an unreachable
// controller reads as "cannot confirm", never as "token exists".
type ControllerClient struct {
	config     *Config
	httpClient *http.Client
}

// NewControllerClient creates a client for the access point controller
func NewControllerClient(config *Config) (*ControllerClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ControllerClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// verifyResponse is the controller's answer to a token lookup
type verifyResponse struct {
	Found  bool   `json:"found"`
	Status string `json:"status"`
}

// generateRequest asks the controller for a new guest credential
type generateRequest struct {
	NetworkName     string `json:"network_name"`
	DurationMinutes int    `json:"duration_minutes"`
	DeviceLimit     int    `json:"device_limit"`
}

// generateResponse is the controller's newly issued credential
type generateResponse struct {
	Code      string     `json:"code"`
	Username  string     `json:"username"`
	Password  string     `json:"password"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// VerifyToken confirms a token code still exists on the controller
func (c *ControllerClient) VerifyToken(ctx context.Context, code string) (*token.VerifyResult, error) {
	endpoint := fmt.Sprintf("%s/api/tokens/%s", c.config.BaseURL, url.PathEscape(code))
	body, status, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusNotFound:
		return &token.VerifyResult{
			Exists:     false,
			Reason:     "token not found on device",
			StatusCode: status,
		}, nil
	case status >= 400:
		return nil, fmt.Errorf("device: verify returned HTTP %d", status)
	}

	var resp verifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("device: failed to decode verify response: %w", err)
	}
	if !resp.Found {
		return &token.VerifyResult{
			Exists:     false,
			Reason:     fmt.Sprintf("device reports token status %q", resp.Status),
			StatusCode: status,
		}, nil
	}
	return &token.VerifyResult{Exists: true, StatusCode: status}, nil
}

// GenerateCredential creates a guest credential on the controller
func (c *ControllerClient) GenerateCredential(ctx context.Context, req token.CredentialRequest) (*token.GeneratedCredential, error) {
	endpoint := c.config.BaseURL + "/api/tokens"
	payload, err := json.Marshal(generateRequest{
		NetworkName:     req.NetworkName,
		DurationMinutes: req.DurationMinutes,
		DeviceLimit:     req.DeviceLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("device: failed to marshal generate request: %w", err)
	}

	body, status, err := c.doRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("device: generate returned HTTP %d", status)
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("device: failed to decode generate response: %w", err)
	}
	if resp.Code == "" {
		return nil, fmt.Errorf("device: generate response missing token code")
	}
	return &token.GeneratedCredential{
		Code:      resp.Code,
		Username:  resp.Username,
		Password:  resp.Password,
		ExpiresAt: resp.ExpiresAt,
	}, nil
}

func (c *ControllerClient) doRequest(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("device: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("device: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("device: failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// Ensure ControllerClient implements DeviceGateway
var _ token.DeviceGateway = (*ControllerClient)(nil)
