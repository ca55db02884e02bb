package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lockburn/bridge-relayer/etherman"
	"github.com/lockburn/bridge-relayer/sequencer/types"
	"github.com/lockburn/bridge-relayer/server"
	"github.com/pkg/errors"
)

const defaultTimeout = 15 * time.Minute

// TaskResponse is the body of the webhook and task routes
type TaskResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Field   string `json:"field,omitempty"`
	types.View
}

// HealthResponse is the body of the health route
type HealthResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Halted  map[string]string `json:"halted"`
}

// RestClient is a client for the relayer rest api.
type RestClient struct {
	relayerURL string
	adminToken string
	httpClient *http.Client
}

// NewRestClient creates new rest api client.
func NewRestClient(url string) *RestClient {
	return &RestClient{
		relayerURL: url,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// NewRestClientFromConfig creates the client of the configured relayer
func NewRestClientFromConfig(cfg Config) *RestClient {
	return NewRestClient(cfg.RelayerURL).WithAdminToken(cfg.AdminToken)
}

// WithAdminToken sets the bearer token sent on the retry and resume routes
func (c *RestClient) WithAdminToken(token string) *RestClient {
	c.adminToken = token
	return c
}

// Health returns the health status. The status code is returned along with the body.
func (c *RestClient) Health(ctx context.Context) (int, *HealthResponse, error) {
	var res HealthResponse
	code, err := c.do(ctx, http.MethodGet, "/api/health", nil, &res)
	return code, &res, err
}

// Contracts returns the configured contracts of both chains
func (c *RestClient) Contracts(ctx context.Context) ([]server.ChainContracts, error) {
	var res struct {
		Contracts []server.ChainContracts `json:"contracts"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/contracts", nil, &res); err != nil {
		return nil, err
	}
	return res.Contracts, nil
}

// MerkleRoots returns the accumulator state of both directions
func (c *RestClient) MerkleRoots(ctx context.Context) ([]server.MerkleRoot, error) {
	var res struct {
		Roots []server.MerkleRoot `json:"roots"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/merkle-roots", nil, &res); err != nil {
		return nil, err
	}
	return res.Roots, nil
}

// Webhook posts a transfer payload and waits for the outcome
func (c *RestClient) Webhook(ctx context.Context, direction etherman.Direction, payload interface{}) (int, *TaskResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	var res TaskResponse
	code, err := c.do(ctx, http.MethodPost, "/api/webhook/"+string(direction), body, &res)
	return code, &res, err
}

// GetTask returns the status of a settlement task
func (c *RestClient) GetTask(ctx context.Context, direction etherman.Direction, id string) (int, *TaskResponse, error) {
	var res TaskResponse
	code, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%s/%s", direction, id), nil, &res)
	return code, &res, err
}

// RetryTask retries a failed settlement task
func (c *RestClient) RetryTask(ctx context.Context, direction etherman.Direction, id string) (int, *TaskResponse, error) {
	var res TaskResponse
	code, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/admin/tasks/%s/%s/retry", direction, id), nil, &res)
	return code, &res, err
}

// Resume lifts the halt of a direction
func (c *RestClient) Resume(ctx context.Context, direction etherman.Direction) error {
	var res TaskResponse
	code, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/admin/directions/%s/resume", direction), nil, &res)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("resume %s: status %d: %s", direction, code, res.Error)
	}
	return nil
}

func (c *RestClient) do(ctx context.Context, method, path string, body []byte, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.relayerURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrapf(err, "read %s %s", method, path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, errors.Wrapf(err, "decode %s %s: %s", method, path, string(data))
	}
	return resp.StatusCode, nil
}
