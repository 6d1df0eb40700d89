package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/afex/hystrix-go/hystrix"
	"go.uber.org/zap"
)

const (
	quotePath         = "/quote"
	dynamicFeePath    = "/dynamic-fee"
	preparePermitPath = "/prepare-permit"
	buildTxPath       = "/build-tx"

	hystrixCommandPrefix = "dex-swap"
)

var noRouteMarkers = []string{
	"no route",
	"no routes",
	"route not found",
	"insufficient liquidity",
	"not enough liquidity",
	"no quotes",
}

// APIError is returned for every failed call to the swap API
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Endpoint, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNoRoute reports whether the service said no route or liquidity exists
func (e *APIError) IsNoRoute() bool {
	msg := strings.ToLower(e.Message)
	for _, marker := range noRouteMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// APIClient talks to the swap API (quote, dynamic fee, permit, transaction building)
type APIClient struct {
	baseURL    string
	apiKey     string
	chainID    uint64
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customises an APIClient
type Option func(*APIClient)

// WithAPIKey sets the key sent in the x-api-key header
func WithAPIKey(key string) Option {
	return func(c *APIClient) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *APIClient) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *APIClient) {
		c.logger = logger
	}
}

// NewAPIClient creates a new swap API client
func NewAPIClient(baseURL string, chainID uint64, timeout time.Duration, opts ...Option) *APIClient {
	c := &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chainID:    chainID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, path := range []string{quotePath, dynamicFeePath, preparePermitPath, buildTxPath} {
		hystrix.ConfigureCommand(commandName(path), hystrix.CommandConfig{
			Timeout:                int(timeout.Milliseconds()) + 1000,
			MaxConcurrentRequests:  50,
			RequestVolumeThreshold: 20,
			SleepWindow:            30000,
			ErrorPercentThreshold:  50,
		})
	}

	return c
}

// ChainID returns the chain the client quotes for
func (c *APIClient) ChainID() uint64 {
	return c.chainID
}

func commandName(path string) string {
	return hystrixCommandPrefix + strings.ReplaceAll(path, "/", ".")
}

// errorBody is the error envelope every endpoint may answer with
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

// post sends body as JSON and decodes a successful response into out.
// Transport failures and 5xx answers count against the endpoint's circuit;
// business errors (4xx, {error} bodies) do not.
func (c *APIClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &APIError{Endpoint: path, Message: "failed to encode request", Err: err}
	}

	var businessErr error
	result := make(chan []byte, 1)

	errChan := hystrix.Go(commandName(path), func() error {
		respBody, status, err := c.do(ctx, path, payload)
		if err != nil {
			return err
		}
		if status >= 500 {
			return &APIError{Endpoint: path, StatusCode: status, Message: extractMessage(respBody)}
		}
		if status < 200 || status >= 300 {
			businessErr = &APIError{Endpoint: path, StatusCode: status, Message: extractMessage(respBody)}
			result <- nil
			return nil
		}
		result <- respBody
		return nil
	}, nil)

	var respBody []byte
	select {
	case respBody = <-result:
	case err := <-errChan:
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return &APIError{Endpoint: path, Message: err.Error(), Err: err}
	}

	if businessErr != nil {
		return businessErr
	}

	var envelope errorBody
	if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error != "" {
		return &APIError{Endpoint: path, StatusCode: http.StatusOK, Message: envelope.Error}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{Endpoint: path, StatusCode: http.StatusOK, Message: "failed to decode response", Err: err}
	}
	return nil
}

func (c *APIClient) do(ctx context.Context, path string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("endpoint", path), zap.Error(err))
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	c.logger.Debug("request done",
		zap.String("endpoint", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	return respBody, resp.StatusCode, nil
}

// extractMessage pulls a readable message out of an error response body
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return "empty response"
	}

	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.text() != "" {
		return envelope.text()
	}

	return strings.TrimSpace(string(body))
}
