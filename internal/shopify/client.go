package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/config"
	apperrors "github.com/kamranshah125/turum/pkg/errors"
	"github.com/kamranshah125/turum/pkg/retry"
)

const serviceName = "shopify"

type Client struct {
	baseURL     string
	accessToken string
	apiVersion  string
	httpClient  *http.Client
	policy      retry.Policy
	logger      *zap.Logger
}

// NewClient creates a new Shopify Admin API client (GraphQL and REST)
func NewClient(cfg config.ShopifyConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Normalize shop domain - remove scheme and trailing slashes. Plain http is kept for local stubs.
	scheme := "https"
	shopDomain := strings.TrimSpace(cfg.ShopDomain)
	if strings.HasPrefix(shopDomain, "http://") {
		scheme = "http"
	}
	shopDomain = strings.TrimPrefix(shopDomain, "https://")
	shopDomain = strings.TrimPrefix(shopDomain, "http://")
	shopDomain = strings.TrimSuffix(shopDomain, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:     fmt.Sprintf("%s://%s/admin/api/%s", scheme, shopDomain, cfg.APIVersion),
		accessToken: cfg.AccessToken,
		apiVersion:  cfg.APIVersion,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		policy: retry.Policy{Attempts: cfg.Retries, Wait: cfg.RetryWait},
		logger: logger,
	}
}

// GraphQLRequest represents a GraphQL request
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLResponse represents a GraphQL response
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError represents a GraphQL error
type GraphQLError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

// UserError is the per-input error list returned by Admin API mutations
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UserErrorsError is returned when a mutation is accepted but its input is rejected
type UserErrorsError struct {
	Mutation string
	Errors   []UserError
}

func (e *UserErrorsError) Error() string {
	return fmt.Sprintf("%s userErrors: %s", e.Mutation, FormatUserErrors(e.Errors))
}

// FormatUserErrors joins user errors as "field.path: message"
func FormatUserErrors(errs []UserError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		field := strings.Join(e.Field, ".")
		if field != "" {
			parts = append(parts, field+": "+e.Message)
		} else {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// Execute executes a GraphQL query/mutation
func (c *Client) Execute(ctx context.Context, query string, variables map[string]interface{}) (*GraphQLResponse, error) {
	jsonData, err := json.Marshal(GraphQLRequest{
		Query:     query,
		Variables: variables,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.send(ctx, http.MethodPost, "/graphql.json", jsonData)
	if err != nil {
		return nil, err
	}

	var graphQLResp GraphQLResponse
	if err := json.Unmarshal(body, &graphQLResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}

	if len(graphQLResp.Errors) > 0 {
		errorMessages := make([]string, len(graphQLResp.Errors))
		for i, err := range graphQLResp.Errors {
			errorMessages[i] = err.Message
		}
		return nil, fmt.Errorf("graphQL errors: %s", strings.Join(errorMessages, "; "))
	}

	return &graphQLResp, nil
}

// Do calls a REST endpoint relative to /admin/api/{version}, e.g. "/orders/1/cancel.json".
// in is sent as JSON when non-nil; out receives the decoded response when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	body, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}

	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	url := c.baseURL + path

	var respBody []byte
	err := retry.Do(ctx, c.policy, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Shopify-Access-Token", c.accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			remoteErr := &apperrors.ErrRemote{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body)}
			if remoteErr.Transient() {
				c.logger.Warn("Shopify request failed, retrying",
					zap.String("method", method),
					zap.String("path", path),
					zap.Int("status", resp.StatusCode),
				)
				return remoteErr
			}
			return retry.Permanent(remoteErr)
		}

		respBody = body
		return nil
	})
	return respBody, err
}
