package turum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kamranshah125/turum/internal/config"
	"github.com/kamranshah125/turum/internal/domain"
	apperrors "github.com/kamranshah125/turum/pkg/errors"
	"github.com/kamranshah125/turum/pkg/retry"
)

const serviceName = "turum"

// Client talks to the Turum B2B supplier API
type Client struct {
	baseURL    string
	username   string
	password   string
	tokenTTL   time.Duration
	httpClient *http.Client
	tokens     TokenCache
	policy     retry.Policy
	logins     singleflight.Group
	logger     *zap.Logger
}

// NewClient creates a supplier client. A nil cache falls back to process memory.
func NewClient(cfg config.TurumConfig, tokens TokenCache, logger *zap.Logger) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 23 * time.Hour
	}
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		tokenTTL: ttl,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
		policy: retry.Policy{Attempts: cfg.Retries, Wait: cfg.RetryWait},
		logger: logger,
	}
}

// Token returns the cached bearer token, logging in when there is none
func (c *Client) Token(ctx context.Context) (string, error) {
	token, ok, err := c.tokens.Get(ctx)
	if err != nil {
		c.logger.Warn("Failed to read supplier token cache", zap.Error(err))
	} else if ok {
		return token, nil
	}
	return c.Login(ctx)
}

// Login fetches a fresh token and caches it. Concurrent callers share one login request.
func (c *Client) Login(ctx context.Context) (string, error) {
	v, err, _ := c.logins.Do("login", func() (interface{}, error) {
		return c.login(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	payload, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal login request: %w", err)
	}

	body, err := c.send(ctx, http.MethodPost, "/account/login", "", payload, true)
	if err != nil {
		c.logger.Error("Turum login failed", zap.Error(err))
		if status := apperrors.RemoteStatus(err); status == http.StatusUnauthorized || status == http.StatusForbidden {
			return "", &apperrors.ErrUnauthorized{Message: fmt.Sprintf("turum login rejected the configured credentials (status %d)", status)}
		}
		return "", fmt.Errorf("turum login failed: %w", err)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal login response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("turum login failed: no access_token in response")
	}

	if err := c.tokens.Set(ctx, resp.AccessToken, c.tokenTTL); err != nil {
		c.logger.Warn("Failed to cache supplier token", zap.Error(err))
	}
	return resp.AccessToken, nil
}

// CreateReservation reserves the given variants and returns the reservation id.
// The request is not repeated after a timeout or 5xx: the supplier may already have reserved.
func (c *Client) CreateReservation(ctx context.Context, items []ReservationItem) (string, error) {
	c.logger.Info("Creating Turum reservation", zap.Int("variants", len(items)))

	var resp createReservationResponse
	if err := c.call(ctx, http.MethodPost, "/reservations", createReservationRequest{Variants: items}, &resp, false); err != nil {
		c.logger.Error("Turum reservation failed", zap.Error(err))
		return "", fmt.Errorf("turum reservation failed: %w", err)
	}
	if resp.ReservationID == "" {
		return "", fmt.Errorf("no reservation ID returned from Turum")
	}
	return resp.ReservationID, nil
}

// GetReservation fetches the current status of a reservation
func (c *Client) GetReservation(ctx context.Context, reservationID string) (*Reservation, error) {
	var res Reservation
	if err := c.do(ctx, http.MethodGet, "/reservation/"+url.PathEscape(reservationID), nil, &res); err != nil {
		return nil, fmt.Errorf("failed to get reservation %s: %w", reservationID, err)
	}
	if res.ID == "" {
		res.ID = reservationID
	}
	return &res, nil
}

// GetProduct returns the supplier product for sku, or nil when the supplier does not know it
func (c *Client) GetProduct(ctx context.Context, sku string) (*domain.SupplierProduct, error) {
	var product domain.SupplierProduct
	err := c.do(ctx, http.MethodGet, "/product/"+url.PathEscape(sku), nil, &product)
	if apperrors.RemoteStatus(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", sku, err)
	}
	return &product, nil
}

// GetProductsFullList returns the whole supplier catalog.
// The endpoint answers with a bare array, {"data": [...]} or {"products": [...]}; all three are accepted.
func (c *Client) GetProductsFullList(ctx context.Context) ([]domain.SupplierProduct, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/products_full_list_new", nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to get product list: %w", err)
	}
	return decodeProductList(raw)
}

func decodeProductList(body []byte) ([]domain.SupplierProduct, error) {
	list, ok := arrayPayload(body)
	if !ok {
		var wrapped struct {
			Data     json.RawMessage `json:"data"`
			Products json.RawMessage `json:"products"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product list: %w", err)
		}
		if list, ok = arrayPayload(wrapped.Data); !ok {
			if list, ok = arrayPayload(wrapped.Products); !ok {
				return nil, fmt.Errorf("unexpected product list shape")
			}
		}
	}

	var products []domain.SupplierProduct
	if err := json.Unmarshal(list, &products); err != nil {
		return nil, fmt.Errorf("failed to unmarshal products: %w", err)
	}
	return products, nil
}

func arrayPayload(raw []byte) ([]byte, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	return trimmed, true
}

// GetAccountAddress returns the account's current billing and shipping addresses
func (c *Client) GetAccountAddress(ctx context.Context) (*AccountAddress, error) {
	var addr AccountAddress
	if err := c.do(ctx, http.MethodGet, "/account/address", nil, &addr); err != nil {
		return nil, fmt.Errorf("failed to get account address: %w", err)
	}
	return &addr, nil
}

// UpdateAddress replaces the account addresses used for the next reservation
func (c *Client) UpdateAddress(ctx context.Context, addr AccountAddress) error {
	if err := c.do(ctx, http.MethodPost, "/account/address", addr, nil); err != nil {
		return fmt.Errorf("failed to update account address: %w", err)
	}
	return nil
}

// do sends an authorized request that is safe to repeat
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	return c.call(ctx, method, path, in, out, true)
}

// call sends an authorized request. A 401 invalidates the cached token and the call is repeated once,
// also when the request is not repeatable: a rejected token means nothing was processed.
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}, repeatable bool) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	body, err := c.send(ctx, method, path, token, payload, repeatable)
	if apperrors.RemoteStatus(err) == http.StatusUnauthorized {
		c.logger.Warn("Turum token rejected, logging in again", zap.String("path", path))
		if ierr := c.tokens.Invalidate(ctx); ierr != nil {
			c.logger.Warn("Failed to invalidate supplier token", zap.Error(ierr))
		}
		if token, err = c.Login(ctx); err != nil {
			return err
		}
		body, err = c.send(ctx, method, path, token, payload, repeatable)
		if apperrors.RemoteStatus(err) == http.StatusUnauthorized {
			return &apperrors.ErrUnauthorized{Message: "turum rejected a fresh token for " + path}
		}
	}
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

// send performs one logical request with the retry policy.
// 429 is always retried. Network errors and 5xx are retried only for a repeatable request;
// any other non-2xx status is returned at once.
func (c *Client) send(ctx context.Context, method, path, token string, payload []byte, repeatable bool) ([]byte, error) {
	var respBody []byte
	err := retry.Do(ctx, c.policy, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			err = fmt.Errorf("failed to execute request: %w", err)
			if !repeatable {
				return retry.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("failed to read response: %w", err)
			if !repeatable {
				return retry.Permanent(err)
			}
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			remoteErr := &apperrors.ErrRemote{Service: serviceName, StatusCode: resp.StatusCode, Body: string(body)}
			retryable := remoteErr.Transient() && (repeatable || resp.StatusCode == http.StatusTooManyRequests)
			if retryable {
				c.logger.Warn("Turum request failed, retrying",
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
