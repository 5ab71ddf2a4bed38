package services

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

	"github.com/shopspring/decimal"

	"github.com/doarsal/readymarket-backend-sub002/internal/config"
)

const partnerTokenKey = "partner:access_token"

// PartnerAPIError carries the structured detail of a provisioning API
// failure: everything an operator needs to act on a declined call.
type PartnerAPIError struct {
	HTTPStatus    int    `json:"http_status"`
	Code          string `json:"code"`
	Description   string `json:"description"`
	CorrelationID string `json:"correlation_id"`
	RawBody       string `json:"raw_body"`
}

func (e *PartnerAPIError) Error() string {
	return fmt.Sprintf("partner api error %d (%s): %s", e.HTTPStatus, e.Code, e.Description)
}

// TokenCache is the slice of RedisCache the partner client needs. Concurrent
// refreshes are tolerated; last write wins.
type TokenCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// PartnerService is the HTTP client for the licensing provisioning API.
type PartnerService struct {
	cfg    config.PartnerConfig
	cache  TokenCache
	client *http.Client
}

func NewPartnerService(cfg config.PartnerConfig, cache TokenCache) *PartnerService {
	return &PartnerService{
		cfg:   cfg,
		cache: cache,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PartnerLineItem is the provisioning API's line-item shape.
type PartnerLineItem struct {
	ID            int    `json:"id"`
	CatalogItemID string `json:"catalogItemId"`
	Quantity      int    `json:"quantity"`
	BillingCycle  string `json:"billingCycle"`
	TermDuration  string `json:"termDuration,omitempty"`
}

// PartnerCart is the remote cart created ahead of checkout.
type PartnerCart struct {
	ID        string            `json:"id"`
	LineItems []PartnerLineItem `json:"lineItems"`
}

// CheckoutLineItem is one provisioned line returned by checkout.
type CheckoutLineItem struct {
	CatalogItemID  string `json:"catalogItemId"`
	SubscriptionID string `json:"subscriptionId"`
	Quantity       int    `json:"quantity"`
	TermDuration   string `json:"termDuration"`
}

// PartnerCheckoutResult is the provisioning checkout response.
type PartnerCheckoutResult struct {
	Orders []struct {
		ID        string             `json:"id"`
		LineItems []CheckoutLineItem `json:"lineItems"`
	} `json:"orders"`
}

// LineItems flattens the per-order line items of a checkout result.
func (r *PartnerCheckoutResult) LineItems() []CheckoutLineItem {
	var items []CheckoutLineItem
	for _, o := range r.Orders {
		items = append(items, o.LineItems...)
	}
	return items
}

// getToken returns a bearer token, reusing the cached one when present.
// Reuse is an optimization, not a correctness requirement: a missing or
// stale cache entry just costs one extra auth round trip.
func (s *PartnerService) getToken(ctx context.Context) (string, error) {
	if s.cache != nil {
		var token string
		if err := s.cache.Get(ctx, partnerTokenKey, &token); err == nil && token != "" {
			return token, nil
		}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_secret", s.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", s.apiError(resp, body)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token")
	}

	if s.cache != nil && parsed.ExpiresIn > 60 {
		ttl := time.Duration(parsed.ExpiresIn-60) * time.Second
		_ = s.cache.Set(ctx, partnerTokenKey, parsed.AccessToken, ttl)
	}
	return parsed.AccessToken, nil
}

// CreateCart creates a remote cart with the given line items.
func (s *PartnerService) CreateCart(ctx context.Context, lineItems []PartnerLineItem) (*PartnerCart, error) {
	var cart PartnerCart
	path := fmt.Sprintf("/customers/%s/carts", s.cfg.CustomerID)
	payload := map[string]interface{}{"lineItems": lineItems}
	if err := s.do(ctx, http.MethodPost, path, payload, &cart); err != nil {
		return nil, err
	}
	if cart.ID == "" {
		return nil, fmt.Errorf("partner cart response carries no id")
	}
	return &cart, nil
}

// CheckoutCart checks out a previously created remote cart and returns the
// provisioned subscription identifiers.
func (s *PartnerService) CheckoutCart(ctx context.Context, cartID string) (*PartnerCheckoutResult, error) {
	var result PartnerCheckoutResult
	path := fmt.Sprintf("/customers/%s/carts/%s/checkout", s.cfg.CustomerID, cartID)
	if err := s.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetSpendingBudget applies a usage budget to the customer.
func (s *PartnerService) SetSpendingBudget(ctx context.Context, amount float64) error {
	path := fmt.Sprintf("/customers/%s/usagebudget", s.cfg.CustomerID)
	payload := map[string]interface{}{
		"Amount": decimal.NewFromFloat(amount).StringFixed(2),
		"Attributes": map[string]string{
			"ObjectType": "SpendingBudget",
		},
	}
	return s.do(ctx, http.MethodPatch, path, payload, nil)
}

func (s *PartnerService) do(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := s.getToken(ctx)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return s.apiError(resp, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// apiError builds a PartnerAPIError from a non-2xx response, keeping the raw
// body for the operator even when it does not parse.
func (s *PartnerService) apiError(resp *http.Response, body []byte) *PartnerAPIError {
	apiErr := &PartnerAPIError{
		HTTPStatus:    resp.StatusCode,
		CorrelationID: resp.Header.Get("MS-CorrelationId"),
		RawBody:       string(body),
	}
	if apiErr.CorrelationID == "" {
		apiErr.CorrelationID = resp.Header.Get("MS-RequestId")
	}

	var parsed struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Error       struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.Code
		apiErr.Description = parsed.Description
		if apiErr.Code == "" {
			apiErr.Code = parsed.Error.Code
		}
		if apiErr.Description == "" {
			apiErr.Description = parsed.Error.Message
		}
	}
	if apiErr.Description == "" {
		apiErr.Description = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
