// Package billing talks to the external subscription provider. Plans gate how
// many pages a tenant may publish at once; the provider is the source of
// truth and we cache its answer locally.
package billing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Plan is the provider's view of a tenant's subscription.
type Plan struct {
	CustomerID   string `json:"customerId"`
	Tier         string `json:"tier"`
	PublishLimit int    `json:"publishLimit"`
	Active       bool   `json:"active"`
}

// Client is a thin HTTP client for the billing provider.
type Client struct {
	APIBase    string
	APIKey     string
	APISecret  string
	ReturnURL  string
	HTTPClient *http.Client

	// RetryDelay spaces out SyncPlan polls. Tests shrink it.
	RetryDelay time.Duration
}

func NewClient(apiBase, apiKey, apiSecret, returnURL string) *Client {
	return &Client{
		APIBase:    apiBase,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		ReturnURL:  returnURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		RetryDelay: 2 * time.Second,
	}
}

type checkoutRequest struct {
	CustomerID string         `json:"customerId"`
	Tier       string         `json:"tier"`
	ReturnURL  string         `json:"returnUrl"`
	Metadata   map[string]any `json:"metadata"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

// StartCheckout creates a checkout session for a tier upgrade and returns the
// URL to redirect the editor to.
func (c *Client) StartCheckout(ctx context.Context, customerID, tier, tenantID string) (string, error) {
	body := checkoutRequest{
		CustomerID: customerID,
		Tier:       tier,
		ReturnURL:  c.ReturnURL,
		Metadata:   map[string]any{"tenant_id": tenantID},
	}

	var res checkoutResponse
	if err := c.post(ctx, "/v1/checkout", body, &res); err != nil {
		return "", fmt.Errorf("start checkout: %w", err)
	}
	return res.CheckoutURL, nil
}

type portalResponse struct {
	PortalURL string `json:"portalUrl"`
}

// PortalURL returns the customer self-service portal URL.
func (c *Client) PortalURL(ctx context.Context, customerID string) (string, error) {
	var res portalResponse
	if err := c.post(ctx, "/v1/portal", map[string]string{
		"customerId": customerID,
		"returnUrl":  c.ReturnURL,
	}, &res); err != nil {
		return "", fmt.Errorf("portal url: %w", err)
	}
	return res.PortalURL, nil
}

// GetPlan fetches the current plan for a customer.
func (c *Client) GetPlan(ctx context.Context, customerID string) (Plan, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.APIBase+"/v1/customers/"+customerID+"/plan", nil)
	if err != nil {
		return Plan{}, err
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Plan{}, fmt.Errorf("get plan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Plan{}, fmt.Errorf("get plan: provider returned %d", resp.StatusCode)
	}

	var plan Plan
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		return Plan{}, fmt.Errorf("get plan: decode: %w", err)
	}
	return plan, nil
}

// SyncPlan polls until the provider reports an active plan, for use right
// after a checkout redirect when the webhook may not have landed yet. It
// gives up after five attempts and returns the last state seen.
func (c *Client) SyncPlan(ctx context.Context, customerID string) (Plan, error) {
	var last Plan
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(c.RetryDelay):
			}
		}

		plan, err := c.GetPlan(ctx, customerID)
		if err != nil {
			lastErr = err
			continue
		}
		last, lastErr = plan, nil
		if plan.Active {
			return plan, nil
		}
	}
	if lastErr != nil {
		return last, fmt.Errorf("sync plan: %w", lastErr)
	}
	return last, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBase+path, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Idempotence-Key", uuid.NewString())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("provider returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	auth := base64.StdEncoding.EncodeToString([]byte(c.APIKey + ":" + c.APISecret))
	req.Header.Set("Authorization", "Basic "+auth)
}
