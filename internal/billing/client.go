package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
)

// ErrConflict is returned when the billing API rejects an action because the
// caller's view of the record is stale (e.g. the plan is already current).
var ErrConflict = errors.New("billing: conflict with current subscription state")

// APIError carries a non-2xx billing API response.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("billing %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth surfacing as retryable by the
// user. Status 0 means the request never got a response.
func (e *APIError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// SetupIntentResult is the minted authorization secret for a new payment
// method.
type SetupIntentResult struct {
	ClientSecret string `json:"client_secret"`
	CustomerID   string `json:"customer_id"`
}

// SubscribeResult is the outcome of a subscribe attempt. ClientSecret is set
// only when the provider demands step-up confirmation before activation.
type SubscribeResult struct {
	SubscriptionID string                   `json:"subscription_id"`
	Status         model.SubscriptionStatus `json:"status"`
	ClientSecret   string                   `json:"client_secret,omitempty"`
}

// CancelResult reports how a cancel request was applied.
type CancelResult struct {
	Success             bool `json:"success"`
	CanceledImmediately bool `json:"canceled_immediately"`
}

// Client is the billing system of record. All subscription, payment-method and
// invoice state lives behind it; this service only caches what it reads back.
type Client interface {
	GetSubscription(ctx context.Context) (*model.Subscription, error)
	ListPlans(ctx context.Context) ([]model.Plan, error)
	ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error)
	ListInvoices(ctx context.Context, limit int) ([]model.Invoice, error)
	CreateSetupIntent(ctx context.Context) (*SetupIntentResult, error)
	Subscribe(ctx context.Context, planID, paymentMethodID string) (*SubscribeResult, error)
	ChangePlan(ctx context.Context, planID string) error
	Cancel(ctx context.Context, immediately bool) (*CancelResult, error)
	Resume(ctx context.Context) error
	DeletePaymentMethod(ctx context.Context, id string) error
	SetDefaultPaymentMethod(ctx context.Context, id string) error
}

// HTTPClient talks JSON to the billing API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
}

// NewHTTPClient creates a billing API client with a scoped logger.
func NewHTTPClient(baseURL, token string, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("client", "BillingAPI").Logger(),
	}
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("Billing API request failed")
		return &APIError{Op: op, StatusCode: 0, Message: err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		payload, _ := io.ReadAll(res.Body)
		c.logger.Warn().Str("op", op).Bytes("body", payload).Msg("Billing API reported conflict")
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		payload, _ := io.ReadAll(res.Body)
		c.logger.Error().Str("op", op).Int("status", res.StatusCode).Bytes("body", payload).Msg("Billing API returned error")
		return &APIError{Op: op, StatusCode: res.StatusCode, Message: string(payload)}
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", op, err)
		}
	}
	return nil
}

// GetSubscription fetches the authoritative subscription record.
func (c *HTTPClient) GetSubscription(ctx context.Context) (*model.Subscription, error) {
	var out struct {
		Subscription model.Subscription `json:"subscription"`
	}
	if err := c.do(ctx, "get_subscription", http.MethodGet, "/subscription", nil, &out); err != nil {
		return nil, err
	}
	return &out.Subscription, nil
}

// ListPlans returns the plan catalog.
func (c *HTTPClient) ListPlans(ctx context.Context) ([]model.Plan, error) {
	var out struct {
		Plans []model.Plan `json:"plans"`
	}
	if err := c.do(ctx, "list_plans", http.MethodGet, "/plans", nil, &out); err != nil {
		return nil, err
	}
	return out.Plans, nil
}

// ListPaymentMethods returns the user's confirmed payment methods.
func (c *HTTPClient) ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	var out struct {
		PaymentMethods []model.PaymentMethod `json:"payment_methods"`
	}
	if err := c.do(ctx, "list_payment_methods", http.MethodGet, "/payment-methods", nil, &out); err != nil {
		return nil, err
	}
	return out.PaymentMethods, nil
}

// ListInvoices returns up to limit invoices, most recent first.
func (c *HTTPClient) ListInvoices(ctx context.Context, limit int) ([]model.Invoice, error) {
	var out struct {
		Invoices []model.Invoice `json:"invoices"`
	}
	path := "/invoices?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, "list_invoices", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Invoices, nil
}

// CreateSetupIntent mints an authorization secret scoped to adding a new
// payment method.
func (c *HTTPClient) CreateSetupIntent(ctx context.Context) (*SetupIntentResult, error) {
	var out SetupIntentResult
	if err := c.do(ctx, "create_setup_intent", http.MethodPost, "/setup-intent", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscribe starts a subscription on planID charged to the given method.
func (c *HTTPClient) Subscribe(ctx context.Context, planID, paymentMethodID string) (*SubscribeResult, error) {
	body := map[string]string{"plan_id": planID, "payment_method_id": paymentMethodID}
	var out SubscribeResult
	if err := c.do(ctx, "subscribe", http.MethodPost, "/subscribe", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePlan switches an existing paid subscription to planID.
func (c *HTTPClient) ChangePlan(ctx context.Context, planID string) error {
	body := map[string]string{"plan_id": planID}
	return c.do(ctx, "change_plan", http.MethodPost, "/change-plan", body, nil)
}

// Cancel ends the subscription now, or at period end when immediately is false.
func (c *HTTPClient) Cancel(ctx context.Context, immediately bool) (*CancelResult, error) {
	body := map[string]bool{"immediately": immediately}
	var out CancelResult
	if err := c.do(ctx, "cancel", http.MethodPost, "/cancel", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resume clears a pending cancel-at-period-end.
func (c *HTTPClient) Resume(ctx context.Context) error {
	return c.do(ctx, "resume", http.MethodPost, "/resume", nil, nil)
}

// DeletePaymentMethod removes a stored payment method. The server enforces the
// ordering constraint around removing the default method; a violation comes
// back as ErrConflict.
func (c *HTTPClient) DeletePaymentMethod(ctx context.Context, id string) error {
	return c.do(ctx, "delete_payment_method", http.MethodDelete, "/payment-methods/"+id, nil, nil)
}

// SetDefaultPaymentMethod marks the given method as default.
func (c *HTTPClient) SetDefaultPaymentMethod(ctx context.Context, id string) error {
	return c.do(ctx, "set_default_payment_method", http.MethodPost, "/payment-methods/"+id+"/default", nil, nil)
}
