package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/aerobound/config"
	"github.com/Domenick1991/aerobound/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrValidation marks failures caused by the request itself, such as an unknown tracking id.
	ErrValidation = errors.New("pesapal: validation failed")
	// ErrPendingPayment is returned when the provider refuses a status lookup because the payment is still pending.
	ErrPendingPayment = errors.New("pesapal: pending payment")
)

const tokenLeeway = 30 * time.Second

type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	ipnID          string
	http           *http.Client
	now            func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg config.PesapalConfig) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		ipnID:          cfg.IPNID,
		http: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

// IPNID is the registered notification id attached to submitted orders.
func (c *Client) IPNID() string {
	return c.ipnID
}

type apiError struct {
	ErrorType string `json:"error_type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (e *apiError) err() error {
	msg := fmt.Sprintf("%s: %s (%s)", e.ErrorType, e.Message, e.Code)
	switch {
	case strings.Contains(e.Message, "Pending Payment"):
		return fmt.Errorf("%w: %s", ErrPendingPayment, msg)
	case e.ErrorType == "validation_error" || strings.HasPrefix(e.Code, "invalid"):
		return fmt.Errorf("%w: %s", ErrValidation, msg)
	default:
		return fmt.Errorf("pesapal: %s", msg)
	}
}

type tokenResponse struct {
	Token      string    `json:"token"`
	ExpiryDate string    `json:"expiryDate"`
	Error      *apiError `json:"error"`
	Status     string    `json:"status"`
}

type submitOrderRequest struct {
	ID             string                `json:"id"`
	Currency       string                `json:"currency"`
	Amount         float64               `json:"amount"`
	Description    string                `json:"description"`
	CallbackURL    string                `json:"callback_url"`
	NotificationID string                `json:"notification_id"`
	BillingAddress domain.BillingAddress `json:"billing_address"`
}

type submitOrderResponse struct {
	OrderTrackingID   string    `json:"order_tracking_id"`
	MerchantReference string    `json:"merchant_reference"`
	RedirectURL       string    `json:"redirect_url"`
	Error             *apiError `json:"error"`
	Status            string    `json:"status"`
}

type transactionStatusResponse struct {
	domain.TransactionStatus
	Status string `json:"status"`
}

type registerIPNRequest struct {
	URL                 string `json:"url"`
	IPNNotificationType string `json:"ipn_notification_type"`
}

type registerIPNResponse struct {
	IPNID  string    `json:"ipn_id"`
	Error  *apiError `json:"error"`
	Status string    `json:"status"`
}

func (c *Client) SubmitOrder(ctx context.Context, order domain.PaymentOrder) (domain.PaymentOrderResult, error) {
	req := submitOrderRequest{
		ID:             order.MerchantReference,
		Currency:       order.Currency,
		Amount:         order.Amount,
		Description:    order.Description,
		CallbackURL:    order.CallbackURL,
		NotificationID: order.NotificationID,
		BillingAddress: order.BillingAddress,
	}

	var resp submitOrderResponse
	if err := c.do(ctx, http.MethodPost, "/api/Transactions/SubmitOrderRequest", nil, req, &resp); err != nil {
		return domain.PaymentOrderResult{}, fmt.Errorf("submit order: %w", err)
	}
	if resp.Error != nil {
		return domain.PaymentOrderResult{}, fmt.Errorf("submit order: %w", resp.Error.err())
	}

	status := resp.Status
	if status == "" {
		status = "200"
	}
	return domain.PaymentOrderResult{
		OrderTrackingID:   resp.OrderTrackingID,
		MerchantReference: resp.MerchantReference,
		RedirectURL:       resp.RedirectURL,
		Status:            status,
	}, nil
}

// TransactionStatus looks up the payment attempt behind an order tracking id.
// A "payment details not found" answer is not an error: it comes back as status code 0
// with the provider error attached.
func (c *Client) TransactionStatus(ctx context.Context, trackingID string) (domain.TransactionStatus, error) {
	if strings.TrimSpace(trackingID) == "" {
		return domain.TransactionStatus{}, fmt.Errorf("%w: empty order tracking id", ErrValidation)
	}

	var resp transactionStatusResponse
	query := url.Values{"orderTrackingId": {trackingID}}
	if err := c.do(ctx, http.MethodGet, "/api/Transactions/GetTransactionStatus", query, nil, &resp); err != nil {
		return domain.TransactionStatus{}, fmt.Errorf("transaction status: %w", err)
	}

	status := resp.TransactionStatus
	if status.Error != nil && status.Error.Code != "" && status.Error.Code != domain.PaymentDetailsNotFound {
		e := apiError(*status.Error)
		return domain.TransactionStatus{}, fmt.Errorf("transaction status: %w", e.err())
	}
	if status.Error != nil && status.Error.Code == "" {
		status.Error = nil
	}
	return status, nil
}

// RegisterIPN registers url as a GET notification endpoint and returns its id.
func (c *Client) RegisterIPN(ctx context.Context, ipnURL string) (string, error) {
	var resp registerIPNResponse
	req := registerIPNRequest{URL: ipnURL, IPNNotificationType: "GET"}
	if err := c.do(ctx, http.MethodPost, "/api/URLSetup/RegisterIPN", nil, req, &resp); err != nil {
		return "", fmt.Errorf("register ipn: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("register ipn: %w", resp.Error.err())
	}
	return resp.IPNID, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenLeeway).Before(c.tokenExpiry) {
		return c.token, nil
	}

	body := map[string]string{"consumer_key": c.consumerKey, "consumer_secret": c.consumerSecret}
	var resp tokenResponse
	if err := c.send(ctx, http.MethodPost, "/api/Auth/RequestToken", nil, body, "", &resp); err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("request token: %w", resp.Error.err())
	}
	if resp.Token == "" {
		return "", errors.New("request token: empty token")
	}

	expiry, err := time.Parse(time.RFC3339Nano, resp.ExpiryDate)
	if err != nil {
		expiry = c.now().Add(5 * time.Minute)
	}
	c.token, c.tokenExpiry = resp.Token, expiry
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, query, body, token, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("pesapal: unexpected status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d: %s", ErrValidation, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
