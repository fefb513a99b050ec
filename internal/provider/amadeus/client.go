package amadeus

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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrNotFound = errors.New("amadeus: not found")

// ClientError is a 4xx answer. Message is safe to show to end users.
type ClientError struct {
	Status  int
	Code    int
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("amadeus: status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	now       func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg config.AmadeusConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		http: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// SearchOffersGet runs a flight offers search from query parameters and returns the offers list.
func (c *Client) SearchOffersGet(ctx context.Context, params url.Values) (json.RawMessage, error) {
	var resp envelope
	if err := c.do(ctx, http.MethodGet, "/v2/shopping/flight-offers", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("search offers: %w", err)
	}
	return resp.Data, nil
}

// SearchOffers runs a flight offers search from a full request body and returns the raw response.
func (c *Client) SearchOffers(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/v2/shopping/flight-offers", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("search offers: %w", err)
	}
	return resp, nil
}

func (c *Client) ConfirmPrice(ctx context.Context, offer json.RawMessage) (json.RawMessage, error) {
	body := map[string]any{
		"data": map[string]any{
			"type":         "flight-offers-pricing",
			"flightOffers": []json.RawMessage{offer},
		},
	}
	var resp json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/v1/shopping/flight-offers/pricing", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("confirm price: %w", err)
	}
	return resp, nil
}

// CreateOrder books offer for travelers and returns the created order document.
func (c *Client) CreateOrder(ctx context.Context, offer json.RawMessage, travelers []json.RawMessage) (json.RawMessage, error) {
	body := map[string]any{
		"data": map[string]any{
			"type":         "flight-order",
			"flightOffers": []json.RawMessage{offer},
			"travelers":    travelers,
		},
	}
	var resp envelope
	if err := c.do(ctx, http.MethodPost, "/v1/booking/flight-orders", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return resp.Data, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	var resp envelope
	if err := c.do(ctx, http.MethodGet, "/v1/booking/flight-orders/"+url.PathEscape(orderID), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return resp.Data, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/booking/flight-orders/"+url.PathEscape(orderID), nil, nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// SeatMaps returns the seat maps of every flight segment of an existing order.
func (c *Client) SeatMaps(ctx context.Context, orderID string) (json.RawMessage, error) {
	var resp envelope
	params := url.Values{"flightOrderId": {orderID}}
	if err := c.do(ctx, http.MethodGet, "/v1/shopping/seatmaps", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("seat maps for order %s: %w", orderID, err)
	}
	return resp.Data, nil
}

func (c *Client) SeatMapsForOffer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error) {
	body := map[string]any{"data": []json.RawMessage{offer}}
	var resp envelope
	if err := c.do(ctx, http.MethodPost, "/v1/shopping/seatmaps", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("seat maps for offer: %w", err)
	}
	return resp.Data, nil
}

// Locations searches airports and cities. subType is AIRPORT, CITY or anything else for both.
func (c *Client) Locations(ctx context.Context, keyword, subType string) (json.RawMessage, error) {
	switch strings.ToUpper(subType) {
	case "AIRPORT", "CITY":
		subType = strings.ToUpper(subType)
	default:
		subType = "AIRPORT,CITY"
	}

	var resp envelope
	params := url.Values{"keyword": {keyword}, "subType": {subType}}
	if err := c.do(ctx, http.MethodGet, "/v1/reference-data/locations", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}
	return resp.Data, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.apiKey},
		"client_secret": {c.apiSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp tokenResponse
	if err := c.roundTrip(req, &resp); err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("request token: empty token")
	}

	// refresh a little before the provider does
	lifetime := time.Duration(resp.ExpiresIn)*time.Second - 30*time.Second
	c.token, c.tokenExpiry = resp.AccessToken, c.now().Add(lifetime)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

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
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.amadeus+json, application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.amadeus+json")
	}
	return c.roundTrip(req, out)
}

func (c *Client) roundTrip(req *http.Request, out any) error {
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
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("amadeus: unexpected status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return parseClientError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
