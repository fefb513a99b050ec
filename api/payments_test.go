package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/aerobound/internal/auth"
	"github.com/Domenick1991/aerobound/internal/domain"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/Domenick1991/aerobound/internal/service/payment"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPaymentUseCase is a mock implementation of payment.PaymentUseCase
type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) InitiatePayment(ctx context.Context, input payment.InitiatePaymentInput) (domain.PaymentOrderResult, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(domain.PaymentOrderResult), args.Error(1)
}

func (m *MockPaymentUseCase) Callback(ctx context.Context, trackingID, merchantReference string) payment.CallbackResult {
	args := m.Called(ctx, trackingID, merchantReference)
	return args.Get(0).(payment.CallbackResult)
}

func (m *MockPaymentUseCase) Notify(ctx context.Context, trackingID, merchantReference string) payment.IPNAck {
	args := m.Called(ctx, trackingID, merchantReference)
	return args.Get(0).(payment.IPNAck)
}

func (m *MockPaymentUseCase) Poll(ctx context.Context, trackingID string) (payment.TransactionStatusView, error) {
	args := m.Called(ctx, trackingID)
	return args.Get(0).(payment.TransactionStatusView), args.Error(1)
}

func (m *MockPaymentUseCase) SweepPending(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

func TestPaymentHandler_initiate(t *testing.T) {
	userID := uuid.New()
	bookingID := uuid.NewString()

	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "not found", err: repository.ErrBookingNotFound, wantStatus: http.StatusNotFound, wantError: "Booking not found"},
		{name: "forbidden", err: payment.ErrForbidden, wantStatus: http.StatusForbidden, wantError: "You don't have permission to pay for this booking"},
		{name: "already paid", err: payment.ErrAlreadyPaid, wantStatus: http.StatusBadRequest, wantError: "This booking has already been paid"},
		{name: "not configured", err: payment.ErrNotConfigured, wantStatus: http.StatusInternalServerError, wantError: "Payment system not configured. Please contact support."},
		{
			name:       "invalid",
			err:        fmt.Errorf("%w: only USD currency is supported", payment.ErrInvalidRequest),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid payment request: only USD currency is supported",
		},
		{name: "provider down", err: errors.New("timeout"), wantStatus: http.StatusInternalServerError, wantError: "Failed to initiate payment: timeout"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := &MockPaymentUseCase{}
			handler := NewPaymentHandler(mockService)

			gin.SetMode(gin.TestMode)
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			body := fmt.Sprintf(`{"booking_id":%q,"amount":250,"currency":"USD","billing_address":{"email_address":"jane@example.com"}}`, bookingID)
			c.Request = httptest.NewRequest("POST", "/payments/pesapal/initiate", strings.NewReader(body))
			c.Request.Header.Set("Content-Type", "application/json")
			signIn(t, c, userID)

			mockService.On("InitiatePayment", c.Request.Context(), mock.MatchedBy(func(in payment.InitiatePaymentInput) bool {
				return in.BookingID == bookingID && in.UserID == userID && in.Amount == 250
			})).Return(domain.PaymentOrderResult{}, tc.err)

			handler.initiate(c)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tc.wantError), w.Body.String())
		})
	}
}

func TestPaymentHandler_initiate_Success(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	handler := NewPaymentHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(map[string]any{"booking_id": "b", "amount": 10})
	c.Request = httptest.NewRequest("POST", "/payments/pesapal/initiate", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	signIn(t, c, uuid.New())

	result := domain.PaymentOrderResult{OrderTrackingID: "T1", MerchantReference: "b-1", RedirectURL: "https://pay", Status: "200"}
	mockService.On("InitiatePayment", c.Request.Context(), mock.Anything).Return(result, nil)

	handler.initiate(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"order_tracking_id":"T1","merchant_reference":"b-1","redirect_url":"https://pay","status":"200"}`, w.Body.String())
}

func TestPaymentHandler_initiate_BadBody(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	handler := NewPaymentHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/payments/pesapal/initiate", strings.NewReader(`{"amount":1}`))
	c.Request.Header.Set("Content-Type", "application/json")
	signIn(t, c, uuid.New())

	handler.initiate(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestPaymentHandler_callback(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	handler := NewPaymentHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/payments/pesapal/callback?OrderTrackingId=T1&OrderMerchantReference=B1-9999", nil)

	method, amount, code := "VISA", 250.0, "XYZ"
	mockService.On("Callback", c.Request.Context(), "T1", "B1-9999").Return(payment.CallbackResult{
		Status:           payment.OutcomeSuccess,
		Message:          "Payment completed successfully",
		OrderTrackingID:  "T1",
		PaymentMethod:    &method,
		Amount:           &amount,
		ConfirmationCode: &code,
	})

	handler.callback(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"status": "success",
		"message": "Payment completed successfully",
		"order_tracking_id": "T1",
		"payment_method": "VISA",
		"amount": 250,
		"confirmation_code": "XYZ"
	}`, w.Body.String())
}

func TestPaymentHandler_callback_ErrorShape(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	handler := NewPaymentHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/payments/pesapal/callback?OrderTrackingId=T1&OrderMerchantReference=nope", nil)

	mockService.On("Callback", c.Request.Context(), "T1", "nope").Return(payment.CallbackResult{
		Status:          payment.OutcomeError,
		Message:         "Booking not found",
		OrderTrackingID: "T1",
	})

	handler.callback(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"Booking not found","order_tracking_id":"T1"}`, w.Body.String())
}

func newPaymentRouter(service payment.PaymentUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewPaymentHandler(service).Register(r.Group("/payments"), requireAuth())
	return r
}

func TestPaymentHandler_ipn(t *testing.T) {
	ack := payment.IPNAck{OrderNotificationType: "IPNCHANGE", OrderTrackingID: "T1", OrderMerchantReference: "B1-1", Status: 200}
	want := `{"orderNotificationType":"IPNCHANGE","orderTrackingId":"T1","orderMerchantReference":"B1-1","status":200}`

	t.Run("GET query", func(t *testing.T) {
		mockService := &MockPaymentUseCase{}
		mockService.On("Notify", mock.Anything, "T1", "B1-1").Return(ack)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/payments/pesapal/ipn?OrderTrackingId=T1&OrderMerchantReference=B1-1&OrderNotificationType=IPNCHANGE", nil)
		newPaymentRouter(mockService).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, want, w.Body.String())
	})

	t.Run("POST json", func(t *testing.T) {
		mockService := &MockPaymentUseCase{}
		mockService.On("Notify", mock.Anything, "T1", "B1-1").Return(ack)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/payments/pesapal/ipn",
			strings.NewReader(`{"OrderTrackingId":"T1","OrderMerchantReference":"B1-1","OrderNotificationType":"IPNCHANGE"}`))
		req.Header.Set("Content-Type", "application/json")
		newPaymentRouter(mockService).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, want, w.Body.String())
	})

	t.Run("missing params still answers 200", func(t *testing.T) {
		mockService := &MockPaymentUseCase{}
		mockService.On("Notify", mock.Anything, "", "").Return(payment.IPNAck{OrderNotificationType: "IPNCHANGE", Status: 500})

		w := httptest.NewRecorder()
		newPaymentRouter(mockService).ServeHTTP(w, httptest.NewRequest("GET", "/payments/pesapal/ipn", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"orderNotificationType":"IPNCHANGE","orderTrackingId":"","orderMerchantReference":"","status":500}`, w.Body.String())
	})
}

func TestPaymentHandler_status(t *testing.T) {
	mockService := &MockPaymentUseCase{}
	router := newPaymentRouter(mockService)
	token, err := auth.IssueToken(testSecret, uuid.New(), time.Hour)
	require.NoError(t, err)

	mockService.On("Poll", mock.Anything, "T1").Return(payment.TransactionStatusView{
		PaymentStatusDescription: "Completed",
		PaymentMethod:            "VISA",
		Amount:                   250,
		ConfirmationCode:         "XYZ",
		CreatedDate:              "2024-10-30T10:00:00Z",
		StatusCode:               1,
		MerchantReference:        "B1-9999",
		Currency:                 "USD",
	}, nil)
	mockService.On("Poll", mock.Anything, "bad").Return(payment.TransactionStatusView{}, fmt.Errorf("%w: unknown tracking id", payment.ErrInvalidRequest))
	mockService.On("Poll", mock.Anything, "down").Return(payment.TransactionStatusView{}, errors.New("timeout"))

	get := func(path, token string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		router.ServeHTTP(w, req)
		return w
	}

	w := get("/payments/pesapal/status/T1", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"payment_status_description": "Completed",
		"payment_method": "VISA",
		"amount": 250,
		"confirmation_code": "XYZ",
		"created_date": "2024-10-30T10:00:00Z",
		"status_code": 1,
		"merchant_reference": "B1-9999",
		"currency": "USD"
	}`, w.Body.String())

	w = get("/payments/pesapal/status/bad", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get("/payments/pesapal/status/down", token)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch payment status: timeout"}`, w.Body.String())

	w = get("/payments/pesapal/status/T1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
