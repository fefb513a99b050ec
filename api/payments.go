package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/aerobound/internal/auth"
	"github.com/Domenick1991/aerobound/internal/domain"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/Domenick1991/aerobound/internal/service/payment"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service payment.PaymentUseCase
}

type initiatePaymentRequest struct {
	BookingID      string                `json:"booking_id" binding:"required"`
	Amount         float64               `json:"amount" binding:"required"`
	Currency       string                `json:"currency"`
	Description    string                `json:"description"`
	CallbackURL    string                `json:"callback_url"`
	BillingAddress domain.BillingAddress `json:"billing_address"`
}

// ipnParams are read from the query string and, for POST, from a form or JSON body.
type ipnParams struct {
	OrderTrackingID        string `form:"OrderTrackingId" json:"OrderTrackingId"`
	OrderMerchantReference string `form:"OrderMerchantReference" json:"OrderMerchantReference"`
	OrderNotificationType  string `form:"OrderNotificationType" json:"OrderNotificationType"`
}

func NewPaymentHandler(service payment.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Register mounts the payment routes. requireAuth guards the user-facing endpoints;
// the provider-facing callback and IPN stay open.
func (h *PaymentHandler) Register(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	router.POST("/pesapal/initiate", requireAuth, h.initiate)
	router.GET("/pesapal/callback", h.callback)
	router.GET("/pesapal/ipn", h.ipn)
	router.POST("/pesapal/ipn", h.ipn)
	router.GET("/pesapal/status/:order_tracking_id", requireAuth, h.status)
}

func (h *PaymentHandler) initiate(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not validate credentials"})
		return
	}

	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.InitiatePayment(c.Request.Context(), payment.InitiatePaymentInput{
		BookingID:      req.BookingID,
		UserID:         userID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		CallbackURL:    req.CallbackURL,
		BillingAddress: req.BillingAddress,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, repository.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.Is(err, payment.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have permission to pay for this booking"})
	case errors.Is(err, payment.ErrAlreadyPaid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "This booking has already been paid"})
	case errors.Is(err, payment.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment system not configured. Please contact support."})
	case errors.Is(err, payment.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initiate payment: " + err.Error()})
	}
}

func (h *PaymentHandler) callback(c *gin.Context) {
	res := h.service.Callback(c.Request.Context(), c.Query("OrderTrackingId"), c.Query("OrderMerchantReference"))
	c.JSON(http.StatusOK, res)
}

// ipn always answers 200; the provider reads the outcome from the body.
func (h *PaymentHandler) ipn(c *gin.Context) {
	var params ipnParams
	_ = c.ShouldBindQuery(&params)
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		var body ipnParams
		if err := c.ShouldBind(&body); err == nil {
			if body.OrderTrackingID != "" {
				params.OrderTrackingID = body.OrderTrackingID
			}
			if body.OrderMerchantReference != "" {
				params.OrderMerchantReference = body.OrderMerchantReference
			}
		}
	}

	ack := h.service.Notify(c.Request.Context(), params.OrderTrackingID, params.OrderMerchantReference)
	c.JSON(http.StatusOK, ack)
}

func (h *PaymentHandler) status(c *gin.Context) {
	view, err := h.service.Poll(c.Request.Context(), c.Param("order_tracking_id"))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment status: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}
