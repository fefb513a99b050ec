package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/aerobound/internal/auth"
	"github.com/Domenick1991/aerobound/internal/provider/amadeus"
	"github.com/Domenick1991/aerobound/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	router.POST("/booking/flight-orders", requireAuth, h.create)
	router.GET("/bookings", requireAuth, h.list)
}

func (h *BookingHandler) create(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not validate credentials"})
		return
	}

	var req booking.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, _, err := h.service.CreateFromOrder(c.Request.Context(), userID, req)
	if err != nil {
		var clientErr *amadeus.ClientError
		switch {
		case errors.Is(err, booking.ErrInvalidOrder), errors.Is(err, booking.ErrMissingOrderID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &clientErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": clientErr.Message})
		case errors.Is(err, booking.ErrBookingFailed):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Booking failed, try again later."})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred while creating the flight order. Please try again."})
		}
		return
	}

	writeRaw(c, order)
}

func (h *BookingHandler) list(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not validate credentials"})
		return
	}

	orders, err := h.service.ListUserOrders(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}
