package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Domenick1991/aerobound/internal/provider/amadeus"
	"github.com/Domenick1991/aerobound/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	router.GET("/shopping/flight-offers", h.searchGet)
	router.POST("/shopping/flight-offers", h.search)
	router.POST("/shopping/flight-offers/pricing", h.confirmPrice)
	router.GET("/shopping/seatmaps", h.seatMaps)
	router.POST("/shopping/seatmaps", h.seatMapsForOffer)
	router.GET("/reference-data/locations", h.locations)
	router.GET("/booking/flight-orders/*id", requireAuth, h.getOrder)
	router.DELETE("/booking/flight-orders/*id", requireAuth, h.cancelOrder)
}

func (h *FlightHandler) searchGet(c *gin.Context) {
	offers, err := h.service.SearchOffersGet(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		var clientErr *amadeus.ClientError
		if errors.As(err, &clientErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while searching for flights"})
		return
	}
	writeRaw(c, offers)
}

func (h *FlightHandler) search(c *gin.Context) {
	body, ok := readJSONBody(c)
	if !ok {
		return
	}
	resp, err := h.service.SearchOffers(c.Request.Context(), body)
	if err != nil {
		writeProviderError(c, err, "Flight search failed: ")
		return
	}
	writeRaw(c, resp)
}

func (h *FlightHandler) confirmPrice(c *gin.Context) {
	offer, ok := readJSONBody(c)
	if !ok {
		return
	}
	resp, err := h.service.ConfirmPrice(c.Request.Context(), offer)
	if err != nil {
		writeProviderError(c, err, "Price confirmation failed: ")
		return
	}
	writeRaw(c, resp)
}

func (h *FlightHandler) locations(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
		return
	}
	resp, err := h.service.Locations(c.Request.Context(), keyword, c.Query("sub_type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while searching for a location"})
		return
	}
	writeRaw(c, resp)
}

func (h *FlightHandler) seatMaps(c *gin.Context) {
	orderID := c.Query("flightorderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "flightorderId is required"})
		return
	}
	resp, err := h.service.SeatMaps(c.Request.Context(), orderID)
	if err != nil {
		writeProviderError(c, err, "Seat map lookup failed: ")
		return
	}
	writeRaw(c, resp)
}

func (h *FlightHandler) seatMapsForOffer(c *gin.Context) {
	offer, ok := readJSONBody(c)
	if !ok {
		return
	}
	resp, err := h.service.SeatMapsForOffer(c.Request.Context(), offer)
	if err != nil {
		writeProviderError(c, err, "Seat map lookup failed: ")
		return
	}
	writeRaw(c, resp)
}

func (h *FlightHandler) getOrder(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	order, err := h.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, amadeus.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Flight order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while retrieving the flight order"})
		return
	}
	writeRaw(c, order)
}

func (h *FlightHandler) cancelOrder(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	if err := h.service.CancelOrder(c.Request.Context(), id); err != nil {
		var clientErr *amadeus.ClientError
		if errors.As(err, &clientErr) || errors.Is(err, amadeus.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid flight order ID"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while deleting the flight order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "cancelled"})
}

func readJSONBody(c *gin.Context) (json.RawMessage, bool) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return nil, false
	}
	return body, true
}

// writeProviderError answers 400 with the provider's user-facing message for client errors
// and 500 with prefix otherwise.
func writeProviderError(c *gin.Context, err error, prefix string) {
	var clientErr *amadeus.ClientError
	if errors.As(err, &clientErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": clientErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": prefix + err.Error()})
}

func writeRaw(c *gin.Context, body json.RawMessage) {
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
