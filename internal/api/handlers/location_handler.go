package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crowdradar/internal/api/middleware"
	"crowdradar/internal/domain/entities"
	"crowdradar/internal/services"
)

type LocationHandler struct {
	locationService *services.LocationService
	pingService     *services.PingService
	nearbyService   *services.NearbyService
}

func NewLocationHandler(
	locationService *services.LocationService,
	pingService *services.PingService,
	nearbyService *services.NearbyService,
) *LocationHandler {
	return &LocationHandler{
		locationService: locationService,
		pingService:     pingService,
		nearbyService:   nearbyService,
	}
}

// SetSharing handles PUT /v1/location/sharing
func (h *LocationHandler) SetSharing(c *gin.Context) {
	var req services.SharingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "sharingEnabled must be boolean and permissionStatus a string")
		return
	}

	result, err := h.locationService.SetSharing(c.Request.Context(), middleware.GetCaller(c), req)
	if err != nil {
		respondError(c, "setSharing", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetStatus handles GET /v1/location/status
func (h *LocationHandler) GetStatus(c *gin.Context) {
	status, err := h.locationService.GetControlStatus(c.Request.Context(), middleware.GetCaller(c))
	if err != nil {
		respondError(c, "getControlStatus", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Ping handles POST /v1/location/ping
//
// Policy rejects, including a body that does not decode, are 200 responses
// with accepted=false.
func (h *LocationHandler) Ping(c *gin.Context) {
	var in entities.PingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusOK, entities.RejectedPing(entities.RejectInvalid))
		return
	}

	result, err := h.pingService.UpsertPing(c.Request.Context(), middleware.GetCaller(c), in)
	if err != nil {
		respondError(c, "upsertPing", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Nearby handles GET /v1/location/nearby?radiusFt=
func (h *LocationHandler) Nearby(c *gin.Context) {
	var radiusFt *float64
	if raw := c.Query("radiusFt"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			radiusFt = &v
		}
	}

	resp, err := h.nearbyService.GetNearby(c.Request.Context(), middleware.GetCaller(c), radiusFt)
	if err != nil {
		respondError(c, "getNearby", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
