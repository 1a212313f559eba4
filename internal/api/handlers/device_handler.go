package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crowdradar/internal/api/middleware"
	"crowdradar/internal/domain/entities"
	"crowdradar/internal/services"
)

type DeviceHandler struct {
	deviceService *services.DeviceService
}

func NewDeviceHandler(deviceService *services.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
	}
}

// RegisterDeviceRequest accepts the token as pushToken or, from older app
// builds, expoPushToken.
type RegisterDeviceRequest struct {
	DeviceID      string `json:"deviceId"`
	Platform      string `json:"platform"`
	PushToken     string `json:"pushToken"`
	ExpoPushToken string `json:"expoPushToken"`
}

// RegisterDevice handles POST /v1/location/devices
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request body must be a JSON object")
		return
	}

	token := req.PushToken
	if token == "" {
		token = req.ExpoPushToken
	}

	err := h.deviceService.RegisterPushToken(c.Request.Context(), middleware.GetCaller(c), services.RegisterDeviceRequest{
		DeviceID:  req.DeviceID,
		Platform:  entities.Platform(req.Platform),
		PushToken: token,
	})
	if err != nil {
		respondError(c, "registerPushToken", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
