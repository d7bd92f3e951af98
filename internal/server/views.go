package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const errNotInitialized = "integration not initialized"

// unavailable answers 503 with the key set to what the panel expects when
// nothing was loaded yet.
func unavailable(c echo.Context, key string) error {
	var empty any = map[string]any{}
	if key == "list" || key == "status" {
		empty = []any{}
	}
	return c.JSON(http.StatusServiceUnavailable, map[string]any{
		"error":   errNotInitialized,
		key:       empty,
		"success": false,
	})
}

func (s *Server) DeviceListHandler(c echo.Context) error {
	if s.store == nil {
		return unavailable(c, "list")
	}
	list := s.store.DeviceList()
	return c.JSON(http.StatusOK, map[string]any{
		"list":    list,
		"count":   len(list),
		"success": true,
	})
}

func (s *Server) cacheView(cacheKey domain.CacheKey, key string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.store == nil {
			return unavailable(c, key)
		}
		return c.JSON(http.StatusOK, map[string]any{
			key:       s.store.Get(cacheKey),
			"success": true,
		})
	}
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"success": false,
		"message": message,
	})
}

// SelectDeviceHandler makes the posted device the current one. The cached
// payloads of the previous device are dropped in the same step.
func (s *Server) SelectDeviceHandler(c echo.Context) error {
	if s.store == nil {
		return unavailable(c, "status")
	}
	body := map[string]any{}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	dev := domain.CurrentDevice{
		DeviceSn: bodyString(body["device_sn"]),
		DeviceId: bodyString(body["device_id"]),
	}
	if dev.DeviceSn == "" || dev.DeviceId == "" {
		return badRequest(c, "device_sn and device_id are required")
	}
	s.store.SelectDevice(dev)
	if s.logger != nil {
		s.logger.Info("http: device selected", zap.String("device_sn", dev.DeviceSn), zap.String("device_id", dev.DeviceId))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    dev,
	})
}

// bodyString accepts identifiers sent either as JSON strings or numbers.
func bodyString(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}
