package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const apiBasePath = "/api/" + domain.INTEGRATION_DOMAIN

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	api := e.Group(apiBasePath)
	api.Use(middleware.CORS())
	api.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Skipper: func(echo.Context) bool {
			return s.apiToken == ""
		},
		KeyLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(s.apiToken)) == 1, nil
		},
	}))

	api.GET("/device_list", s.DeviceListHandler)
	api.GET("/device_status", s.cacheView(domain.CACHE_DEVICE_STATUS, "status"))
	api.POST("/device_status", s.SelectDeviceHandler)
	api.GET("/device_info", s.cacheView(domain.CACHE_DEVICE_INFO, "info"))
	api.GET("/device_details", s.cacheView(domain.CACHE_DEVICE_DETAILS, "details"))
	api.GET("/device_alarms", s.cacheView(domain.CACHE_DEVICE_ALARMS, "alarms"))

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}
