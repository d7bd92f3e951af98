package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/berfenger/ucan2mqtt/internal/core/domain"
	"github.com/berfenger/ucan2mqtt/internal/core/state"
	"github.com/berfenger/ucan2mqtt/internal/metrics"
	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serve(t *testing.T, h http.Handler, method, path, body string, headers ...string) (int, map[string]any) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func populatedStore() *state.Store {
	store := state.NewStore()
	store.Set(domain.CACHE_DEVICE_LIST, ucancloud.DeviceList{
		{"device_id": "1001", "device_sn": "SN1001"},
		{"device_id": "1002", "device_sn": "SN1002"},
	})
	store.SelectDevice(domain.CurrentDevice{DeviceSn: "SN1001", DeviceId: "1001"})
	store.SetForDevice("1001", domain.CACHE_DEVICE_STATUS, ucancloud.Object{"solar_power": 2500.0})
	store.SetForDevice("1001", domain.CACHE_DEVICE_INFO, ucancloud.Object{"timezone": 8.0})
	store.SetForDevice("1001", domain.CACHE_DEVICE_DETAILS, ucancloud.Object{"pcs": "ok"})
	store.SetForDevice("1001", domain.CACHE_DEVICE_ALARMS, []any{map[string]any{"code": "E1"}})
	return store
}

func TestViews(t *testing.T) {
	s := &Server{store: populatedStore(), logger: zap.NewNop()}
	h := s.RegisterRoutes()

	code, body := serve(t, h, http.MethodGet, "/api/ucan_assistant/device_list", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 2.0, body["count"])
	assert.Len(t, body["list"], 2)

	code, body = serve(t, h, http.MethodGet, "/api/ucan_assistant/device_status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"solar_power": 2500.0}, body["status"])

	_, body = serve(t, h, http.MethodGet, "/api/ucan_assistant/device_info", "")
	assert.Equal(t, map[string]any{"timezone": 8.0}, body["info"])

	_, body = serve(t, h, http.MethodGet, "/api/ucan_assistant/device_details", "")
	assert.Equal(t, map[string]any{"pcs": "ok"}, body["details"])

	_, body = serve(t, h, http.MethodGet, "/api/ucan_assistant/device_alarms", "")
	assert.Equal(t, []any{map[string]any{"code": "E1"}}, body["alarms"])
	assert.Equal(t, true, body["success"])
}

func TestViewsWithoutStore(t *testing.T) {
	s := &Server{}
	h := s.RegisterRoutes()

	cases := map[string]any{
		"device_list":    []any{},
		"device_status":  []any{},
		"device_info":    map[string]any{},
		"device_details": map[string]any{},
		"device_alarms":  map[string]any{},
	}
	keys := map[string]string{
		"device_list":    "list",
		"device_status":  "status",
		"device_info":    "info",
		"device_details": "details",
		"device_alarms":  "alarms",
	}
	for view, empty := range cases {
		code, body := serve(t, h, http.MethodGet, "/api/ucan_assistant/"+view, "")
		assert.Equal(t, http.StatusServiceUnavailable, code, view)
		assert.Equal(t, false, body["success"], view)
		assert.NotEmpty(t, body["error"], view)
		assert.Equal(t, empty, body[keys[view]], view)
	}
}

func TestSelectDevice(t *testing.T) {
	store := populatedStore()
	s := &Server{store: store, logger: zap.NewNop()}
	h := s.RegisterRoutes()

	code, body := serve(t, h, http.MethodPost, "/api/ucan_assistant/device_status", `{"device_sn":"SN1002","device_id":1002}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"device_sn": "SN1002", "device_id": "1002"}, body["data"])

	current, ok := store.CurrentDevice()
	require.True(t, ok)
	assert.Equal(t, "1002", current.DeviceId)
	for _, key := range domain.DeviceCacheKeys {
		assert.Equal(t, state.EmptyValue(key), store.Get(key), string(key))
	}
	assert.Len(t, store.DeviceList(), 2, "list is kept")
}

func TestSelectDeviceValidation(t *testing.T) {
	store := populatedStore()
	s := &Server{store: store}
	h := s.RegisterRoutes()

	for _, payload := range []string{`{"device_sn":"SN1002"}`, `{"device_id":"1002"}`, `{"device_sn":"","device_id":"1"}`, `not json`} {
		code, body := serve(t, h, http.MethodPost, "/api/ucan_assistant/device_status", payload)
		assert.Equal(t, http.StatusBadRequest, code, payload)
		assert.Equal(t, false, body["success"], payload)
		assert.NotEmpty(t, body["message"], payload)
	}

	current, _ := store.CurrentDevice()
	assert.Equal(t, "1001", current.DeviceId, "selection untouched")
	assert.False(t, store.StatusEmpty())
}

func TestApiToken(t *testing.T) {
	s := &Server{store: populatedStore(), apiToken: "secret"}
	h := s.RegisterRoutes()

	code, _ := serve(t, h, http.MethodGet, "/api/ucan_assistant/device_list", "")
	assert.Equal(t, http.StatusBadRequest, code, "missing key")

	code, _ = serve(t, h, http.MethodGet, "/api/ucan_assistant/device_list", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := serve(t, h, http.MethodGet, "/api/ucan_assistant/device_list", "", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
}

func TestMetricsEndpoint(t *testing.T) {
	store := populatedStore()
	s := &Server{store: store, metrics: metrics.New(store, zap.NewNop())}
	h := s.RegisterRoutes()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ucan_devices 2")
}
