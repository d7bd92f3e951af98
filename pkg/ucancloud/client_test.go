package ucancloud_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ucancloud.OptionFunc) *ucancloud.Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := ucancloud.NewClient(append([]ucancloud.OptionFunc{ucancloud.WithBaseURL(srv.URL)}, opts...)...)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSignInSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ucancloud.PathSignIn, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user@example.com", body["sign"])
		assert.Equal(t, ucancloud.HashPassword("secret"), body["password"])
		writeJSON(w, map[string]any{"error_code": 2000, "token": "tok-1", "role": "INSTALLER"})
	})

	res, err := client.SignIn(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, ucancloud.RoleInstaller, res.Role)
	assert.Equal(t, "Installer", res.Role.DisplayName())
	assert.True(t, client.Authenticated())
	assert.Equal(t, "tok-1", client.Token())
}

func TestSignInInvalidCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"error_code": "4001", "msg": "wrong password"})
	})

	_, err := client.SignIn(context.Background(), "user", "bad")
	require.Error(t, err)
	assert.True(t, ucancloud.IsInvalidCredentials(err))
	var ae *ucancloud.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "4001", ae.Code)
	assert.Equal(t, "wrong password", ae.Message)
	assert.False(t, client.Authenticated())
}

func TestSignInServerFaultCode(t *testing.T) {
	for _, code := range []any{5000, "5003"} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"error_code": code, "msg": "busy"})
		})
		_, err := client.SignIn(context.Background(), "user", "pw")
		var ae *ucancloud.AuthError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, ucancloud.AuthCannotConnect, ae.Kind, "code %v", code)
		assert.False(t, ucancloud.IsInvalidCredentials(err))
		assert.Equal(t, "busy", ae.Message)
	}
}

func TestSignInHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   ucancloud.AuthErrorKind
	}{
		{http.StatusUnauthorized, ucancloud.AuthInvalidCredentials},
		{http.StatusForbidden, ucancloud.AuthInvalidCredentials},
		{http.StatusInternalServerError, ucancloud.AuthCannotConnect},
		{http.StatusBadGateway, ucancloud.AuthCannotConnect},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := client.SignIn(context.Background(), "user", "pw")
		var ae *ucancloud.AuthError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, tc.kind, ae.Kind, "status %d", tc.status)
	}
}

func TestSignInUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := ucancloud.NewClient(ucancloud.WithBaseURL(url))
	require.NoError(t, err)
	_, err = client.SignIn(context.Background(), "user", "pw")
	assert.True(t, ucancloud.IsCannotConnect(err))
}

func TestSignInTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, ucancloud.WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := client.SignIn(context.Background(), "user", "pw")
	var ae *ucancloud.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ucancloud.AuthCannotConnect, ae.Kind)
	assert.Equal(t, "timeout", ae.Message)
}

func TestSignInMalformed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})
	_, err := client.SignIn(context.Background(), "user", "pw")
	assert.True(t, ucancloud.IsCannotConnect(err))
}

func TestDataCallWithoutTokenSendsNothing(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := client.DeviceList(context.Background())
	var ae *ucancloud.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ucancloud.AuthNotSignedIn, ae.Kind)

	_, err = client.DeviceStatus(context.Background(), "42")
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ucancloud.AuthNotSignedIn, ae.Kind)
	assert.Equal(t, int32(0), hits.Load())
}

func TestDeviceListAcceptsBothCodeForms(t *testing.T) {
	for _, code := range []any{2000, "2000"} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			writeJSON(w, map[string]any{
				"error_code": code,
				"list": []any{
					map[string]any{"device_id": 12345678901, "device_sn": "SN1", "inverter_model": "tq"},
					map[string]any{"device_sn": "orphan"},
				},
			})
		}, ucancloud.WithToken("tok"))

		list, err := client.DeviceList(context.Background())
		require.NoError(t, err)
		assert.Len(t, list, 2)
		devices := list.Devices()
		require.Len(t, devices, 1)
		assert.Equal(t, "12345678901", devices[0].Id)
		assert.Equal(t, "SN1", devices[0].Serial)
		assert.Equal(t, "tq", devices[0].InverterModel)
	}
}

func TestDeviceListMissingListIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"error_code": 2000})
	}, ucancloud.WithToken("tok"))

	list, err := client.DeviceList(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDataCallNon200IsRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, ucancloud.WithToken("expired"))

	_, err := client.DeviceInfo(context.Background(), "1")
	var ae *ucancloud.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ucancloud.AuthRejected, ae.Kind)
	assert.Equal(t, "device_info", ae.Op)
}

func TestDataCallServerErrors(t *testing.T) {
	t.Run("non success code", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"error_code": 5000, "msg": "busy"})
		}, ucancloud.WithToken("tok"))
		_, err := client.DeviceDetails(context.Background(), "1")
		var se *ucancloud.ServerDataError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "5000", se.Code)
		assert.Equal(t, "busy", se.Message)
		assert.False(t, ucancloud.IsAuthError(err))
	})
	t.Run("malformed", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}, ucancloud.WithToken("tok"))
		_, err := client.DeviceStatus(context.Background(), "1")
		var se *ucancloud.ServerDataError
		require.ErrorAs(t, err, &se)
	})
	t.Run("missing message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"error_code": "1"})
		}, ucancloud.WithToken("tok"))
		_, err := client.DeviceConfig(context.Background(), "1")
		var se *ucancloud.ServerDataError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "unknown error", se.Message)
	})
}

func TestDeviceStatusReturnsData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ucancloud.PathDeviceStatus, r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "7", body["device_id"])
		writeJSON(w, map[string]any{"error_code": 2000, "data": map[string]any{"pv_power": 1234.5}})
	})
	client.SetToken("tok")

	status, err := client.DeviceStatus(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1234.5"), status["pv_power"])
}

func TestDeviceAlarmsWindow(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ucancloud.PathDeviceAlarms, r.URL.Path)
		var body struct {
			DeviceId  string `json:"device_id"`
			StartTime int64  `json:"start_time"`
			EndTime   int64  `json:"end_time"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "9", body.DeviceId)
		assert.Equal(t, fixed.Unix(), body.EndTime)
		assert.Equal(t, int64(86400), body.EndTime-body.StartTime)
		writeJSON(w, map[string]any{"error_code": "2000", "data": []any{map[string]any{"code": "E01"}}})
	}, ucancloud.WithToken("tok"), ucancloud.WithClock(func() time.Time { return fixed }))

	alarms, err := client.DeviceAlarms(context.Background(), "9")
	require.NoError(t, err)
	list, ok := alarms.([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestDeviceAlarmsMissingData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"error_code": 2000})
	}, ucancloud.WithToken("tok"))

	alarms, err := client.DeviceAlarms(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, ucancloud.Object{}, alarms)
}

func TestOptionsValidation(t *testing.T) {
	_, err := ucancloud.NewClient(ucancloud.WithBaseURL("/"))
	assert.Error(t, err)
	_, err = ucancloud.NewClient(ucancloud.WithTimeout(0))
	assert.Error(t, err)
}
