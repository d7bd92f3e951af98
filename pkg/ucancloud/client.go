package ucancloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://app.ucaness.com"
	DefaultTimeout = 10 * time.Second

	PathSignIn        = "/user/signin"
	PathDeviceList    = "/v2/device/list"
	PathDeviceStatus  = "/device/status"
	PathDeviceConfig  = "/device/config"
	PathDeviceInfo    = "/device/info"
	PathDeviceDetails = "/device/pcs/detail"
	PathDeviceAlarms  = "/report/event2"

	AlarmsWindow = 24 * time.Hour
)

type Client struct {
	sync.RWMutex

	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

func NewClient(opts ...OptionFunc) (*Client, error) {
	client := &Client{
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, o := range opts {
		if err := o(client); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func (c *Client) Token() string {
	c.RLock()
	defer c.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.Lock()
	defer c.Unlock()
	c.token = token
}

func (c *Client) Authenticated() bool {
	return c.Token() != ""
}

// SignIn exchanges the account identifier and password for a session token.
// The token is kept by the client for the following calls.
func (c *Client) SignIn(ctx context.Context, sign, password string) (*SignInResult, error) {
	const op = "signin"
	c.logger.Debug("ucan sign in", zap.String("sign", sign))

	status, payload, err := c.roundTrip(ctx, PathSignIn, signInRequest{
		Sign:     sign,
		Password: HashPassword(password),
	}, "")
	if err != nil {
		authErr := &AuthError{Kind: AuthCannotConnect, Op: op, Err: err}
		if errors.Is(err, context.DeadlineExceeded) {
			authErr.Message = "timeout"
		}
		return nil, authErr
	}
	if status != http.StatusOK {
		kind := AuthCannotConnect
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			kind = AuthInvalidCredentials
		}
		return nil, &AuthError{Kind: kind, Op: op, Message: fmt.Sprintf("HTTP status %d", status)}
	}
	env, err := decodeEnvelope(payload)
	if err != nil {
		return nil, &AuthError{Kind: AuthCannotConnect, Op: op, Message: "malformed response", Err: err}
	}
	if !env.ok() {
		kind := AuthInvalidCredentials
		if env.serverFault() {
			kind = AuthCannotConnect
		}
		return nil, &AuthError{Kind: kind, Op: op, Code: env.code(), Message: env.message()}
	}
	if env.Token == "" {
		return nil, &AuthError{Kind: AuthCannotConnect, Op: op, Message: "response carries no token"}
	}

	c.SetToken(env.Token)
	c.logger.Debug("ucan sign in success", zap.String("role", env.Role))
	return &SignInResult{Token: env.Token, Role: Role(env.Role)}, nil
}

func (c *Client) DeviceList(ctx context.Context) (DeviceList, error) {
	const op = "device_list"
	env, err := c.call(ctx, op, PathDeviceList, nil)
	if err != nil {
		return nil, err
	}
	list := DeviceList{}
	if !isNull(env.List) {
		if err := unmarshalNumbers(env.List, &list); err != nil {
			return nil, &ServerDataError{Op: op, Message: "malformed list", Err: err}
		}
	}
	return list, nil
}

func (c *Client) DeviceStatus(ctx context.Context, deviceId string) (Object, error) {
	return c.objectCall(ctx, "device_status", PathDeviceStatus, deviceRequest{DeviceId: deviceId})
}

// DeviceConfig returns the device configuration object. The bridge only uses
// its timezone field.
func (c *Client) DeviceConfig(ctx context.Context, deviceId string) (Object, error) {
	return c.objectCall(ctx, "device_config", PathDeviceConfig, deviceRequest{DeviceId: deviceId})
}

func (c *Client) DeviceInfo(ctx context.Context, deviceId string) (Object, error) {
	return c.objectCall(ctx, "device_info", PathDeviceInfo, deviceRequest{DeviceId: deviceId})
}

func (c *Client) DeviceDetails(ctx context.Context, deviceId string) (Object, error) {
	return c.objectCall(ctx, "device_details", PathDeviceDetails, deviceRequest{DeviceId: deviceId})
}

// DeviceAlarms queries the alarm events of the trailing 24 hours, computed
// from the client clock at call time.
func (c *Client) DeviceAlarms(ctx context.Context, deviceId string) (any, error) {
	const op = "device_alarms"
	end := c.now().UTC()
	start := end.Add(-AlarmsWindow)
	env, err := c.call(ctx, op, PathDeviceAlarms, alarmsRequest{
		DeviceId:  deviceId,
		StartTime: start.Unix(),
		EndTime:   end.Unix(),
	})
	if err != nil {
		return nil, err
	}
	if isNull(env.Data) {
		return Object{}, nil
	}
	var alarms any
	if err := unmarshalNumbers(env.Data, &alarms); err != nil {
		return nil, &ServerDataError{Op: op, Message: "malformed data", Err: err}
	}
	return alarms, nil
}

func (c *Client) objectCall(ctx context.Context, op, path string, body any) (Object, error) {
	env, err := c.call(ctx, op, path, body)
	if err != nil {
		return nil, err
	}
	data := Object{}
	if !isNull(env.Data) {
		if err := unmarshalNumbers(env.Data, &data); err != nil {
			return nil, &ServerDataError{Op: op, Message: "malformed data", Err: err}
		}
	}
	return data, nil
}

// call performs an authenticated request and classifies the result.
func (c *Client) call(ctx context.Context, op, path string, body any) (envelope, error) {
	token := c.Token()
	if token == "" {
		return envelope{}, &AuthError{Kind: AuthNotSignedIn, Op: op, Message: "sign in first"}
	}

	status, payload, err := c.roundTrip(ctx, path, body, token)
	if err != nil {
		dataErr := &ServerDataError{Op: op, Err: err}
		if errors.Is(err, context.DeadlineExceeded) {
			dataErr.Message = "timeout"
		}
		return envelope{}, dataErr
	}
	if status != http.StatusOK {
		return envelope{}, &AuthError{Kind: AuthRejected, Op: op, Message: fmt.Sprintf("HTTP status %d", status)}
	}
	env, err := decodeEnvelope(payload)
	if err != nil {
		return envelope{}, &ServerDataError{Op: op, Message: "malformed response", Err: err}
	}
	if !env.ok() {
		return envelope{}, &ServerDataError{Op: op, Code: env.code(), Message: env.message()}
	}
	return env, nil
}

func (c *Client) roundTrip(ctx context.Context, path string, body any, token string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// read the body as text regardless of the declared content type
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, payload, nil
}

func decodeEnvelope(payload []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}

func unmarshalNumbers(raw json.RawMessage, target any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(target)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
