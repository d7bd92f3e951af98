package ucancloud

import (
	"context"
	"sync"
)

// TestClient is an in-memory stand-in for Client. Set Err to make every
// data call fail with it, or ErrFor to fail a single operation. BeforeReturn
// runs on every call, sign in included, and may block to simulate a slow
// server.
type TestClient struct {
	mu sync.Mutex

	TokenValue   string
	SignInToken  string
	SignInErr    error
	List         DeviceList
	StatusByID   map[string]Object
	InfoByID     map[string]Object
	ConfigByID   map[string]Object
	DetailsByID  map[string]Object
	AlarmsByID   map[string]any
	Err          error
	ErrFor       map[string]error
	Calls        []string
	SignInCalls  int
	BeforeReturn func(op string)
}

func NewTestClient() *TestClient {
	return &TestClient{
		SignInToken: "test-token",
		List: DeviceList{
			{"device_id": "1001", "device_sn": "SN1001", "inverter_model": "tq"},
			{"device_id": "1002", "device_sn": "SN1002", "inverter_model": "usj"},
		},
		StatusByID: map[string]Object{
			"1001": {"solar_power": 2500.0, "battery_power": -300.0, "load_power": 1200.0, "grid_power": 0.0, "usage_solar_today": 12500.0},
			"1002": {"solar_power": 800.0},
		},
		InfoByID:    map[string]Object{},
		ConfigByID:  map[string]Object{"1001": {"timezone": 8.0}},
		DetailsByID: map[string]Object{},
		AlarmsByID:  map[string]any{},
		ErrFor:      map[string]error{},
	}
}

func (c *TestClient) record(op string) error {
	c.mu.Lock()
	c.Calls = append(c.Calls, op)
	err := c.Err
	if opErr, ok := c.ErrFor[op]; ok && opErr != nil {
		err = opErr
	}
	hook := c.BeforeReturn
	c.mu.Unlock()
	if hook != nil {
		hook(op)
	}
	if err != nil {
		return err
	}
	if c.Token() == "" {
		return &AuthError{Kind: AuthNotSignedIn, Op: op, Message: "sign in first"}
	}
	return nil
}

// CallsSnapshot returns the operations called so far.
func (c *TestClient) CallsSnapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Calls...)
}

func (c *TestClient) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
}

func (c *TestClient) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

func (c *TestClient) SetSignInErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SignInErr = err
}

func (c *TestClient) SignInCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.SignInCalls
}

func (c *TestClient) SignIn(_ context.Context, _, _ string) (*SignInResult, error) {
	c.mu.Lock()
	c.SignInCalls++
	err := c.SignInErr
	hook := c.BeforeReturn
	c.mu.Unlock()
	if hook != nil {
		hook("signin")
	}
	if err != nil {
		return nil, err
	}
	c.SetToken(c.SignInToken)
	return &SignInResult{Token: c.SignInToken, Role: RoleMember}, nil
}

func (c *TestClient) DeviceList(_ context.Context) (DeviceList, error) {
	if err := c.record("device_list"); err != nil {
		return nil, err
	}
	return c.List, nil
}

func (c *TestClient) DeviceStatus(_ context.Context, deviceId string) (Object, error) {
	if err := c.record("device_status"); err != nil {
		return nil, err
	}
	return objectOrEmpty(c.StatusByID[deviceId]), nil
}

func (c *TestClient) DeviceConfig(_ context.Context, deviceId string) (Object, error) {
	if err := c.record("device_config"); err != nil {
		return nil, err
	}
	return objectOrEmpty(c.ConfigByID[deviceId]), nil
}

func (c *TestClient) DeviceInfo(_ context.Context, deviceId string) (Object, error) {
	if err := c.record("device_info"); err != nil {
		return nil, err
	}
	return objectOrEmpty(c.InfoByID[deviceId]), nil
}

func (c *TestClient) DeviceDetails(_ context.Context, deviceId string) (Object, error) {
	if err := c.record("device_details"); err != nil {
		return nil, err
	}
	return objectOrEmpty(c.DetailsByID[deviceId]), nil
}

func (c *TestClient) DeviceAlarms(_ context.Context, deviceId string) (any, error) {
	if err := c.record("device_alarms"); err != nil {
		return nil, err
	}
	if alarms, ok := c.AlarmsByID[deviceId]; ok {
		return alarms, nil
	}
	return Object{}, nil
}

func (c *TestClient) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TokenValue
}

func (c *TestClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenValue = token
}

func (c *TestClient) Authenticated() bool {
	return c.Token() != ""
}

func objectOrEmpty(o Object) Object {
	if o == nil {
		return Object{}
	}
	return o
}
