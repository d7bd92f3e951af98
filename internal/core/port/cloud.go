package port

import (
	"context"

	"github.com/berfenger/ucan2mqtt/pkg/ucancloud"
)

type CloudClient interface {
	SignIn(ctx context.Context, sign, password string) (*ucancloud.SignInResult, error)
	DeviceList(ctx context.Context) (ucancloud.DeviceList, error)
	DeviceStatus(ctx context.Context, deviceId string) (ucancloud.Object, error)
	DeviceConfig(ctx context.Context, deviceId string) (ucancloud.Object, error)
	DeviceInfo(ctx context.Context, deviceId string) (ucancloud.Object, error)
	DeviceDetails(ctx context.Context, deviceId string) (ucancloud.Object, error)
	DeviceAlarms(ctx context.Context, deviceId string) (any, error)
	Token() string
	SetToken(token string)
	Authenticated() bool
}

// TokenStore persists the session token across restarts.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
}

var _ CloudClient = (*ucancloud.Client)(nil)
