package util

import (
	"github.com/berfenger/ucan2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Cloud: config.CloudConfig{
			BaseURL:              "http://127.0.0.1:1",
			Sign:                 "user@example.com",
			Password:             "secret",
			RequestTimeoutMillis: 2000,
		},
		Poll: config.PollConfig{
			IntervalMillis:       1000,
			SensorIntervalMillis: 5000,
		},
		Auth: config.AuthConfig{
			RetryIntervalMillis:     1000,
			TokenExpiryMarginMillis: 300000,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "ucan",
			HADiscoveryTopic: "homeassistant",
		},
		Port: 8080,
	}
}
