package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Cloud    CloudConfig   `mapstructure:"cloud"`
	Poll     PollConfig    `mapstructure:"poll"`
	Auth     AuthConfig    `mapstructure:"auth"`
	MQTT     MQTTConfig    `mapstructure:"mqtt"`
	HTTP     HTTPConfig    `mapstructure:"http"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
	Port     uint          `mapstructure:"port"`
	HttpLog  bool          `mapstructure:"http_log"`
}

const taskTimeoutMargin = 2 * time.Second

type CloudConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	Sign                 string
	Password             string
	Token                string
	TokenFile            string `mapstructure:"token_file"`
	RequestTimeoutMillis uint32 `mapstructure:"request_timeout_millis"`
}

type PollConfig struct {
	IntervalMillis       uint32 `mapstructure:"interval_millis"`
	SensorIntervalMillis uint32 `mapstructure:"sensor_interval_millis"`
}

type AuthConfig struct {
	RetryIntervalMillis     uint32 `mapstructure:"retry_interval_millis"`
	TokenExpiryMarginMillis uint32 `mapstructure:"token_expiry_margin_millis"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type HTTPConfig struct {
	ApiToken string `mapstructure:"api_token"`
}

type MetricsConfig struct {
	Enable bool
}

func (c CloudConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

// TaskTimeout bounds a background task making up to calls sequential requests.
func (c CloudConfig) TaskTimeout(calls int) time.Duration {
	return time.Duration(calls)*c.RequestTimeout() + taskTimeoutMargin
}

func (c CloudConfig) HasCredentials() bool {
	return c.Sign != "" && c.Password != ""
}

func (c PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMillis) * time.Millisecond
}

func (c PollConfig) SensorInterval() time.Duration {
	return time.Duration(c.SensorIntervalMillis) * time.Millisecond
}

func (c AuthConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMillis) * time.Millisecond
}

func (c AuthConfig) TokenExpiryMargin() time.Duration {
	return time.Duration(c.TokenExpiryMarginMillis) * time.Millisecond
}

// Enabled reports whether a broker is configured.
func (c MQTTConfig) Enabled() bool {
	return c.Host != ""
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Validate checks bounds and normalizes topics in place.
func (c *Config) Validate() error {
	baseTopic, err := CheckMQTTTopic(c.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	c.MQTT.BaseTopic = baseTopic

	hadBaseTopic, err := CheckMQTTTopic(c.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	c.MQTT.HADiscoveryTopic = hadBaseTopic

	if c.Poll.IntervalMillis < 1000 {
		return errors.New("config param poll.interval_millis should be >= 1000")
	}
	if c.Poll.SensorIntervalMillis < 5000 {
		return errors.New("config param poll.sensor_interval_millis should be >= 5000")
	}
	if c.Cloud.RequestTimeoutMillis == 0 {
		return errors.New("config param cloud.request_timeout_millis should be > 0")
	}
	if c.Auth.RetryIntervalMillis < 1000 {
		return errors.New("config param auth.retry_interval_millis should be >= 1000")
	}
	if c.Cloud.Token == "" && !c.Cloud.HasCredentials() && c.Cloud.TokenFile == "" {
		return errors.New("either cloud.token, cloud.token_file or cloud.sign and cloud.password must be set")
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	redact := func(s string) string {
		if s == "" {
			return s
		}
		return "*redacted*"
	}
	c.MQTT.Username = redact(c.MQTT.Username)
	c.MQTT.Password = redact(c.MQTT.Password)
	c.Cloud.Password = redact(c.Cloud.Password)
	c.Cloud.Token = redact(c.Cloud.Token)
	c.HTTP.ApiToken = redact(c.HTTP.ApiToken)
	return c
}
