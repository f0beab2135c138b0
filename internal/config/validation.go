package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url must be configured")
	}
	parsed, err := url.Parse(c.Server.URL)
	if err != nil || parsed.Host == "" {
		return errors.New("server.url must be a valid URL with a host")
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return errors.New("server.url must use http or https")
	}

	if c.Server.Username == "" {
		return errors.New("server.username must be configured")
	}
	if c.Server.Password == "" {
		return errors.New("server.password must be configured")
	}

	if c.Poll.Interval < 1 {
		return errors.New("poll.interval must be at least 1 second")
	}
	if c.Poll.GraceWindow < c.Poll.Interval {
		return errors.New("poll.graceWindow must be at least one poll interval")
	}
	if c.Poll.RequestTimeout < 1 {
		return errors.New("poll.requestTimeout must be at least 1 second")
	}

	if c.Health.FailureThreshold < 1 {
		return errors.New("health.failureThreshold must be positive")
	}
	if c.Health.Interval < 1 {
		return errors.New("health.interval must be at least 1 second")
	}
	if c.Health.BackoffBase < 1 || c.Health.BackoffCap < c.Health.BackoffBase {
		return errors.New("health backoff bounds are inverted")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return errors.New("invalid metrics port")
	}

	return nil
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.url", "UC_JELLYFIN_SERVER_URL")
	v.BindEnv("server.username", "UC_JELLYFIN_USERNAME")
	v.BindEnv("server.password", "UC_JELLYFIN_PASSWORD")
	v.BindEnv("server.twoFactorCode", "UC_JELLYFIN_2FA_CODE")
	v.BindEnv("server.minVersion", "UC_JELLYFIN_MIN_VERSION")
	v.BindEnv("server.deviceID", "UC_JELLYFIN_DEVICE_ID")

	// Poll
	v.BindEnv("poll.interval", "UC_JELLYFIN_POLL_INTERVAL")
	v.BindEnv("poll.graceWindow", "UC_JELLYFIN_GRACE_WINDOW")
	v.BindEnv("poll.requestTimeout", "UC_JELLYFIN_REQUEST_TIMEOUT")

	// Health
	v.BindEnv("health.interval", "UC_JELLYFIN_HEALTH_INTERVAL")
	v.BindEnv("health.failureThreshold", "UC_JELLYFIN_HEALTH_FAILURES")

	// Push / metrics
	v.BindEnv("push.enabled", "UC_JELLYFIN_PUSH_ENABLED")
	v.BindEnv("metrics.enabled", "UC_JELLYFIN_METRICS_ENABLED")
	v.BindEnv("metrics.port", "UC_JELLYFIN_METRICS_PORT")

	// Logging
	v.BindEnv("log.level", "UC_JELLYFIN_LOG_LEVEL")
}
