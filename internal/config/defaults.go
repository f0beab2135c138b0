package config

import "github.com/spf13/viper"

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.minVersion", "10.8.0")

	// Poll
	v.SetDefault("poll.interval", 3)
	v.SetDefault("poll.graceWindow", 90)
	v.SetDefault("poll.requestTimeout", 10)
	v.SetDefault("poll.activeWithinSeconds", 960)

	// Health
	v.SetDefault("health.interval", 30)
	v.SetDefault("health.failureThreshold", 3)
	v.SetDefault("health.backoffBase", 5)
	v.SetDefault("health.backoffCap", 300)

	// Push notifications
	v.SetDefault("push.enabled", true)

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Logging
	v.SetDefault("log.level", "info")
}
