package diagnostics

import "github.com/mase1981/uc-intg-jellyfin/internal/config"

type WiringReport struct {
	ServerConfigured   bool `json:"server_configured"`
	CredentialsPresent bool `json:"credentials_present"`
	TwoFactorProvided  bool `json:"two_factor_provided"`
	PushEnabled        bool `json:"push_enabled"`
	MetricsEnabled     bool `json:"metrics_enabled"`
	AllRequiredPresent bool `json:"all_required_present"`
}

// DescribeWiring reports which parts of the bridge are configured, for the
// -self-test output.
func DescribeWiring(cfg *config.AppConfig) WiringReport {
	report := WiringReport{
		ServerConfigured:   cfg.Server.URL != "",
		CredentialsPresent: cfg.Server.Username != "" && cfg.Server.Password != "",
		TwoFactorProvided:  cfg.Server.TwoFactorCode != "",
		PushEnabled:        cfg.Push.Enabled,
		MetricsEnabled:     cfg.Metrics.Enabled,
	}
	report.AllRequiredPresent = report.ServerConfigured && report.CredentialsPresent
	return report
}
