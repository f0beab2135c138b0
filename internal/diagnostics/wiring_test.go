package diagnostics

import (
	"testing"

	"github.com/mase1981/uc-intg-jellyfin/internal/config"
)

func TestDescribeWiring(t *testing.T) {
	cfg := &config.AppConfig{
		Server: config.ServerConfig{URL: "http://jf.local:8096", Username: "maria", Password: "secret"},
		Push:   config.PushConfig{Enabled: true},
	}

	report := DescribeWiring(cfg)
	if !report.ServerConfigured || !report.CredentialsPresent {
		t.Errorf("report = %+v", report)
	}
	if !report.AllRequiredPresent {
		t.Error("AllRequiredPresent = false with full config")
	}
	if report.TwoFactorProvided {
		t.Error("TwoFactorProvided = true without a code")
	}
	if report.MetricsEnabled {
		t.Error("MetricsEnabled = true while disabled")
	}

	cfg.Server.Password = ""
	report = DescribeWiring(cfg)
	if report.CredentialsPresent || report.AllRequiredPresent {
		t.Errorf("report after clearing password = %+v", report)
	}
}
