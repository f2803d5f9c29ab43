package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateSettings checks loaded settings for values that would break the client at runtime.
func ValidateSettings(settings *Settings) error {
	if err := validateServiceSettings(&settings.Service); err != nil {
		return err
	}
	if settings.Probe.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %d", settings.Probe.Timeout)
	}
	if settings.Report.Timeout <= 0 {
		return fmt.Errorf("report timeout must be positive, got %d", settings.Report.Timeout)
	}
	if settings.Gateway.Enabled && settings.Gateway.Listen == "" {
		return fmt.Errorf("gateway listen address must be set when gateway is enabled")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("sqlite path must be set when sqlite output is enabled")
	}
	return nil
}

func validateServiceSettings(service *ServiceSettings) error {
	if service.BaseURL == "" {
		return fmt.Errorf("service base URL must be set")
	}
	parsed, err := url.Parse(service.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid service base URL %q: %w", service.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("service base URL must use http or https, got %q", service.BaseURL)
	}
	if strings.HasSuffix(service.BaseURL, "/") {
		// normalize so endpoint paths can be appended directly
		service.BaseURL = strings.TrimRight(service.BaseURL, "/")
	}
	if service.Timeout <= 0 {
		return fmt.Errorf("service timeout must be positive, got %d", service.Timeout)
	}
	return nil
}
