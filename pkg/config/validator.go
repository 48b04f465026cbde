package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return "config validation error: " + e.Field + ": " + e.Message + " (got: " + e.Value + ")"
	}
	return "config validation error: " + e.Field + ": " + e.Message
}

// Validate checks cross-field rules the schema cannot express. All
// problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, msg, value string) {
		errs = append(errs, &ValidationError{Field: field, Message: msg, Value: value})
	}

	if c.Dialogue.APIKey == "" {
		add("dialogue.apiKey", "is required", "")
	}
	if c.Dialogue.BaseURL != "" && !validURL(c.Dialogue.BaseURL) {
		add("dialogue.baseURL", "must be an absolute http(s) URL", c.Dialogue.BaseURL)
	}
	if c.Analysis.Enabled() && !validURL(c.Analysis.Endpoint) {
		add("analysis.endpoint", "must be an absolute http(s) URL", c.Analysis.Endpoint)
	}

	needsSupabase := c.Storage.Backend == StorageSupabase || c.Records.Backend == RecordsSupabase
	if needsSupabase {
		if c.Supabase.URL == "" {
			add("supabase.url", "is required by the supabase backends", "")
		} else if !validURL(c.Supabase.URL) {
			add("supabase.url", "must be an absolute http(s) URL", c.Supabase.URL)
		}
		if c.Supabase.ServiceRoleKey == "" {
			add("supabase.serviceRoleKey", "is required by the supabase backends", "")
		}
	}

	if c.Telemetry.Enabled() && !validURL(c.Telemetry.Endpoint) {
		add("telemetry.endpoint", "must be an absolute http(s) URL", c.Telemetry.Endpoint)
	}

	for _, p := range []struct{ field, value string }{
		{"server.resultsPath", c.Server.ResultsPath},
		{"server.recordingsPath", c.Server.RecordingsPath},
	} {
		if !strings.HasPrefix(p.value, "/") || !strings.HasSuffix(p.value, "/") {
			add(p.field, "must start and end with /", p.value)
		}
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
