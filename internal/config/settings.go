package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (TASKBOARD_API_URL, ...).
const EnvPrefix = "TASKBOARD"

// ValidationError represents a single invalid setting.
type ValidationError struct {
	Field   string // The setting key (e.g., "page_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d invalid settings:", len(e))
	for _, err := range e {
		sb.WriteString("\n  ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// setDefaults registers default values with v.
func setDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("api_url", d.APIURL)
	v.SetDefault("ws_url", d.WSURL)
	v.SetDefault("topic", d.Topic)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("reconnect_delay", d.ReconnectDelay)
	v.SetDefault("refresh_coalesce", d.RefreshCoalesce)
	v.SetDefault("notify_bell", d.NotifyBell)
}

// LoadSettings reads config.yaml from the config directory (if present)
// and TASKBOARD_* environment overrides into c.Settings, then validates
// the result.
func (c *Config) LoadSettings() error {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(c.SettingsPath()); err == nil {
		v.SetConfigFile(c.SettingsPath())
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read %s: %w", c.SettingsPath(), err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	s.APIURL = strings.TrimRight(s.APIURL, "/")

	if errs := s.Validate(); len(errs) > 0 {
		return ValidationErrors(errs)
	}
	c.Settings = s
	return nil
}

// Validate checks the settings and returns every problem found.
func (s Settings) Validate() []ValidationError {
	var errs []ValidationError

	if !hasScheme(s.APIURL, "http", "https") {
		errs = append(errs, ValidationError{
			Field:   "api_url",
			Value:   s.APIURL,
			Message: "must be an http or https URL",
		})
	}
	if !hasScheme(s.WSURL, "ws", "wss") {
		errs = append(errs, ValidationError{
			Field:   "ws_url",
			Value:   s.WSURL,
			Message: "must be a ws or wss URL",
		})
	}
	if !strings.HasPrefix(s.Topic, "/") {
		errs = append(errs, ValidationError{
			Field:   "topic",
			Value:   s.Topic,
			Message: "must start with /",
		})
	}
	if s.PageSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "page_size",
			Value:   s.PageSize,
			Message: "must be at least 1",
		})
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"request_timeout", s.RequestTimeout},
		{"reconnect_delay", s.ReconnectDelay},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, ValidationError{
				Field:   d.field,
				Value:   d.value,
				Message: "must be positive",
			})
		}
	}
	if s.RefreshCoalesce < 0 {
		errs = append(errs, ValidationError{
			Field:   "refresh_coalesce",
			Value:   s.RefreshCoalesce,
			Message: "must not be negative",
		})
	}

	return errs
}

// OrDefaults returns s with every zero field replaced by its default.
// RefreshCoalesce is left alone: zero means refetch on every push.
func (s Settings) OrDefaults() Settings {
	d := DefaultSettings()
	if s.APIURL == "" {
		s.APIURL = d.APIURL
	}
	if s.WSURL == "" {
		s.WSURL = d.WSURL
	}
	if s.Topic == "" {
		s.Topic = d.Topic
	}
	if s.PageSize == 0 {
		s.PageSize = d.PageSize
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = d.RequestTimeout
	}
	if s.ReconnectDelay == 0 {
		s.ReconnectDelay = d.ReconnectDelay
	}
	return s
}

func hasScheme(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}
