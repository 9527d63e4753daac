package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	switch provider {
	case "anthropic":
		if key == "" {
			return fmt.Errorf("%s API key cannot be empty", provider)
		}
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if key == "" {
			return fmt.Errorf("%s API key cannot be empty", provider)
		}
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider validates the provider name
func (v *Validator) ValidateProvider(provider string) error {
	return oneOf("provider", provider, []string{"anthropic", "openai", "scripted"})
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	return oneOf("log level", level, []string{"debug", "info", "warn", "error"})
}

// ValidateSchedule validates a cron spec such as "@every 5m" or "*/10 * * * *"
func (v *Validator) ValidateSchedule(spec string) error {
	if spec == "" {
		return nil // Snapshots disabled
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid stats schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateProvider(cfg.Provider.Provider); err != nil {
		errors = append(errors, err)
	} else if err := v.ValidateAPIKey(cfg.Provider.APIKey, cfg.Provider.Provider); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size must be >= 0"))
	}
	if cfg.Logging.MaxAge < 0 {
		errors = append(errors, fmt.Errorf("logging.max_age must be >= 0"))
	}

	if cfg.Stats.Store != StatsStoreNone {
		if err := v.ValidateSchedule(cfg.Stats.Schedule); err != nil {
			errors = append(errors, err)
		}
	}

	return errors
}

func oneOf(what, value string, valid []string) error {
	for _, candidate := range valid {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (must be one of: %s)", what, value, strings.Join(valid, ", "))
}
