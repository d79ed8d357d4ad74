// File path: internal/limesurvey/config.go
package limesurvey

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured marks required survey-service settings that are absent.
var ErrNotConfigured = errors.New("limesurvey api not configured")

// Config carries the RemoteControl API endpoint and credentials.
type Config struct {
	BaseURL  string
	Username string
	Password string
}

// LoadConfig resolves the survey-service settings from LIMESURVEY_* environment
// variables.
func LoadConfig() (Config, error) {
	cfg := Config{
		BaseURL:  strings.TrimSpace(os.Getenv("LIMESURVEY_URL")),
		Username: strings.TrimSpace(os.Getenv("LIMESURVEY_USER")),
		Password: os.Getenv("LIMESURVEY_PASSWORD"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first required setting that is missing.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: url missing", ErrNotConfigured)
	}
	if c.Username == "" {
		return fmt.Errorf("%w: username missing", ErrNotConfigured)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password missing", ErrNotConfigured)
	}
	return nil
}
