package config

import (
	"fmt"
	"time"
)

// DomainConfig holds the configurable business rules of the diary domain
type DomainConfig struct {
	// Entry constraints
	MaxEntryLength   int
	AllowFutureDates bool

	// Weeks used by the score trend begin on this day. Slot order is
	// always Sunday=0 regardless.
	WeekStart time.Weekday

	// When set, editing an entry clears its analysis so the next advice
	// request analyzes the new text.
	ReanalyzeOnEdit bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxEntryLength:   10000,
		AllowFutureDates: false,
		WeekStart:        time.Sunday,
		ReanalyzeOnEdit:  false,
	}
}

// DevelopmentDomainConfig relaxes date checks so fixtures can use any date
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.AllowFutureDates = true
	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development", "test":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MaxEntryLength <= 0 {
		return fmt.Errorf("max entry length must be positive, got %d", c.MaxEntryLength)
	}
	if c.WeekStart != time.Sunday && c.WeekStart != time.Monday {
		return fmt.Errorf("week start must be sunday or monday, got %s", c.WeekStart)
	}
	return nil
}
