package monitor

import (
	"fmt"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/resilience"
	"github.com/dd0wney/cluso-fleetguard/pkg/validation"
)

// DefaultInterval is the time between scheduled cycles.
const DefaultInterval = 30 * time.Second

// Config is the analysis configuration plus the monitor schedule.
type Config struct {
	resilience.Config `yaml:",inline"`

	// Interval between scheduled cycles (default: 30s)
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		Config:   resilience.DefaultConfig(),
		Interval: DefaultInterval,
	}
}

// Validate checks if configuration is valid
func (c Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	err := validation.NewConfigValidator("monitor.Config").
		MinDuration("Interval", c.Interval, 0).
		Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", resilience.ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) interval() time.Duration {
	return validation.DefaultOrDuration(c.Interval, DefaultInterval)
}
