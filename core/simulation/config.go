package simulation

import "fmt"

// Config defines the synthetic energy-curve parameters.
type Config struct {
	// TickSeconds is the wall-clock period between samples.
	TickSeconds int `json:"tick_seconds" yaml:"tick_seconds"`
	// TargetMinKWh/TargetMaxKWh bound the randomized self-stop target.
	TargetMinKWh float64 `json:"target_min_kwh" yaml:"target_min_kwh"`
	TargetMaxKWh float64 `json:"target_max_kwh" yaml:"target_max_kwh"`
	// JitterMin/JitterMax bound the per-tick power fluctuation factor.
	JitterMin float64 `json:"jitter_min" yaml:"jitter_min"`
	JitterMax float64 `json:"jitter_max" yaml:"jitter_max"`
	// FlatRateKWh prices the snapshot's indicative cost.
	FlatRateKWh float64 `json:"flat_rate_kwh" yaml:"flat_rate_kwh"`
}

// SetDefaults fills unset fields with the standard curve parameters.
func (c *Config) SetDefaults() {
	if c.TickSeconds == 0 {
		c.TickSeconds = 60
	}
	if c.TargetMinKWh == 0 {
		c.TargetMinKWh = 5
	}
	if c.TargetMaxKWh == 0 {
		c.TargetMaxKWh = 10
	}
	if c.JitterMin == 0 {
		c.JitterMin = 0.9
	}
	if c.JitterMax == 0 {
		c.JitterMax = 1.1
	}
	if c.FlatRateKWh == 0 {
		c.FlatRateKWh = 0.25
	}
}

// Validate checks the curve parameters.
func (c Config) Validate() error {
	if c.TickSeconds < 0 {
		return fmt.Errorf("tick_seconds must not be negative")
	}
	if c.TargetMaxKWh < c.TargetMinKWh {
		return fmt.Errorf("target_max_kwh must not be below target_min_kwh")
	}
	if c.JitterMax < c.JitterMin || c.JitterMin < 0 {
		return fmt.Errorf("jitter bounds must satisfy 0 <= min <= max")
	}
	return nil
}
