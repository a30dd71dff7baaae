package recommend

import "fmt"

// Config holds the ranking horizons. The two modes keep independent
// horizon knobs on purpose: the target-charge search spans days while the
// time-budget search is bounded in hours.
type Config struct {
	// TargetChargeHorizonDays bounds the earliest-gap search in
	// target-charge mode.
	TargetChargeHorizonDays int `json:"target_charge_horizon_days" yaml:"target_charge_horizon_days"`
	// TimeBudgetMaxHorizonHours caps the user-stated time budget.
	TimeBudgetMaxHorizonHours int `json:"time_budget_max_horizon_hours" yaml:"time_budget_max_horizon_hours"`
}

// SetDefaults fills unset fields with the standard horizons.
func (c *Config) SetDefaults() {
	if c.TargetChargeHorizonDays == 0 {
		c.TargetChargeHorizonDays = 7
	}
	if c.TimeBudgetMaxHorizonHours == 0 {
		c.TimeBudgetMaxHorizonHours = 24
	}
}

// Validate checks the configured horizons.
func (c Config) Validate() error {
	if c.TargetChargeHorizonDays < 0 {
		return fmt.Errorf("target_charge_horizon_days must not be negative")
	}
	if c.TimeBudgetMaxHorizonHours < 0 {
		return fmt.Errorf("time_budget_max_horizon_hours must not be negative")
	}
	return nil
}
