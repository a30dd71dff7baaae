package model

import "fmt"

// Coordinates is a WGS84 latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Charger represents a shared charging point offered by an owner.
type Charger struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	OwnerID       string      `json:"owner_id"`
	Location      Coordinates `json:"location"`
	PowerOutputKW float64     `json:"power_output_kw"`
	// EnergyTariff is the price charged per delivered kWh.
	EnergyTariff float64 `json:"energy_tariff"`
	// ParkingTariff is the price charged per occupied hour.
	ParkingTariff float64 `json:"parking_tariff"`
	Active        bool    `json:"active"`
}

// Validate checks that the charger configuration is sound.
func (c Charger) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("charger id must not be empty")
	}
	if c.PowerOutputKW < 0 {
		return fmt.Errorf("power output must not be negative")
	}
	return nil
}

// Vehicle represents an electric vehicle owned by a platform user.
type Vehicle struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	// BatteryKWh is the total battery capacity in kWh.
	BatteryKWh float64 `json:"battery_kwh"`
	// ChargePercent is the current state of charge between 0 and 100.
	ChargePercent float64 `json:"charge_percent"`
}

// Validate checks that the vehicle configuration is sound.
func (v Vehicle) Validate() error {
	if v.BatteryKWh <= 0 {
		return fmt.Errorf("battery capacity must be positive")
	}
	if v.ChargePercent < 0 || v.ChargePercent > 100 {
		return fmt.Errorf("charge percent must be within [0,100]")
	}
	return nil
}

// EnergyToLevel returns the energy in kWh needed to raise the vehicle's
// charge to the target percentage. Negative results mean no charge is
// needed.
func (v Vehicle) EnergyToLevel(targetPercent float64) float64 {
	return v.BatteryKWh * (targetPercent - v.ChargePercent) / 100
}
