package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNotFound reports a missing tank or reading.
	ErrNotFound = errors.New("not found")

	// ErrPersistence wraps repository read and write failures.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvariantViolation flags a derived reading outside its physical bounds.
	ErrInvariantViolation = errors.New("simulation invariant violation")
)

// capacityTolerance is the relative drift allowed between stored capacity and geometry.
const capacityTolerance = 0.01

// Tank is a monitored upright cylindrical tank. Dimensions are in meters,
// capacity in liters.
type Tank struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Diameter     float64   `json:"diameter"`
	Height       float64   `json:"height"`
	Capacity     float64   `json:"capacity"`
	SensorHeight float64   `json:"sensorHeight"`
	Location     string    `json:"location,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewTank builds a tank with capacity computed from its geometry and the
// sensor mounted at the top.
func NewTank(id, name string, diameter, height float64, location string) Tank {
	return Tank{
		ID:           id,
		Name:         name,
		Diameter:     diameter,
		Height:       height,
		Capacity:     round(CylindricalVolume(height, diameter), 2),
		SensorHeight: height,
		Location:     location,
	}
}

// Validate checks the geometry and that capacity matches it.
func (t Tank) Validate() error {
	if t.ID == "" {
		return errors.New("tank id is required")
	}
	if t.Diameter <= 0 {
		return fmt.Errorf("tank %s: diameter must be positive, got %g", t.ID, t.Diameter)
	}
	if t.Height <= 0 {
		return fmt.Errorf("tank %s: height must be positive, got %g", t.ID, t.Height)
	}
	if t.SensorHeight <= 0 {
		return fmt.Errorf("tank %s: sensor height must be positive, got %g", t.ID, t.SensorHeight)
	}
	geometric := CylindricalVolume(t.Height, t.Diameter)
	if math.Abs(t.Capacity-geometric) > geometric*capacityTolerance {
		return fmt.Errorf("tank %s: capacity %.2f L does not match geometry %.2f L", t.ID, t.Capacity, geometric)
	}
	return nil
}

// Reading is one derived fuel-level observation. ID and Timestamp are assigned
// by the repository on save.
type Reading struct {
	ID                  string    `json:"id"`
	TankID              string    `json:"tankId"`
	DistanceToFuel      float64   `json:"distanceToFuel"`
	FuelHeight          float64   `json:"fuelHeight"`
	FuelLevelLiters     float64   `json:"fuelLevelLiters"`
	FuelLevelPercentage float64   `json:"fuelLevelPercentage"`
	Timestamp           time.Time `json:"timestamp"`
}

// TankReading pairs a tank with its most recent reading.
type TankReading struct {
	Tank    Tank    `json:"tank"`
	Reading Reading `json:"reading"`
	Status  Status  `json:"status"`
}
