package domain

import (
	"fmt"
	"math"
)

// SignificantChangeThreshold is the percentage delta a reading must exceed,
// relative to the previous one, to be published.
const SignificantChangeThreshold = 0.1

// CylindricalVolume returns the volume in liters of a cylinder filled to
// heightM with the given diameter.
func CylindricalVolume(heightM, diameterM float64) float64 {
	radius := diameterM / 2
	return math.Pi * radius * radius * heightM * 1000
}

// DeriveReading converts a raw sensor distance (cm) into fuel height, volume
// and percentage for the tank. The result has no ID or timestamp yet.
func DeriveReading(distanceCm float64, tank Tank) Reading {
	fuelHeight := clamp(tank.SensorHeight-distanceCm/100, 0, tank.Height)

	liters := CylindricalVolume(fuelHeight, tank.Diameter)

	var percentage float64
	if tank.Capacity > 0 {
		percentage = clamp(liters/tank.Capacity*100, 0, 100)
	}

	return Reading{
		TankID:              tank.ID,
		DistanceToFuel:      round(distanceCm, 2),
		FuelHeight:          round(fuelHeight, 3),
		FuelLevelLiters:     round(liters, 2),
		FuelLevelPercentage: round(percentage, 2),
	}
}

// CheckReading reports ErrInvariantViolation when a derived reading lies
// outside its physical bounds.
func CheckReading(r Reading, tank Tank) error {
	switch {
	case math.IsNaN(r.FuelHeight) || r.FuelHeight < 0 || r.FuelHeight > tank.Height:
		return fmt.Errorf("%w: fuel height %.3f m outside [0, %.3f]", ErrInvariantViolation, r.FuelHeight, tank.Height)
	case math.IsNaN(r.FuelLevelPercentage) || r.FuelLevelPercentage < 0 || r.FuelLevelPercentage > 100:
		return fmt.Errorf("%w: percentage %.2f outside [0, 100]", ErrInvariantViolation, r.FuelLevelPercentage)
	case r.FuelLevelLiters < 0:
		return fmt.Errorf("%w: negative volume %.2f L", ErrInvariantViolation, r.FuelLevelLiters)
	}
	return nil
}

// IsFinite reports whether every measured value of r is a finite number.
// Non-finite readings cannot be encoded as JSON and are never stored.
func (r Reading) IsFinite() bool {
	for _, v := range []float64{r.DistanceToFuel, r.FuelHeight, r.FuelLevelLiters, r.FuelLevelPercentage} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IsSignificantChange reports whether next should be published given the
// previous reading. A nil previous reading always counts.
func IsSignificantChange(prev *Reading, next Reading) bool {
	if prev == nil {
		return true
	}
	// Percentages carry two decimals; round the delta so 50.2-50.1 is exactly 0.1.
	delta := round(math.Abs(next.FuelLevelPercentage-prev.FuelLevelPercentage), 2)
	return delta > SignificantChangeThreshold
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
