// Package simulator generates noisy ultrasonic distance readings for fuel
// tanks.
//
// Each call runs a two-stage process: a scenario (consumption, refill, stable
// or emergency) is drawn from a distribution that depends on the current fill
// percentage, then the fuel height moves by a scenario-specific random delta.
// Low tanks are biased toward refills and full tanks toward consumption, so the
// level oscillates inside the tank instead of drifting to an extreme.
package simulator

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// RandomSource yields uniform draws in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

type scenario string

const (
	scenarioConsumption scenario = "consumption"
	scenarioRefill      scenario = "refill"
	scenarioStable      scenario = "stable"
	scenarioEmergency   scenario = "emergency"
)

// Simulator produces the next raw sensor distance for a tank. It is safe for
// concurrent use.
type Simulator struct {
	mu     sync.Mutex
	src    RandomSource
	logger *slog.Logger
}

// New creates a Simulator drawing from src.
func New(src RandomSource, logger *slog.Logger) *Simulator {
	return &Simulator{src: src, logger: logger}
}

// NewSeeded creates a Simulator backed by a PCG source. A zero seed uses the
// current time.
func NewSeeded(seed uint64, logger *slog.Logger) *Simulator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), logger)
}

// NextDistance returns the next simulated distance to the fuel surface in
// centimeters, always within [0, tankHeightM·100].
func (s *Simulator) NextDistance(tankID string, currentHeightM, tankHeightM float64) float64 {
	s.mu.Lock()
	sc := selectScenario(currentHeightM/tankHeightM*100, s.src.Float64())
	newHeight := nextHeight(sc, currentHeightM, tankHeightM, s.src.Float64())
	noise := (s.src.Float64() - 0.5) * 2
	s.mu.Unlock()

	distance := clamp((tankHeightM-newHeight)*100+noise, 0, tankHeightM*100)

	s.logger.Debug("simulated sensor reading",
		"tank_id", tankID,
		"scenario", string(sc),
		"height_m", newHeight,
		"distance_cm", distance,
	)
	return distance
}

// InitialFuelLevel returns a bootstrap distance for a tank filled to a
// uniformly chosen percentage in [20, 80].
func (s *Simulator) InitialFuelLevel(tankHeightM float64) float64 {
	s.mu.Lock()
	u := s.src.Float64()
	s.mu.Unlock()

	percentage := 20 + u*60
	height := tankHeightM * percentage / 100
	return (tankHeightM - height) * 100
}

// selectScenario picks the regime for the next step. Bands are checked top
// down and the first match wins.
func selectScenario(percentage, u float64) scenario {
	switch {
	case percentage < 10:
		if u < 0.7 {
			return scenarioRefill
		}
		return scenarioEmergency
	case percentage < 25:
		if u < 0.6 {
			return scenarioRefill
		}
		return scenarioConsumption
	case percentage > 75:
		if u < 0.8 {
			return scenarioConsumption
		}
		return scenarioStable
	default:
		switch {
		case u < 0.5:
			return scenarioConsumption
		case u < 0.8:
			return scenarioStable
		default:
			return scenarioRefill
		}
	}
}

// nextHeight applies the scenario's height delta in meters.
func nextHeight(sc scenario, height, tankHeight, u float64) float64 {
	switch sc {
	case scenarioConsumption:
		return clamp(height-(0.005+u*0.025), 0, tankHeight)
	case scenarioRefill:
		return clamp(height+(0.02+u*0.08), 0, tankHeight)
	case scenarioStable:
		return clamp(height+(u-0.5)*0.01, 0, tankHeight)
	case scenarioEmergency:
		return clamp(height-u*0.005, 0, tankHeight)
	default:
		return height
	}
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
