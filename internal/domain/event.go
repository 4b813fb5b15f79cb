package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventTypeFuelLevelUpdate is the envelope type of every live update.
const EventTypeFuelLevelUpdate = "fuel_level_update"

// FuelLevelEvent is the snapshot pushed to live subscribers after a
// significant reading. It is never persisted.
type FuelLevelEvent struct {
	TankID              string    `json:"tankId"`
	TankName            string    `json:"tankName"`
	FuelLevelLiters     float64   `json:"fuelLevelLiters"`
	FuelLevelPercentage float64   `json:"fuelLevelPercentage"`
	FuelHeight          float64   `json:"fuelHeight"`
	DistanceToFuel      float64   `json:"distanceToFuel"`
	TankCapacity        float64   `json:"tankCapacity"`
	Timestamp           time.Time `json:"timestamp"`
	Status              Status    `json:"status"`
}

// Envelope is the wire form of a live update.
type Envelope struct {
	Type string         `json:"type"`
	Data FuelLevelEvent `json:"data"`
}

// NewFuelLevelEvent snapshots a persisted reading together with its tank.
func NewFuelLevelEvent(tank Tank, r Reading) FuelLevelEvent {
	return FuelLevelEvent{
		TankID:              tank.ID,
		TankName:            tank.Name,
		FuelLevelLiters:     r.FuelLevelLiters,
		FuelLevelPercentage: r.FuelLevelPercentage,
		FuelHeight:          r.FuelHeight,
		DistanceToFuel:      r.DistanceToFuel,
		TankCapacity:        tank.Capacity,
		Timestamp:           r.Timestamp,
		Status:              Classify(r.FuelLevelPercentage),
	}
}

// MarshalEnvelope serializes an event into its wire envelope.
func MarshalEnvelope(e FuelLevelEvent) ([]byte, error) {
	data, err := json.Marshal(Envelope{Type: EventTypeFuelLevelUpdate, Data: e})
	if err != nil {
		return nil, fmt.Errorf("marshal fuel level event: %w", err)
	}
	return data, nil
}

// UnmarshalEnvelope parses a wire envelope, rejecting unknown event types.
func UnmarshalEnvelope(data []byte) (FuelLevelEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return FuelLevelEvent{}, fmt.Errorf("parse fuel level envelope: %w", err)
	}
	if env.Type != EventTypeFuelLevelUpdate {
		return FuelLevelEvent{}, fmt.Errorf("parse fuel level envelope: unexpected type %q", env.Type)
	}
	return env.Data, nil
}
