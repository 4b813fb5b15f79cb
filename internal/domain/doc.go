// Package domain models cylindrical fuel tanks and the readings derived from
// their level sensors.
//
// # Sensor Model
//
// Each tank carries an ultrasonic sensor mounted at SensorHeight (normally the
// tank height) pointing down at the fuel surface. The sensor reports the
// distance to the fuel in centimeters:
//
//	fuelHeight = sensorHeight - distance/100
//
// Noise can push the computed height slightly below zero or above the tank
// height, so it is always clamped to [0, tank height] before anything else is
// derived from it.
//
// # Geometry
//
// Tanks are upright cylinders. Volume in liters is
//
//	π · (diameter/2)² · fuelHeight · 1000
//
// and the percentage is that volume over the stored capacity. Capacity is
// stored independently of the geometry, so the ratio can drift a hair outside
// [0, 100]; it is clamped to that range.
//
// # Rounding
//
// Derived values are rounded once, at derivation time:
//
//	distanceToFuel       2 decimals (cm)
//	fuelHeight           3 decimals (m)
//	fuelLevelLiters      2 decimals (L)
//	fuelLevelPercentage  2 decimals (%)
//
// # Status
//
// Percentages map onto four states, checked in this order:
//
//	≥ 95  full
//	< 10  critical
//	< 25  low
//	else  normal
//
// # Significant Change
//
// A reading is published to live subscribers only when it is the first one for
// its tank or its percentage moved by more than [SignificantChangeThreshold]
// since the previous reading. Every reading is persisted regardless.
package domain
