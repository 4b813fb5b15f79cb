package domain

// Status is the discrete fill state of a tank.
type Status string

const (
	StatusCritical Status = "critical"
	StatusLow      Status = "low"
	StatusNormal   Status = "normal"
	StatusFull     Status = "full"
)

// Classify maps a fuel percentage onto a Status. Inputs outside [0, 100] go
// through the same thresholds.
func Classify(percentage float64) Status {
	switch {
	case percentage >= 95:
		return StatusFull
	case percentage < 10:
		return StatusCritical
	case percentage < 25:
		return StatusLow
	default:
		return StatusNormal
	}
}

// Rank orders statuses from emptiest (0) to fullest (3).
func (s Status) Rank() int {
	switch s {
	case StatusCritical:
		return 0
	case StatusLow:
		return 1
	case StatusNormal:
		return 2
	case StatusFull:
		return 3
	default:
		return -1
	}
}
