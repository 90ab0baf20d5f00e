package interaction

import "fmt"

// ConfigError reports an invalid model parameter found while deriving Params.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("interaction: invalid %s: %s", e.Field, e.Msg)
}

// PhysicalViolationError reports a bond stretched past its FENE limit while
// forces were being accumulated. The trajectory cannot be continued.
type PhysicalViolationError struct {
	P, Q  int
	Class Class
	R     float64
	RFENE float64
}

func (e *PhysicalViolationError) Error() string {
	return fmt.Sprintf("interaction: the distance between particles %d and %d (type: %d, r: %f) exceeds the FENE distance (%f)",
		e.P, e.Q, e.Class, e.R, e.RFENE)
}
