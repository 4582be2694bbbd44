package generator

import (
	"errors"
	"fmt"
)

var (
	// ErrZoneExhausted is matched by every ZoneExhaustedError
	ErrZoneExhausted = errors.New("zone capacity exhausted")
	// ErrPlanNotFound is returned when the plan to generate does not exist
	ErrPlanNotFound = errors.New("plan not found")
	// ErrZoneOverlap is returned when two zones of one switch class share a port
	ErrZoneOverlap = errors.New("switch port zones overlap")
)

// ZoneExhaustedError reports the zone and connection that could not be satisfied.
// The generation run that produced it has been rolled back.
type ZoneExhaustedError struct {
	Plan        string
	SwitchClass string
	Zone        string
	// Switch is the switch instance, empty when the class has no instances
	Switch      string
	ServerClass string
	Server      string
	Connection  string
	Capacity    int
}

func (e *ZoneExhaustedError) Error() string {
	target := e.Switch
	if target == "" {
		target = e.SwitchClass + " (no switches)"
	}
	return fmt.Sprintf("plan %s: zone %s/%s exhausted on %s (capacity %d) while connecting %s %s",
		e.Plan, e.SwitchClass, e.Zone, target, e.Capacity, e.Server, e.Connection)
}

func (e *ZoneExhaustedError) Unwrap() error {
	return ErrZoneExhausted
}
