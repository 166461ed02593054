package checker

import (
	"fmt"
	"strings"
	"time"
)

// Availability is the classification of a package name on the registry.
type Availability int

const (
	// Unknown means the registry response did not settle the question.
	Unknown Availability = iota
	// Available means the registry has no package with the name.
	Available
	// Unavailable means the name is already taken.
	Unavailable
)

var availabilityLabels = [...]string{
	Unknown:     "Unknown",
	Available:   "Available",
	Unavailable: "Unavailable",
}

func (a Availability) String() string {
	if a < 0 || int(a) >= len(availabilityLabels) {
		return fmt.Sprintf("Availability(%d)", int(a))
	}
	return availabilityLabels[a]
}

// MarshalText encodes the availability as its label.
func (a Availability) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(availabilityLabels) {
		return nil, fmt.Errorf("invalid availability %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes a label, ignoring case.
func (a *Availability) UnmarshalText(text []byte) error {
	v, err := ParseAvailability(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAvailability parses a label such as "available" or "Unavailable".
func ParseAvailability(s string) (Availability, error) {
	for i, label := range availabilityLabels {
		if strings.EqualFold(s, label) {
			return Availability(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown availability %q", s)
}

// Result is the outcome of a single registry lookup.
type Result struct {
	Name         string
	Availability Availability
	// StatusCode is zero when no HTTP response was received.
	StatusCode   int
	ResponseTime time.Duration
	// Error describes the transport failure that produced an Unknown result, if any.
	Error     string
	CheckedAt time.Time
}
