// Package display renders availability labels for terminal output.
package display

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/hazz-dev/cratecheck/internal/checker"
)

// Formatter decorates an availability label.
type Formatter interface {
	Format(a checker.Availability, label string) string
}

// Render returns the label for a, decorated by f. A nil f renders the plain label.
func Render(a checker.Availability, f Formatter) string {
	label := a.String()
	if f == nil {
		return label
	}
	return f.Format(a, label)
}

// Plain leaves labels untouched.
type Plain struct{}

func (Plain) Format(_ checker.Availability, label string) string { return label }

// Color renders Available in green, Unavailable in red and Unknown in grey.
type Color struct {
	available   *color.Color
	unavailable *color.Color
	unknown     *color.Color
}

// NewColor returns a Color formatter. When force is false, color output
// follows fatih/color's terminal detection (and NO_COLOR).
func NewColor(force bool) *Color {
	c := &Color{
		available:   color.New(color.FgGreen),
		unavailable: color.New(color.FgRed),
		unknown:     color.New(color.FgHiBlack),
	}
	if force {
		c.available.EnableColor()
		c.unavailable.EnableColor()
		c.unknown.EnableColor()
	}
	return c
}

func (c *Color) Format(a checker.Availability, label string) string {
	switch a {
	case checker.Available:
		return c.available.Sprint(label)
	case checker.Unavailable:
		return c.unavailable.Sprint(label)
	default:
		return c.unknown.Sprint(label)
	}
}

// ForMode returns the formatter for a color mode of auto, always, or never.
func ForMode(mode string) (Formatter, error) {
	switch mode {
	case "", "auto":
		return NewColor(false), nil
	case "always":
		return NewColor(true), nil
	case "never":
		return Plain{}, nil
	default:
		return nil, fmt.Errorf("invalid color mode %q (must be auto, always, or never)", mode)
	}
}
