package types

import (
	"fmt"
	"math"
	"strconv"
)

// Range is an inclusive interval. Bounds are kept as written in the
// configuration so error messages echo what the operator typed.
type Range struct {
	Min string `yaml:"min" json:"min"`
	Max string `yaml:"max" json:"max"`
}

// Bounds parses the range.
func (r Range) Bounds() (float64, float64, error) {
	lo, err := strconv.ParseFloat(r.Min, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("min %q: %w", r.Min, err)
	}
	hi, err := strconv.ParseFloat(r.Max, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("max %q: %w", r.Max, err)
	}
	return lo, hi, nil
}

// Validate checks that both bounds parse to finite numbers and min <= max.
func (r Range) Validate() error {
	lo, hi, err := r.Bounds()
	if err != nil {
		return err
	}
	if !finite(lo) || !finite(hi) {
		return fmt.Errorf("bounds [%s %s] must be finite", r.Min, r.Max)
	}
	if !(lo <= hi) {
		return fmt.Errorf("min %s is greater than max %s", r.Min, r.Max)
	}
	return nil
}

// SoftLimits bounds the reachable work coordinates of the head.
type SoftLimits struct {
	X Range `yaml:"x" json:"x"`
	Y Range `yaml:"y" json:"y"`
}

// Validate checks both axes.
func (l SoftLimits) Validate() error {
	if err := l.X.Validate(); err != nil {
		return fmt.Errorf("x limits: %w", err)
	}
	if err := l.Y.Validate(); err != nil {
		return fmt.Errorf("y limits: %w", err)
	}
	return nil
}

// Check returns a *SoftLimitExceededError for the first axis whose target
// falls outside its inclusive range.
func (l SoftLimits) Check(x, y float64) error {
	if err := checkAxis("x", x, l.X); err != nil {
		return err
	}
	return checkAxis("y", y, l.Y)
}

func checkAxis(axis string, v float64, r Range) error {
	lo, hi, err := r.Bounds()
	if err != nil {
		return fmt.Errorf("%s limits: %w", axis, err)
	}
	if !finite(lo) || !finite(hi) {
		return fmt.Errorf("%s limits: bounds [%s %s] must be finite", axis, r.Min, r.Max)
	}
	if !finite(v) || !(v >= lo && v <= hi) {
		return &SoftLimitExceededError{Axis: axis, Value: v, Min: r.Min, Max: r.Max}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SoftLimitExceededError is returned when a target lies outside the configured range.
type SoftLimitExceededError struct {
	Axis  string
	Value float64
	Min   string
	Max   string
}

func (e *SoftLimitExceededError) Error() string {
	return fmt.Sprintf("soft limit exceeded: %s=%s out of range [%s %s]",
		e.Axis, strconv.FormatFloat(e.Value, 'g', -1, 64), e.Min, e.Max)
}
