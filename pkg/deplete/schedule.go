package deplete

import (
	"fmt"
	"math"
)

// Unit is the time unit of a schedule's timesteps.
type Unit string

const (
	Seconds Unit = "s"
	Minutes Unit = "min"
	Hours   Unit = "h"
	Days    Unit = "d"
	Years   Unit = "a"
)

// Seconds returns the length of one unit in seconds. A year is 365.25 days.
func (u Unit) Seconds() (float64, error) {
	switch u {
	case Seconds, "":
		return 1, nil
	case Minutes:
		return 60, nil
	case Hours:
		return 3600, nil
	case Days:
		return 86400, nil
	case Years:
		return 365.25 * 86400, nil
	}
	return 0, fmt.Errorf("unknown time unit %q (want s, min, h, d or a)", string(u))
}

// Step is one depletion interval.
type Step struct {
	Index      int
	Time       float64 // seconds at the start of the interval
	Dt         float64 // seconds
	SourceRate float64 // particles/s
}

// Schedule is a sequence of depletion intervals at given source rates.
type Schedule struct {
	steps []Step
}

// NewSchedule validates timesteps (in units) and source rates. A single
// source rate applies to every timestep.
func NewSchedule(timesteps []float64, units Unit, sourceRates []float64) (Schedule, error) {
	if len(timesteps) == 0 {
		return Schedule{}, fmt.Errorf("no timesteps")
	}
	factor, err := units.Seconds()
	if err != nil {
		return Schedule{}, err
	}
	switch len(sourceRates) {
	case len(timesteps):
	case 1:
		rate := sourceRates[0]
		sourceRates = make([]float64, len(timesteps))
		for i := range sourceRates {
			sourceRates[i] = rate
		}
	default:
		return Schedule{}, fmt.Errorf("%d source rates for %d timesteps", len(sourceRates), len(timesteps))
	}

	s := Schedule{steps: make([]Step, len(timesteps))}
	t := 0.0
	for i, dt := range timesteps {
		if !(dt > 0) || math.IsInf(dt, 0) {
			return Schedule{}, fmt.Errorf("timestep %d must be positive, got %v", i, dt)
		}
		rate := sourceRates[i]
		if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return Schedule{}, fmt.Errorf("source rate %d must be finite and non-negative, got %v", i, rate)
		}
		s.steps[i] = Step{Index: i, Time: t, Dt: dt * factor, SourceRate: rate}
		t += dt * factor
	}
	return s, nil
}

// Steps returns the intervals in order.
func (s Schedule) Steps() []Step { return append([]Step(nil), s.steps...) }

// Len returns the number of intervals.
func (s Schedule) Len() int { return len(s.steps) }

// Final is the end-of-schedule point, solved at the last source rate.
func (s Schedule) Final() Step {
	if len(s.steps) == 0 {
		return Step{}
	}
	last := s.steps[len(s.steps)-1]
	return Step{Index: last.Index + 1, Time: last.Time + last.Dt, SourceRate: last.SourceRate}
}
