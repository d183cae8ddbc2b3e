// Package srs implements the SM-2 spaced-repetition scheduling arithmetic.
//
// The package is deliberately pure: it knows nothing about storage or clocks.
// NextState maps (scheduling state, rating) to the next scheduling state; the
// caller turns the returned interval into an actual due date.
package srs

import "math"

const (
	// DefaultEaseFactor is the ease factor assigned to a card that has
	// never been reviewed.
	DefaultEaseFactor = 2.5

	// MinEaseFactor is the floor below which the ease factor never drops.
	MinEaseFactor = 1.3
)

// State is the scheduling state the SM-2 calculation operates on.
type State struct {
	EaseFactor  float64 // >= MinEaseFactor
	Interval    int     // days until next review; 0 = never scheduled
	Repetitions int     // consecutive successful reviews since last lapse
}

// DefaultState is the state of a card before its first review.
func DefaultState() State {
	return State{EaseFactor: DefaultEaseFactor, Interval: 0, Repetitions: 0}
}

// NextState applies one review to the state and returns the result.
//
// A failed recall (quality < 3, i.e. "again") resets the interval to one day
// and the streak to zero but leaves the ease factor untouched. A successful
// recall adjusts the ease factor by the SM-2 formula, clamps it at
// MinEaseFactor, and grows the interval through the fixed 1-day and 6-day
// bootstrap steps before compounding by the new ease factor.
//
// The rating must be valid; callers validate before calling.
func NextState(s State, r Rating) State {
	q := r.Quality()
	if q < 3 {
		return State{EaseFactor: s.EaseFactor, Interval: 1, Repetitions: 0}
	}

	miss := float64(5 - q)
	ef := s.EaseFactor + (0.1 - miss*(0.08+miss*0.02))
	if ef < MinEaseFactor {
		ef = MinEaseFactor
	}
	ef = math.Round(ef*100) / 100

	var interval int
	switch s.Repetitions {
	case 0:
		interval = 1
	case 1:
		interval = 6
	default:
		interval = int(math.Round(float64(s.Interval) * ef))
	}

	return State{EaseFactor: ef, Interval: interval, Repetitions: s.Repetitions + 1}
}

// IntervalPreview shows the interval each rating would produce for a state.
type IntervalPreview struct {
	Again int `json:"again"`
	Hard  int `json:"hard"`
	Good  int `json:"good"`
	Easy  int `json:"easy"`
}

// Preview computes the would-be interval for every rating without any side
// effects. Again is always 1 because a lapse schedules for tomorrow.
func Preview(s State) IntervalPreview {
	return IntervalPreview{
		Again: NextState(s, Again).Interval,
		Hard:  NextState(s, Hard).Interval,
		Good:  NextState(s, Good).Interval,
		Easy:  NextState(s, Easy).Interval,
	}
}
