package domain

import (
	"time"

	"github.com/dinhtan1304/lernkasten/internal/srs"
)

// Stage classifies how far along a card is, derived from its interval.
type Stage string

const (
	StageNew      Stage = "new"      // never attempted
	StageLearning Stage = "learning" // 0 < interval < 7
	StageReview   Stage = "review"   // 7 <= interval < 21
	StageMature   Stage = "mature"   // interval >= 21
)

// Card is one scheduling record per (owner, subject) pair. The subject is
// whatever the catalog teaches; the engine never looks inside it.
type Card struct {
	Owner        string     `json:"owner"`
	SubjectID    string     `json:"subject_id"`
	EaseFactor   float64    `json:"ease_factor"`
	Interval     int        `json:"interval"`
	Repetitions  int        `json:"repetitions"`
	NextReviewAt time.Time  `json:"next_review_at"`
	LastReviewAt *time.Time `json:"last_review_at,omitempty"`
	TotalReviews int        `json:"total_reviews"`
	CorrectCount int        `json:"correct_count"`
	Category     string     `json:"category,omitempty"`
	Tier         int        `json:"tier,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// New returns the default card state for a subject that has never been
// reviewed: immediately due, default ease factor, all counters zero.
func New(owner, subjectID string, now time.Time) *Card {
	return &Card{
		Owner:        owner,
		SubjectID:    subjectID,
		EaseFactor:   srs.DefaultEaseFactor,
		NextReviewAt: now,
		CreatedAt:    now,
	}
}

// IsNew reports whether the card has never been attempted. The counter pair,
// not a separate flag, is the sole source of truth.
func (c *Card) IsNew() bool {
	return c.Repetitions == 0 && c.TotalReviews == 0
}

// Due reports whether the card is due for review at the given time.
func (c *Card) Due(now time.Time) bool {
	return !c.NextReviewAt.After(now)
}

// Stage returns the maturity classification of the card.
func (c *Card) Stage() Stage {
	switch {
	case c.IsNew():
		return StageNew
	case c.Interval >= 21:
		return StageMature
	case c.Interval >= 7:
		return StageReview
	default:
		return StageLearning
	}
}

// State extracts the fields the SM-2 calculator operates on.
func (c *Card) State() srs.State {
	return srs.State{EaseFactor: c.EaseFactor, Interval: c.Interval, Repetitions: c.Repetitions}
}
