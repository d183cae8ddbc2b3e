package domain

import (
	"testing"
	"time"
)

func TestStage(t *testing.T) {
	tests := []struct {
		name         string
		interval     int
		totalReviews int
		want         Stage
	}{
		{"never attempted", 0, 0, StageNew},
		{"learning lower", 1, 1, StageLearning},
		{"learning upper", 6, 3, StageLearning},
		{"review lower", 7, 3, StageReview},
		{"review upper", 20, 5, StageReview},
		{"mature", 21, 8, StageMature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Card{Interval: tt.interval, Repetitions: tt.totalReviews, TotalReviews: tt.totalReviews}
			if got := c.Stage(); got != tt.want {
				t.Errorf("Stage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNew(t *testing.T) {
	now := time.Now()
	c := New("lisa", "wort-42", now)
	if !c.IsNew() {
		t.Error("freshly created card should be new")
	}

	// A failed first review leaves repetitions at 0 but the card is no
	// longer new: the counters, not the streak, carry that truth.
	c.TotalReviews = 1
	if c.IsNew() {
		t.Error("card with a recorded attempt should not be new")
	}
}

func TestDue(t *testing.T) {
	now := time.Now()
	c := New("lisa", "wort-42", now)
	if !c.Due(now) {
		t.Error("new card should be immediately due")
	}

	c.NextReviewAt = now.AddDate(0, 0, 3)
	if c.Due(now) {
		t.Error("card scheduled in the future should not be due")
	}
	if !c.Due(now.AddDate(0, 0, 3)) {
		t.Error("card should be due exactly at its review time")
	}
}
