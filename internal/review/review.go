// Package review orchestrates review sessions: it validates ratings, runs the
// SM-2 calculation, persists results through the card store, and assembles
// prioritized review queues.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/dinhtan1304/lernkasten/internal/domain"
	"github.com/dinhtan1304/lernkasten/internal/srs"
	"github.com/dinhtan1304/lernkasten/internal/storage"
)

const defaultQueueLimit = 20

// Service is the orchestration entry point for review sessions.
type Service struct {
	store *storage.DB

	// now is swapped out in tests to keep due-date math deterministic.
	now func() time.Time
}

// NewService creates a review service over the given store.
func NewService(store *storage.DB) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Review grades one recall attempt and returns the updated card.
//
// A subject the owner has never reviewed starts from the default state, so
// the first review lazily creates the card. Creation and update share the
// same atomic upsert path in the store; the handler itself never does a
// read-then-create dance.
func (s *Service) Review(ctx context.Context, owner, subjectID string, rating srs.Rating) (*domain.Card, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %d", srs.ErrInvalidRating, int(rating))
	}

	card, err := s.store.Get(ctx, owner, subjectID)
	if err != nil {
		return nil, err
	}

	state := srs.DefaultState()
	if card != nil {
		state = card.State()
	}

	next := srs.NextState(state, rating)
	now := s.now()
	dueAt := now.AddDate(0, 0, next.Interval)

	return s.store.ApplyReview(ctx, owner, subjectID, next, rating.Correct(), now, dueAt)
}

// BatchEntry is one item of a batched review submission. The rating arrives
// in wire form so a malformed entry fails alone instead of sinking the batch.
type BatchEntry struct {
	SubjectID string `json:"subject_id"`
	Rating    string `json:"rating"`
}

// BatchItemResult reports the outcome of a single batch entry.
type BatchItemResult struct {
	SubjectID string       `json:"subject_id"`
	Card      *domain.Card `json:"card,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// BatchResult summarizes a batched review.
type BatchResult struct {
	Reviewed int               `json:"reviewed"`
	Failed   int               `json:"failed"`
	Items    []BatchItemResult `json:"items"`
}

// BatchReview grades each entry independently. A failed entry, whether from
// an invalid rating or a storage error, is reported on that item and never
// aborts or rolls back the others.
func (s *Service) BatchReview(ctx context.Context, owner string, entries []BatchEntry) BatchResult {
	result := BatchResult{Items: make([]BatchItemResult, 0, len(entries))}
	for _, entry := range entries {
		item := BatchItemResult{SubjectID: entry.SubjectID}

		rating, err := srs.ParseRating(entry.Rating)
		if err == nil {
			item.Card, err = s.Review(ctx, owner, entry.SubjectID, rating)
		}
		if err != nil {
			item.Error = err.Error()
			result.Failed++
		} else {
			result.Reviewed++
		}
		result.Items = append(result.Items, item)
	}
	return result
}

// PreviewIntervals shows the interval each rating would produce for a card
// without persisting anything. Unknown cards preview from the default state.
func (s *Service) PreviewIntervals(ctx context.Context, owner, subjectID string) (srs.IntervalPreview, error) {
	card, err := s.store.Get(ctx, owner, subjectID)
	if err != nil {
		return srs.IntervalPreview{}, err
	}

	state := srs.DefaultState()
	if card != nil {
		state = card.State()
	}
	return srs.Preview(state), nil
}

// QueueOptions configures SelectBatch.
type QueueOptions struct {
	Limit      int            // max due cards; <= 0 falls back to a default
	IncludeNew bool           // pad with new cards when due falls short
	NewLimit   int            // cap on new cards added
	Filter     storage.Filter // applies identically to both queries
}

// Queue is a prioritized review batch: due material first, then new.
type Queue struct {
	Due []*domain.Card `json:"due"`
	New []*domain.Card `json:"new"`
}

// SelectBatch builds the next review batch. Due cards always take priority;
// new cards only fill whatever room the due cards left, capped by NewLimit.
func (s *Service) SelectBatch(ctx context.Context, owner string, opts QueueOptions) (*Queue, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueueLimit
	}

	due, err := s.store.FindDue(ctx, owner, opts.Filter, limit, s.now())
	if err != nil {
		return nil, err
	}

	queue := &Queue{Due: due, New: []*domain.Card{}}
	if queue.Due == nil {
		queue.Due = []*domain.Card{}
	}

	if opts.IncludeNew && len(due) < limit {
		newLimit := min(opts.NewLimit, limit-len(due))
		if newLimit > 0 {
			fresh, err := s.store.FindNew(ctx, owner, opts.Filter, newLimit)
			if err != nil {
				return nil, err
			}
			if fresh != nil {
				queue.New = fresh
			}
		}
	}
	return queue, nil
}

// Register pre-creates an immediately due card on behalf of a catalog.
func (s *Service) Register(ctx context.Context, owner, subjectID, category string, tier int) error {
	return s.store.Register(ctx, owner, subjectID, category, tier, s.now())
}

// Reset restores one card to its never-reviewed state.
func (s *Service) Reset(ctx context.Context, owner, subjectID string) error {
	return s.store.Reset(ctx, owner, subjectID, s.now())
}

// ResetAll restores every card the owner has and reports how many.
func (s *Service) ResetAll(ctx context.Context, owner string) (int, error) {
	return s.store.ResetAll(ctx, owner, s.now())
}
