package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dinhtan1304/lernkasten/internal/srs"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var testTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestApplyReviewCreatesCard(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	state := srs.State{EaseFactor: 2.5, Interval: 1, Repetitions: 1}
	card, err := db.ApplyReview(ctx, "lisa", "wort-1", state, true, testTime, testTime.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Equal(t, "lisa", card.Owner)
	require.Equal(t, "wort-1", card.SubjectID)
	require.Equal(t, 1, card.TotalReviews)
	require.Equal(t, 1, card.CorrectCount)
	require.Equal(t, 1, card.Interval)
	require.Equal(t, testTime.AddDate(0, 0, 1), card.NextReviewAt)
	require.NotNil(t, card.LastReviewAt)
	require.Equal(t, testTime, *card.LastReviewAt)
}

func TestApplyReviewIncrementsCounters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	state := srs.State{EaseFactor: 2.5, Interval: 1, Repetitions: 1}
	_, err := db.ApplyReview(ctx, "lisa", "wort-1", state, true, testTime, testTime.AddDate(0, 0, 1))
	require.NoError(t, err)

	// A failed review bumps total_reviews but not correct_count.
	failed := srs.State{EaseFactor: 2.5, Interval: 1, Repetitions: 0}
	card, err := db.ApplyReview(ctx, "lisa", "wort-1", failed, false, testTime, testTime.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Equal(t, 2, card.TotalReviews)
	require.Equal(t, 1, card.CorrectCount)
	require.Equal(t, 0, card.Repetitions)
}

func TestGetAbsent(t *testing.T) {
	db := newTestDB(t)

	card, err := db.Get(context.Background(), "lisa", "never-seen")
	require.NoError(t, err)
	require.Nil(t, card)
}

func TestFindDueOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Three overdue cards: the later due date last, and for equal due
	// dates the lower repetition streak (the struggling card) first.
	steady := srs.State{EaseFactor: 2.5, Interval: 6, Repetitions: 2}
	struggling := srs.State{EaseFactor: 2.5, Interval: 1, Repetitions: 0}

	earlier := testTime.AddDate(0, 0, -2)
	later := testTime.AddDate(0, 0, -1)

	_, err := db.ApplyReview(ctx, "lisa", "late", steady, true, testTime.AddDate(0, 0, -8), later)
	require.NoError(t, err)
	_, err = db.ApplyReview(ctx, "lisa", "early-steady", steady, true, testTime.AddDate(0, 0, -9), earlier)
	require.NoError(t, err)
	_, err = db.ApplyReview(ctx, "lisa", "early-struggling", struggling, false, testTime.AddDate(0, 0, -9), earlier)
	require.NoError(t, err)

	due, err := db.FindDue(ctx, "lisa", Filter{}, 10, testTime)
	require.NoError(t, err)
	require.Len(t, due, 3)
	require.Equal(t, "early-struggling", due[0].SubjectID)
	require.Equal(t, "early-steady", due[1].SubjectID)
	require.Equal(t, "late", due[2].SubjectID)
}

func TestFindDueExcludesFuture(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	state := srs.State{EaseFactor: 2.5, Interval: 6, Repetitions: 2}
	_, err := db.ApplyReview(ctx, "lisa", "tomorrow", state, true, testTime, testTime.AddDate(0, 0, 1))
	require.NoError(t, err)

	due, err := db.FindDue(ctx, "lisa", Filter{}, 10, testTime)
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestFindNewFIFO(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Register(ctx, "lisa", "second", "", 0, testTime.Add(time.Minute)))
	require.NoError(t, db.Register(ctx, "lisa", "first", "", 0, testTime))
	require.NoError(t, db.Register(ctx, "lisa", "third", "", 0, testTime.Add(2*time.Minute)))

	// A reviewed card is no longer new, whatever its streak says.
	lapsed := srs.State{EaseFactor: 2.5, Interval: 1, Repetitions: 0}
	_, err := db.ApplyReview(ctx, "lisa", "third", lapsed, false, testTime.Add(3*time.Minute), testTime.AddDate(0, 0, 1))
	require.NoError(t, err)

	fresh, err := db.FindNew(ctx, "lisa", Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	require.Equal(t, "first", fresh[0].SubjectID)
	require.Equal(t, "second", fresh[1].SubjectID)
}

func TestFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Register(ctx, "lisa", "noun-1", "nouns", 1, testTime))
	require.NoError(t, db.Register(ctx, "lisa", "noun-2", "nouns", 2, testTime))
	require.NoError(t, db.Register(ctx, "lisa", "verb-1", "verbs", 1, testTime))

	fresh, err := db.FindNew(ctx, "lisa", Filter{Category: "nouns"}, 10)
	require.NoError(t, err)
	require.Len(t, fresh, 2)

	fresh, err = db.FindNew(ctx, "lisa", Filter{Category: "nouns", Tier: 2}, 10)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	require.Equal(t, "noun-2", fresh[0].SubjectID)

	// The same filter applies to the due query.
	lapsed := srs.State{EaseFactor: 2.5, Interval: 1, Repetitions: 0}
	_, err = db.ApplyReview(ctx, "lisa", "verb-1", lapsed, false, testTime, testTime.AddDate(0, 0, -1))
	require.NoError(t, err)

	due, err := db.FindDue(ctx, "lisa", Filter{Category: "verbs"}, 10, testTime)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "verb-1", due[0].SubjectID)
}

func TestRegisterIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Register(ctx, "lisa", "wort-1", "nouns", 1, testTime))
	require.NoError(t, db.Register(ctx, "lisa", "wort-1", "verbs", 2, testTime.Add(time.Hour)))

	card, err := db.Get(ctx, "lisa", "wort-1")
	require.NoError(t, err)
	require.NotNil(t, card)
	require.True(t, card.IsNew())
	require.Equal(t, "nouns", card.Category, "re-registering must not overwrite")
	require.Equal(t, testTime, card.NextReviewAt)
}

func TestOwnersAreIsolated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	state := srs.State{EaseFactor: 2.5, Interval: 1, Repetitions: 1}
	_, err := db.ApplyReview(ctx, "lisa", "wort-1", state, true, testTime.AddDate(0, 0, -1), testTime)
	require.NoError(t, err)

	card, err := db.Get(ctx, "tom", "wort-1")
	require.NoError(t, err)
	require.Nil(t, card, "same subject under another owner must be independent")

	due, err := db.FindDue(ctx, "tom", Filter{}, 10, testTime)
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestReset(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	state := srs.State{EaseFactor: 2.36, Interval: 14, Repetitions: 3}
	_, err := db.ApplyReview(ctx, "lisa", "wort-1", state, true, testTime.AddDate(0, 0, -1), testTime.AddDate(0, 0, 13))
	require.NoError(t, err)

	require.NoError(t, db.Reset(ctx, "lisa", "wort-1", testTime))

	card, err := db.Get(ctx, "lisa", "wort-1")
	require.NoError(t, err)
	require.Equal(t, srs.DefaultEaseFactor, card.EaseFactor)
	require.Equal(t, 0, card.Interval)
	require.Equal(t, 0, card.Repetitions)
	require.Equal(t, 0, card.TotalReviews)
	require.Equal(t, 0, card.CorrectCount)
	require.Nil(t, card.LastReviewAt)
	require.Equal(t, testTime, card.NextReviewAt)
	require.True(t, card.IsNew())
}

func TestResetNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.Reset(ctx, "lisa", "never-seen", testTime)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = db.ResetAll(ctx, "nobody", testTime)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResetAll(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	state := srs.State{EaseFactor: 2.5, Interval: 6, Repetitions: 2}
	for _, subject := range []string{"a", "b", "c"} {
		_, err := db.ApplyReview(ctx, "lisa", subject, state, true, testTime, testTime.AddDate(0, 0, 6))
		require.NoError(t, err)
	}

	n, err := db.ResetAll(ctx, "lisa", testTime)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	fresh, err := db.FindNew(ctx, "lisa", Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, fresh, 3)
}

func TestCountDueBetween(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	state := srs.State{EaseFactor: 2.5, Interval: 1, Repetitions: 1}
	_, err := db.ApplyReview(ctx, "lisa", "a", state, true, testTime, testTime.AddDate(0, 0, 1))
	require.NoError(t, err)
	_, err = db.ApplyReview(ctx, "lisa", "b", state, true, testTime, testTime.AddDate(0, 0, 1))
	require.NoError(t, err)
	_, err = db.ApplyReview(ctx, "lisa", "c", state, true, testTime, testTime.AddDate(0, 0, 2))
	require.NoError(t, err)

	from := testTime.AddDate(0, 0, 1)
	to := testTime.AddDate(0, 0, 2)
	n, err := db.CountDueBetween(ctx, "lisa", from, to)
	require.NoError(t, err)
	require.Equal(t, 2, n, "range end is exclusive")
}
