// Package stats aggregates the card store into progress statistics and a
// per-day forecast of upcoming review load.
package stats

import (
	"context"
	"math"
	"time"

	"github.com/dinhtan1304/lernkasten/internal/storage"
)

// Summary is the per-owner progress snapshot.
type Summary struct {
	Total         int     `json:"total"`
	Due           int     `json:"due"`
	New           int     `json:"new"`
	Learning      int     `json:"learning"`
	Review        int     `json:"review"`
	Mature        int     `json:"mature"`
	RetentionRate float64 `json:"retention_rate"` // percent, one decimal
	ReviewedToday int     `json:"reviewed_today"`
}

// ForecastDay is the review load predicted for one calendar day.
type ForecastDay struct {
	Date  string `json:"date"` // YYYY-MM-DD in the engine's timezone
	Count int    `json:"count"`
}

// Engine reads the card store and derives statistics. Day boundaries follow
// the configured location so "today" matches the learner's calendar.
type Engine struct {
	store *storage.DB
	loc   *time.Location
	now   func() time.Time
}

// NewEngine creates a statistics engine. A nil location defaults to UTC.
func NewEngine(store *storage.DB, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, loc: loc, now: time.Now}
}

// WithClock overrides the engine's time source. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Summary computes all stat buckets for the owner in a single store query.
// Retention is the share of non-"again" reviews across all attempts, zero
// when nothing has been reviewed yet.
func (e *Engine) Summary(ctx context.Context, owner string) (*Summary, error) {
	now := e.now()
	row, err := e.store.AggregateStats(ctx, owner, now, e.dayStart(now, 0))
	if err != nil {
		return nil, err
	}

	var retention float64
	if row.ReviewSum > 0 {
		retention = math.Round(float64(row.CorrectSum)/float64(row.ReviewSum)*1000) / 10
	}

	return &Summary{
		Total:         row.Total,
		Due:           row.Due,
		New:           row.New,
		Learning:      row.Learning,
		Review:        row.Review,
		Mature:        row.Mature,
		RetentionRate: retention,
		ReviewedToday: row.ReviewedToday,
	}, nil
}

// Forecast counts the cards coming due on each of the next days calendar
// days, starting today. One ranged count per day keeps the cost proportional
// to the horizon, and computing boundaries with time.Date keeps DST-shortened
// and -lengthened days correct.
func (e *Engine) Forecast(ctx context.Context, owner string, days int) ([]ForecastDay, error) {
	if days < 0 {
		days = 0
	}
	now := e.now()

	forecast := make([]ForecastDay, 0, days)
	for i := 0; i < days; i++ {
		start := e.dayStart(now, i)
		end := e.dayStart(now, i+1)

		count, err := e.store.CountDueBetween(ctx, owner, start, end)
		if err != nil {
			return nil, err
		}
		forecast = append(forecast, ForecastDay{
			Date:  start.Format("2006-01-02"),
			Count: count,
		})
	}
	return forecast, nil
}

// dayStart returns midnight of now+offset days in the engine's location.
func (e *Engine) dayStart(now time.Time, offset int) time.Time {
	local := now.In(e.loc)
	return time.Date(local.Year(), local.Month(), local.Day()+offset, 0, 0, 0, 0, e.loc)
}
