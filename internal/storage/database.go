// Package storage owns the persisted scheduling state, one row per
// (owner, subject_id), backed by SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dinhtan1304/lernkasten/internal/domain"
	"github.com/dinhtan1304/lernkasten/internal/srs"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors for the storage package. Check with errors.Is.
var (
	// ErrNotFound is returned by reset operations that matched no card.
	ErrNotFound = errors.New("storage: card not found")

	// ErrConflict is returned when a concurrent write held the database
	// long enough for the busy timeout to expire. The whole review call is
	// safe to retry: it always recomputes from freshly read state.
	ErrConflict = errors.New("storage: conflicting concurrent write")
)

// Filter narrows due/new queries to a subject category or difficulty tier.
// Zero values match everything.
type Filter struct {
	Category string
	Tier     int
}

// DB wraps the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a database connection, applies the schema, and tunes the
// pragmas the engine needs: WAL for concurrent readers and a busy timeout so
// simultaneous reviews queue instead of failing outright.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const cardColumns = `owner, subject_id, ease_factor, interval, repetitions,
		next_review_at, last_review_at, total_reviews, correct_count,
		category, tier, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var c domain.Card
	var nextReview, createdAt int64
	var lastReview sql.NullInt64
	err := row.Scan(
		&c.Owner,
		&c.SubjectID,
		&c.EaseFactor,
		&c.Interval,
		&c.Repetitions,
		&nextReview,
		&lastReview,
		&c.TotalReviews,
		&c.CorrectCount,
		&c.Category,
		&c.Tier,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	c.NextReviewAt = time.Unix(nextReview, 0).UTC()
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	if lastReview.Valid {
		t := time.Unix(lastReview.Int64, 0).UTC()
		c.LastReviewAt = &t
	}
	return &c, nil
}

// Get retrieves a single card, or nil if the owner never touched the subject.
func (db *DB) Get(ctx context.Context, owner, subjectID string) (*domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE owner = ? AND subject_id = ?
	`, owner, subjectID)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get card %s/%s: %w", owner, subjectID, err)
	}
	return card, nil
}

// FindDue returns cards due at the given time, earliest due date first with
// ties broken by lowest repetition streak, so struggling cards surface first.
// Never-attempted cards are excluded: they belong to the new queue, and a
// pre-registered card must not appear in both halves of a review batch.
func (db *DB) FindDue(ctx context.Context, owner string, f Filter, limit int, now time.Time) ([]*domain.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards WHERE owner = ? AND next_review_at <= ? AND total_reviews > 0`
	args := []any{owner, now.Unix()}
	query, args = applyFilter(query, args, f)
	query += ` ORDER BY next_review_at ASC, repetitions ASC LIMIT ?`
	args = append(args, limit)

	return db.queryCards(ctx, query, args...)
}

// FindNew returns never-attempted cards, oldest registration first.
func (db *DB) FindNew(ctx context.Context, owner string, f Filter, limit int) ([]*domain.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards WHERE owner = ? AND repetitions = 0 AND total_reviews = 0`
	args := []any{owner}
	query, args = applyFilter(query, args, f)
	query += ` ORDER BY created_at ASC LIMIT ?`
	args = append(args, limit)

	return db.queryCards(ctx, query, args...)
}

func applyFilter(query string, args []any, f Filter) (string, []any) {
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Tier > 0 {
		query += ` AND tier = ?`
		args = append(args, f.Tier)
	}
	return query, args
}

func (db *DB) queryCards(ctx context.Context, query string, args ...any) ([]*domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate card rows: %w", err)
	}
	return cards, nil
}

// Register pre-creates a card so it is immediately due, the way a catalog
// introduces material before the first review. Registering an existing card
// is a no-op.
func (db *DB) Register(ctx context.Context, owner, subjectID, category string, tier int, now time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (owner, subject_id, ease_factor, next_review_at, category, tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, subject_id) DO NOTHING
	`, owner, subjectID, srs.DefaultEaseFactor, now.Unix(), category, tier, now.Unix())
	if err != nil {
		return fmt.Errorf("failed to register card %s/%s: %w", owner, subjectID, mapBusy(err))
	}
	return nil
}

// ApplyReview persists one review as a single atomic upsert. The first review
// of a subject creates the row; a concurrent first review conflicts on the
// primary key and lands in the UPDATE branch, which increments the counters
// inside the statement. Two racing first reviews therefore yield exactly one
// row with total_reviews = 2, never two divergent rows.
func (db *DB) ApplyReview(ctx context.Context, owner, subjectID string, state srs.State, correct bool, reviewedAt, dueAt time.Time) (*domain.Card, error) {
	correctDelta := 0
	if correct {
		correctDelta = 1
	}

	row := db.conn.QueryRowContext(ctx, `
		INSERT INTO cards (owner, subject_id, ease_factor, interval, repetitions,
		                   next_review_at, last_review_at, total_reviews, correct_count,
		                   category, tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, '', 0, ?)
		ON CONFLICT (owner, subject_id) DO UPDATE SET
			ease_factor    = excluded.ease_factor,
			interval       = excluded.interval,
			repetitions    = excluded.repetitions,
			next_review_at = excluded.next_review_at,
			last_review_at = excluded.last_review_at,
			total_reviews  = cards.total_reviews + 1,
			correct_count  = cards.correct_count + excluded.correct_count
		RETURNING `+cardColumns+`
	`,
		owner,
		subjectID,
		state.EaseFactor,
		state.Interval,
		state.Repetitions,
		dueAt.Unix(),
		reviewedAt.Unix(),
		correctDelta,
		reviewedAt.Unix(),
	)

	card, err := scanCard(row)
	if err != nil {
		return nil, fmt.Errorf("failed to apply review for %s/%s: %w", owner, subjectID, mapBusy(err))
	}
	return card, nil
}

const resetSet = `
	SET ease_factor = ?, interval = 0, repetitions = 0,
	    next_review_at = ?, last_review_at = NULL,
	    total_reviews = 0, correct_count = 0`

// Reset restores a single card to its never-reviewed state, immediately due.
// Returns ErrNotFound if the owner has no such card.
func (db *DB) Reset(ctx context.Context, owner, subjectID string, now time.Time) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards`+resetSet+`
		WHERE owner = ? AND subject_id = ?
	`, srs.DefaultEaseFactor, now.Unix(), owner, subjectID)
	if err != nil {
		return fmt.Errorf("failed to reset card %s/%s: %w", owner, subjectID, mapBusy(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, owner, subjectID)
	}
	return nil
}

// ResetAll restores every card the owner has. Returns the number of cards
// reset, or ErrNotFound when the owner has none.
func (db *DB) ResetAll(ctx context.Context, owner string, now time.Time) (int, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards`+resetSet+`
		WHERE owner = ?
	`, srs.DefaultEaseFactor, now.Unix(), owner)
	if err != nil {
		return 0, fmt.Errorf("failed to reset cards for %s: %w", owner, mapBusy(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: owner %s has no cards", ErrNotFound, owner)
	}
	return int(affected), nil
}

// StatsRow is the single-pass aggregate backing the statistics engine.
type StatsRow struct {
	Total         int
	Due           int
	New           int
	Learning      int
	Review        int
	Mature        int
	CorrectSum    int
	ReviewSum     int
	ReviewedToday int
}

// AggregateStats computes every stats bucket in one conditional-aggregation
// query. dayStart is the owner-local midnight used for the reviewed-today
// count.
func (db *DB) AggregateStats(ctx context.Context, owner string, now, dayStart time.Time) (StatsRow, error) {
	var s StatsRow
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN next_review_at <= ? AND total_reviews > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN repetitions = 0 AND total_reviews = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN interval > 0 AND interval < 7 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN interval >= 7 AND interval < 21 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN interval >= 21 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(correct_count), 0),
			COALESCE(SUM(total_reviews), 0),
			COALESCE(SUM(CASE WHEN last_review_at >= ? THEN 1 ELSE 0 END), 0)
		FROM cards WHERE owner = ?
	`, now.Unix(), dayStart.Unix(), owner).Scan(
		&s.Total,
		&s.Due,
		&s.New,
		&s.Learning,
		&s.Review,
		&s.Mature,
		&s.CorrectSum,
		&s.ReviewSum,
		&s.ReviewedToday,
	)
	if err != nil {
		return StatsRow{}, fmt.Errorf("failed to aggregate stats for %s: %w", owner, err)
	}
	return s, nil
}

// CountDueBetween counts cards whose due date falls in [from, to). The
// forecast engine calls it once per day, keeping forecast cost proportional
// to the horizon rather than the catalog size.
func (db *DB) CountDueBetween(ctx context.Context, owner string, from, to time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cards
		WHERE owner = ? AND next_review_at >= ? AND next_review_at < ?
	`, owner, from.Unix(), to.Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count due cards for %s: %w", owner, err)
	}
	return n, nil
}

// mapBusy translates SQLite busy/locked failures into ErrConflict so callers
// can detect lost races with errors.Is and retry.
func mapBusy(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
