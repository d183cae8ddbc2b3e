package srs

import (
	"errors"
	"fmt"
)

// Rating is the learner's assessment of how well a card was recalled.
type Rating int

const (
	Again Rating = iota // failed to recall
	Hard                // recalled with real difficulty
	Good                // recalled with some effort
	Easy                // recalled without hesitation
)

// ErrInvalidRating is returned for ratings outside again/hard/good/easy.
// Check with errors.Is.
var ErrInvalidRating = errors.New("srs: invalid rating")

var ratingNames = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}

// quality maps each rating to its SM-2 recall-quality score.
var quality = [...]int{Again: 0, Hard: 3, Good: 4, Easy: 5}

// ParseRating converts the wire form ("again", "hard", "good", "easy")
// into a Rating.
func ParseRating(s string) (Rating, error) {
	for r, name := range ratingNames {
		if s == name {
			return Rating(r), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// IsValid reports whether r is one of the four defined ratings.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// Quality returns the SM-2 quality score: again=0, hard=3, good=4, easy=5.
func (r Rating) Quality() int {
	return quality[r]
}

// Correct reports whether the review counts as a successful recall.
func (r Rating) Correct() bool {
	return r != Again
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
