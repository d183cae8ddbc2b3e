// Package web exposes the scheduling engine as a small JSON API. It is a
// transport adapter only: every handler parses, validates, delegates to the
// review service or stats engine, and encodes the result.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/dinhtan1304/lernkasten/internal/review"
	"github.com/dinhtan1304/lernkasten/internal/srs"
	"github.com/dinhtan1304/lernkasten/internal/stats"
	"github.com/dinhtan1304/lernkasten/internal/storage"
)

// Server holds the dependencies for the HTTP API.
type Server struct {
	reviews  *review.Service
	stats    *stats.Engine
	router   *http.ServeMux
	validate *validator.Validate

	queueLimit   int
	newLimit     int
	forecastDays int
}

// Options carries the per-request defaults the server falls back to when a
// query omits them.
type Options struct {
	QueueLimit   int
	NewLimit     int
	ForecastDays int
}

// NewServer creates and configures a new server.
func NewServer(reviews *review.Service, statsEngine *stats.Engine, opts Options) *Server {
	if opts.QueueLimit <= 0 {
		opts.QueueLimit = 20
	}
	if opts.NewLimit <= 0 {
		opts.NewLimit = 10
	}
	if opts.ForecastDays <= 0 {
		opts.ForecastDays = 7
	}

	s := &Server{
		reviews:      reviews,
		stats:        statsEngine,
		router:       http.NewServeMux(),
		validate:     validator.New(),
		queueLimit:   opts.QueueLimit,
		newLimit:     opts.NewLimit,
		forecastDays: opts.ForecastDays,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("/api/review", s.handleReview())
	s.router.HandleFunc("/api/review/batch", s.handleBatchReview())
	s.router.HandleFunc("/api/queue", s.handleQueue())
	s.router.HandleFunc("/api/preview", s.handlePreview())
	s.router.HandleFunc("/api/stats", s.handleStats())
	s.router.HandleFunc("/api/forecast", s.handleForecast())
	s.router.HandleFunc("/api/reset", s.handleReset())
	s.router.HandleFunc("/api/register", s.handleRegister())
}

type reviewRequest struct {
	Owner     string `json:"owner" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	Rating    string `json:"rating" validate:"required"`
}

// handleReview grades a single recall attempt.
func (s *Server) handleReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req reviewRequest
		if !s.decode(w, r, &req) {
			return
		}

		rating, err := srs.ParseRating(req.Rating)
		if err != nil {
			s.writeError(w, err)
			return
		}

		card, err := s.reviews.Review(r.Context(), req.Owner, req.SubjectID, rating)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

type batchReviewRequest struct {
	Owner string              `json:"owner" validate:"required"`
	Items []review.BatchEntry `json:"items" validate:"required,min=1"`
}

// handleBatchReview grades several attempts with per-item isolation: the
// response always carries one result per submitted item.
func (s *Server) handleBatchReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req batchReviewRequest
		if !s.decode(w, r, &req) {
			return
		}

		result := s.reviews.BatchReview(r.Context(), req.Owner, req.Items)
		writeJSON(w, http.StatusOK, result)
	}
}

// handleQueue returns the prioritized review batch for an owner.
func (s *Server) handleQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		owner := r.URL.Query().Get("owner")
		if owner == "" {
			http.Error(w, "owner is required", http.StatusBadRequest)
			return
		}

		opts := review.QueueOptions{
			Limit:      intParam(r, "limit", s.queueLimit),
			NewLimit:   intParam(r, "new_limit", s.newLimit),
			IncludeNew: r.URL.Query().Get("include_new") != "false",
			Filter: storage.Filter{
				Category: r.URL.Query().Get("category"),
				Tier:     intParam(r, "tier", 0),
			},
		}

		queue, err := s.reviews.SelectBatch(r.Context(), owner, opts)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, queue)
	}
}

// handlePreview shows the learner what each rating would schedule.
func (s *Server) handlePreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		owner := r.URL.Query().Get("owner")
		subjectID := r.URL.Query().Get("subject_id")
		if owner == "" || subjectID == "" {
			http.Error(w, "owner and subject_id are required", http.StatusBadRequest)
			return
		}

		preview, err := s.reviews.PreviewIntervals(r.Context(), owner, subjectID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, preview)
	}
}

// handleStats returns the owner's progress summary.
func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		owner := r.URL.Query().Get("owner")
		if owner == "" {
			http.Error(w, "owner is required", http.StatusBadRequest)
			return
		}

		summary, err := s.stats.Summary(r.Context(), owner)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// handleForecast returns the upcoming per-day review load.
func (s *Server) handleForecast() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		owner := r.URL.Query().Get("owner")
		if owner == "" {
			http.Error(w, "owner is required", http.StatusBadRequest)
			return
		}

		days := intParam(r, "days", s.forecastDays)
		forecast, err := s.stats.Forecast(r.Context(), owner, days)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, forecast)
	}
}

type resetRequest struct {
	Owner     string `json:"owner" validate:"required"`
	SubjectID string `json:"subject_id"` // empty resets every card the owner has
}

// handleReset restores one card, or all of an owner's cards, to the
// never-reviewed state.
func (s *Server) handleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req resetRequest
		if !s.decode(w, r, &req) {
			return
		}

		if req.SubjectID != "" {
			if err := s.reviews.Reset(r.Context(), req.Owner, req.SubjectID); err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]int{"reset": 1})
			return
		}

		n, err := s.reviews.ResetAll(r.Context(), req.Owner)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"reset": n})
	}
}

type registerRequest struct {
	Owner     string `json:"owner" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	Category  string `json:"category"`
	Tier      int    `json:"tier" validate:"min=0"`
}

// handleRegister pre-creates an immediately due card for a catalog subject.
func (s *Server) handleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req registerRequest
		if !s.decode(w, r, &req) {
			return
		}

		if err := s.reviews.Register(r.Context(), req.Owner, req.SubjectID, req.Category, req.Tier); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
	}
}

// decode unmarshals and validates a JSON request body. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps engine errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, srs.ErrInvalidRating):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
