/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/audit"
	"github.com/friendsincode/slotbook/internal/auth"
	"github.com/friendsincode/slotbook/internal/availability"
	"github.com/friendsincode/slotbook/internal/booking"
	"github.com/friendsincode/slotbook/internal/models"
	"github.com/friendsincode/slotbook/internal/scheduler"
	"github.com/friendsincode/slotbook/internal/slots"
)

// API exposes HTTP handlers.
type API struct {
	db           *gorm.DB
	jwtSecret    []byte
	slots        *slots.Service
	availability *availability.Calculator
	bookings     *booking.Service
	batch        *scheduler.Service
	audit        *audit.Service
	logger       zerolog.Logger
	now          func() time.Time
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, slotSvc *slots.Service, calc *availability.Calculator, bookings *booking.Service, batch *scheduler.Service, logger zerolog.Logger) *API {
	return &API{
		db:           db,
		jwtSecret:    jwtSecret,
		slots:        slotSvc,
		availability: calc,
		bookings:     bookings,
		batch:        batch,
		logger:       logger.With().Str("component", "api").Logger(),
		now:          time.Now,
	}
}

// Routes registers API routes on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public endpoints (no auth required)
		r.Get("/businesses/{businessID}/availability", a.handleAvailability)
		r.Get("/businesses/{businessID}/slots", a.handleSlotsList)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Post("/businesses/{businessID}/bookings", a.handleBookingCreate)
			pr.Get("/bookings/{bookingID}", a.handleBookingGet)
			pr.Post("/bookings/{bookingID}/cancel", a.handleBookingCancel)

			pr.Group(func(ar chi.Router) {
				ar.Use(auth.RequireRole(auth.RoleAdmin))
				ar.Post("/businesses/{businessID}/slots/generate", a.handleGenerate)
				ar.Post("/businesses/{businessID}/slots/generate-range", a.handleGenerateRange)
				ar.Post("/batch/run", a.handleBatchRun)
				ar.Get("/audit", a.handleAuditList)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeServiceError maps domain errors to HTTP responses.
func (a *API) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, slots.ErrBusinessNotFound):
		writeError(w, http.StatusNotFound, "business_not_found")
	case errors.Is(err, slots.ErrIntegrity):
		writeError(w, http.StatusConflict, "integrity_error")
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable")
	case errors.Is(err, booking.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled")
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found")
	case errors.Is(err, booking.ErrInvalidDuration), errors.Is(err, availability.ErrNegativeDuration):
		writeError(w, http.StatusBadRequest, "invalid_duration")
	case errors.Is(err, availability.ErrUnknownService):
		writeError(w, http.StatusBadRequest, "unknown_service")
	default:
		a.logger.Error().Err(err).Str("op", op).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func parseDate(raw string) (time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, false
	}
	d, err := models.ParseDate(strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// splitIDs accepts repeated and comma-separated query values.
func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

func parseOptionalInt(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
