/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/slotbook/internal/auth"
	"github.com/friendsincode/slotbook/internal/booking"
)

type bookingRequest struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	ServiceIDs      []string  `json:"service_ids"`
	CustomerRef     string    `json:"customer_ref"`
}

func (a *API) handleBookingCreate(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.StartTime.IsZero() {
		writeError(w, http.StatusBadRequest, "start_time_required")
		return
	}

	customer := req.CustomerRef
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && customer == "" {
		customer = claims.UserID
	}

	b, err := a.bookings.Reserve(r.Context(), booking.Request{
		BusinessID:      chi.URLParam(r, "businessID"),
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		ServiceIDs:      req.ServiceIDs,
		CustomerRef:     customer,
	})
	if err != nil {
		a.writeServiceError(w, err, "booking_create")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (a *API) handleBookingGet(w http.ResponseWriter, r *http.Request) {
	b, err := a.bookings.Get(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		a.writeServiceError(w, err, "booking_get")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) handleBookingCancel(w http.ResponseWriter, r *http.Request) {
	b, err := a.bookings.Cancel(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		a.writeServiceError(w, err, "booking_cancel")
		return
	}
	writeJSON(w, http.StatusOK, b)
}
