/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/slotbook/internal/availability"
	"github.com/friendsincode/slotbook/internal/models"
)

type generateRequest struct {
	Date string `json:"date"`
}

type generateRangeRequest struct {
	StartDate string `json:"start_date"`
	DaysAhead int    `json:"days_ahead"`
}

type batchRunRequest struct {
	Reference *time.Time `json:"reference"`
}

type availabilityResponse struct {
	BusinessID  string      `json:"business_id"`
	Date        string      `json:"date"`
	SlotsNeeded int         `json:"slots_needed"`
	StartTimes  []time.Time `json:"start_times"`
}

func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	date, ok := parseDate(req.Date)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	res, err := a.slots.Generate(r.Context(), chi.URLParam(r, "businessID"), date)
	if err != nil {
		a.writeServiceError(w, err, "generate")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleGenerateRange(w http.ResponseWriter, r *http.Request) {
	var req generateRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	start, ok := parseDate(req.StartDate)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}
	if req.DaysAhead < 0 || req.DaysAhead > 366 {
		writeError(w, http.StatusBadRequest, "invalid_days_ahead")
		return
	}

	res, err := a.slots.GenerateRange(r.Context(), chi.URLParam(r, "businessID"), start, req.DaysAhead)
	if err != nil {
		a.writeServiceError(w, err, "generate_range")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleSlotsList(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(r.URL.Query().Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	list, err := a.slots.Slots(r.Context(), chi.URLParam(r, "businessID"), date)
	if err != nil {
		a.writeServiceError(w, err, "list_slots")
		return
	}
	if list == nil {
		list = []models.Slot{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, ok := parseDate(q.Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}
	duration, ok := parseOptionalInt(q.Get("duration"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_duration")
		return
	}

	query := availability.Query{
		BusinessID:      chi.URLParam(r, "businessID"),
		Date:            date,
		DurationMinutes: duration,
		ServiceIDs:      splitIDs(q["service_id"]),
	}
	res, err := a.availability.Availability(r.Context(), query)
	if err != nil {
		a.writeServiceError(w, err, "availability")
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		BusinessID:  query.BusinessID,
		Date:        date.Format(models.DateLayout),
		SlotsNeeded: res.SlotsNeeded,
		StartTimes:  res.StartTimes,
	})
}

func (a *API) handleBatchRun(w http.ResponseWriter, r *http.Request) {
	var req batchRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	reference := a.now()
	if req.Reference != nil {
		reference = *req.Reference
	}

	report := a.batch.RunOnce(r.Context(), reference)
	writeJSON(w, http.StatusOK, report)
}
