/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/friendsincode/slotbook/internal/audit"
	"github.com/friendsincode/slotbook/internal/models"
)

// SetAudit enables the audit log endpoint.
func (a *API) SetAudit(svc *audit.Service) {
	a.audit = svc
}

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if a.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit_disabled")
		return
	}

	q := r.URL.Query()
	var filters audit.QueryFilters
	if v := q.Get("business_id"); v != "" {
		filters.BusinessID = &v
	}
	if v := q.Get("action"); v != "" {
		action := models.AuditAction(v)
		filters.Action = &action
	}
	for key, dst := range map[string]**time.Time{"since": &filters.StartTime, "until": &filters.EndTime} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_"+key)
			return
		}
		*dst = &t
	}
	limit, ok := parseOptionalInt(q.Get("limit"))
	if !ok || limit < 0 || limit > 500 {
		writeError(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	offset, ok := parseOptionalInt(q.Get("offset"))
	if !ok || offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid_offset")
		return
	}
	filters.Limit, filters.Offset = limit, offset

	logs, total, err := a.audit.Query(r.Context(), filters)
	if err != nil {
		a.writeServiceError(w, err, "audit_list")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": logs,
		"total":   total,
	})
}
