// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
)

func (s *Server) handleProjectMetrics(w http.ResponseWriter, r *http.Request) {
	projectID, err := s.resolveProjectScope(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics, err := s.store.GetProjectMetrics(r.Context(), projectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	projectID, err := s.resolveProjectScope(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	days := defaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 || days > maxHistoryDays {
			s.writeError(w, r, invalid(fmt.Errorf("days must be an integer between 1 and %d", maxHistoryDays)))
			return
		}
	}

	counts, err := s.store.GetHistoricalLogCounts(r.Context(), projectID, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": counts})
}

func (s *Server) handleMetadataKeys(w http.ResponseWriter, r *http.Request) {
	projectID, err := s.resolveProjectScope(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var keys []string
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "tracked":
		keys, err = s.store.GetUniqueMetadataKeysByProjectID(r.Context(), projectID)
	case "all":
		keys, err = s.store.GetMetadataKeys(r.Context(), projectID)
	default:
		err = invalid(fmt.Errorf("scope must be tracked or all, got %q", scope))
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}
