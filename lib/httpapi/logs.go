// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bureau-foundation/logbook/lib/codec"
	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

var errUnsupportedMediaType = errors.New("unsupported media type")

// pageResponse is a LogPage with the cursor rendered as a token.
type pageResponse struct {
	Logs        []logs.Log `json:"logs"`
	HasNextPage bool       `json:"hasNextPage"`
	NextCursor  string     `json:"nextCursor,omitempty"`
}

func (s *Server) handleCreateLog(w http.ResponseWriter, r *http.Request) {
	project, err := s.resolveProject(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var newLog logs.NewLog
	if err := s.decodeJSON(w, r, &newLog); err != nil {
		s.writeError(w, r, err)
		return
	}
	newLog.ProjectID = project.ID

	created, err := s.store.CreateLog(r.Context(), newLog)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.logsIngested.WithLabelValues("single").Inc()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleBulkLogs(w http.ResponseWriter, r *http.Request) {
	project, err := s.resolveProject(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	batch, err := s.decodeBulk(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for i := range batch {
		batch[i].ProjectID = project.ID
	}

	created, err := s.store.CreateBulkLog(r.Context(), batch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.logsIngested.WithLabelValues("bulk").Add(float64(len(created)))
	s.metrics.bulkBatchSize.Observe(float64(len(created)))
	writeJSON(w, http.StatusCreated, map[string]any{"logs": created})
}

// decodeBulk reads a bulk body: optionally compressed, optionally
// digest-checked, JSON or CBOR.
func (s *Server) decodeBulk(w http.ResponseWriter, r *http.Request) ([]logs.NewLog, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		return nil, invalid(fmt.Errorf("reading body: %w", err))
	}

	compression, err := codec.ParseCompression(r.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnsupportedMediaType, err)
	}
	plain, err := codec.Decompress(body, compression)
	if err != nil {
		return nil, invalid(err)
	}
	if digest := r.Header.Get(logs.DigestHeader); digest != "" {
		if err := codec.VerifyDigest(plain, digest); err != nil {
			return nil, invalid(err)
		}
	}

	var batch []logs.NewLog
	mediaType := logs.ContentTypeJSON
	if header := r.Header.Get("Content-Type"); header != "" {
		mediaType, _, err = mime.ParseMediaType(header)
		if err != nil {
			return nil, invalid(fmt.Errorf("Content-Type: %w", err))
		}
	}
	switch mediaType {
	case logs.ContentTypeCBOR:
		err = codec.Unmarshal(plain, &batch)
	case logs.ContentTypeJSON:
		err = json.Unmarshal(plain, &batch)
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedMediaType, mediaType)
	}
	if err != nil {
		return nil, invalid(fmt.Errorf("decoding %s batch: %w", mediaType, err))
	}
	return batch, nil
}

func (s *Server) handleQueryLogs(w http.ResponseWriter, r *http.Request) {
	projectID, err := s.resolveProjectScope(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filters, err := parseLogFilters(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filters.ProjectID = projectID

	start := time.Now()
	page, err := s.store.GetLogsWithFilters(r.Context(), filters)
	s.metrics.queryLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	response := pageResponse{Logs: page.Logs, HasNextPage: page.HasNextPage}
	if page.NextCursor != nil {
		response.NextCursor, err = encodeCursor(*page.NextCursor)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	project, err := s.resolveProject(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	deleted, err := s.store.ClearProjectLogs(r.Context(), project.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetLogByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
