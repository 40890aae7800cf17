// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bureau-foundation/logbook/lib/logstore"
	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// badRequest marks an error as the client's fault.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func invalid(err error) error { return badRequest{err: err} }

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", logs.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeError maps err to a status code. Server-side failures are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var maxBytes *http.MaxBytesError
	var clientErr badRequest
	switch {
	case errors.Is(err, logstore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, logstore.ErrProjectExists):
		status = http.StatusConflict
	case errors.Is(err, logstore.ErrInvalidLog), errors.Is(err, logstore.ErrInvalidFilter),
		errors.Is(err, logstore.ErrInvalidProject), errors.As(err, &clientErr):
		status = http.StatusBadRequest
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errUnsupportedMediaType):
		status = http.StatusUnsupportedMediaType
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}
