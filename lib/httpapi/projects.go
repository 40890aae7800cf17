// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bureau-foundation/logbook/lib/logstore"
	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

type createProjectRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Config      logs.ProjectConfig `json:"config"`
}

type trackedKeysRequest struct {
	TrackedMetadataKeys []string `json:"trackedMetadataKeys"`
}

// resolveProject looks the {project} segment up as an id, then as a
// name.
func (s *Server) resolveProject(ctx context.Context, r *http.Request) (logs.Project, error) {
	reference := chi.URLParam(r, "project")
	project, err := s.store.GetProject(ctx, reference)
	if errors.Is(err, logstore.ErrNotFound) {
		return s.store.GetProjectByName(ctx, reference)
	}
	return project, err
}

// resolveProjectScope is resolveProject that also accepts "all".
func (s *Server) resolveProjectScope(ctx context.Context, r *http.Request) (string, error) {
	if chi.URLParam(r, "project") == logs.AllProjects {
		return logs.AllProjects, nil
	}
	project, err := s.resolveProject(ctx, r)
	if err != nil {
		return "", err
	}
	return project.ID, nil
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var request createProjectRequest
	if err := s.decodeJSON(w, r, &request); err != nil {
		s.writeError(w, r, err)
		return
	}
	project, err := s.store.CreateProject(r.Context(), request.Name, request.Description, request.Config)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.resolveProject(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.resolveProject(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteProject(r.Context(), project.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetTrackedKeys(w http.ResponseWriter, r *http.Request) {
	var request trackedKeysRequest
	if err := s.decodeJSON(w, r, &request); err != nil {
		s.writeError(w, r, err)
		return
	}
	project, err := s.resolveProject(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.store.SetTrackedMetadataKeys(r.Context(), project.ID, request.TrackedMetadataKeys)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// decodeJSON reads a bounded JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return invalid(fmt.Errorf("decoding request body: %w", err))
	}
	return nil
}
