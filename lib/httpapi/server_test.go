// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/logbook/lib/clock"
	"github.com/bureau-foundation/logbook/lib/codec"
	"github.com/bureau-foundation/logbook/lib/logstore"
	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

var serverTestClockEpoch = time.Date(2026, 2, 28, 14, 0, 0, 0, time.UTC)

type testEnv struct {
	server *httptest.Server
	store  *logstore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := logstore.OpenStore(logstore.StoreConfig{
		Path:     filepath.Join(t.TempDir(), "api_test.db"),
		PoolSize: 2,
		Clock:    clock.Fake(serverTestClockEpoch),
		Logger:   logger,
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	api, err := New(Config{Store: store, Logger: logger, Version: "test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store}
}

// call sends a request and decodes a JSON response into out (when
// non-nil). It returns the status code.
func (e *testEnv) call(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		request.Header.Set("Content-Type", logs.ContentTypeJSON)
	}
	return e.do(t, request, out)
}

func (e *testEnv) do(t *testing.T, request *http.Request, out any) int {
	t.Helper()
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("%s %s: %v", request.Method, request.URL.Path, err)
	}
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decoding %s %s response %q: %v", request.Method, request.URL.Path, data, err)
		}
	}
	return response.StatusCode
}

func (e *testEnv) createProject(t *testing.T, name string, tracked ...string) logs.Project {
	t.Helper()
	var project logs.Project
	status := e.call(t, http.MethodPost, "/api/v1/projects", createProjectRequest{
		Name:   name,
		Config: logs.ProjectConfig{TrackedMetadataKeys: tracked},
	}, &project)
	if status != http.StatusCreated {
		t.Fatalf("create project status = %d", status)
	}
	return project
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	var body map[string]string
	if status := env.call(t, http.MethodGet, "/healthz", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestProjectRoutes(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, "checkout", "user")

	var errBody errorResponse
	if status := env.call(t, http.MethodPost, "/api/v1/projects", createProjectRequest{Name: "checkout"}, &errBody); status != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", status)
	}
	if status := env.call(t, http.MethodPost, "/api/v1/projects", createProjectRequest{}, &errBody); status != http.StatusBadRequest {
		t.Errorf("blank name status = %d, want 400", status)
	}

	var byName logs.Project
	if status := env.call(t, http.MethodGet, "/api/v1/projects/checkout", nil, &byName); status != http.StatusOK {
		t.Fatalf("get by name status = %d", status)
	}
	if byName.ID != project.ID {
		t.Errorf("get by name id = %q, want %q", byName.ID, project.ID)
	}

	var updated logs.Project
	status := env.call(t, http.MethodPut, "/api/v1/projects/"+project.ID+"/tracked-keys",
		trackedKeysRequest{TrackedMetadataKeys: []string{"env", "user"}}, &updated)
	if status != http.StatusOK || len(updated.Config.TrackedMetadataKeys) != 2 {
		t.Errorf("tracked-keys status = %d, project = %+v", status, updated)
	}

	var listed struct {
		Projects []logs.Project `json:"projects"`
	}
	env.call(t, http.MethodGet, "/api/v1/projects", nil, &listed)
	if len(listed.Projects) != 1 {
		t.Errorf("listed = %+v", listed)
	}

	if status := env.call(t, http.MethodDelete, "/api/v1/projects/"+project.ID, nil, nil); status != http.StatusNoContent {
		t.Errorf("delete status = %d", status)
	}
	if status := env.call(t, http.MethodGet, "/api/v1/projects/"+project.ID, nil, &errBody); status != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", status)
	}
	if errBody.Error == "" {
		t.Error("404 without an error message")
	}
}

func TestCreateAndGetLog(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, "api", "user")

	var created logs.Log
	status := env.call(t, http.MethodPost, "/api/v1/projects/api/logs", logs.NewLog{
		ProjectID: "ignored",
		Level:     logs.LevelError,
		Message:   "boom",
		Metadata:  []logs.MetadataEntry{{Key: "user", Value: "u1"}, {Key: "trace", Value: "t1"}},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("status = %d", status)
	}
	if created.ProjectID != project.ID {
		t.Errorf("ProjectID = %q, want path project %q", created.ProjectID, project.ID)
	}
	if created.Timestamp != "2026-02-28T14:00:00.000Z" {
		t.Errorf("Timestamp = %q", created.Timestamp)
	}

	var fetched logs.Log
	if status := env.call(t, http.MethodGet, "/api/v1/logs/"+created.ID, nil, &fetched); status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if fetched.Message != "boom" || len(fetched.Metadata) != 2 {
		t.Errorf("fetched = %+v", fetched)
	}

	if status := env.call(t, http.MethodGet, "/api/v1/logs/nope", nil, nil); status != http.StatusNotFound {
		t.Errorf("missing log status = %d", status)
	}
	if status := env.call(t, http.MethodPost, "/api/v1/projects/api/logs", logs.NewLog{Message: "no level"}, nil); status != http.StatusBadRequest {
		t.Errorf("invalid log status = %d", status)
	}
	if status := env.call(t, http.MethodPost, "/api/v1/projects/missing/logs", logs.NewLog{Level: logs.LevelInfo}, nil); status != http.StatusNotFound {
		t.Errorf("unknown project status = %d", status)
	}
}

func bulkRequest(t *testing.T, env *testEnv, project string, entries []logs.NewLog, compression codec.Compression, digest string) *http.Request {
	t.Helper()
	body, err := codec.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	if digest == "" {
		digest = codec.Digest(body)
	}
	compressed, err := codec.Compress(body, compression)
	if err != nil {
		t.Fatal(err)
	}
	request, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/projects/"+project+"/logs/bulk", bytes.NewReader(compressed))
	if err != nil {
		t.Fatal(err)
	}
	request.Header.Set("Content-Type", logs.ContentTypeCBOR)
	request.Header.Set(logs.DigestHeader, digest)
	if compression != codec.CompressionNone {
		request.Header.Set("Content-Encoding", string(compression))
	}
	return request
}

func TestBulkIngestion(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "api")
	entries := []logs.NewLog{
		{Level: logs.LevelInfo, Message: "one"},
		{Level: logs.LevelWarn, Message: "two"},
	}

	var response struct {
		Logs []logs.Log `json:"logs"`
	}
	if status := env.do(t, bulkRequest(t, env, "api", entries, codec.CompressionZstd, ""), &response); status != http.StatusCreated {
		t.Fatalf("status = %d", status)
	}
	if len(response.Logs) != 2 {
		t.Errorf("created = %+v", response.Logs)
	}

	tampered := bulkRequest(t, env, "api", entries, codec.CompressionLZ4, codec.Digest([]byte("something else")))
	if status := env.do(t, tampered, nil); status != http.StatusBadRequest {
		t.Errorf("digest mismatch status = %d, want 400", status)
	}

	unknownEncoding := bulkRequest(t, env, "api", entries, codec.CompressionNone, "")
	unknownEncoding.Header.Set("Content-Encoding", "brotli")
	if status := env.do(t, unknownEncoding, nil); status != http.StatusUnsupportedMediaType {
		t.Errorf("unknown encoding status = %d, want 415", status)
	}

	jsonBody, _ := json.Marshal(entries)
	jsonRequest, _ := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/projects/api/logs/bulk", bytes.NewReader(jsonBody))
	jsonRequest.Header.Set("Content-Type", "application/json; charset=utf-8")
	if status := env.do(t, jsonRequest, nil); status != http.StatusCreated {
		t.Errorf("JSON bulk status = %d", status)
	}

	var page pageResponse
	env.call(t, http.MethodGet, "/api/v1/projects/api/logs", nil, &page)
	if len(page.Logs) != 4 {
		t.Errorf("stored logs = %d, want 4", len(page.Logs))
	}
}

func TestQueryPaginationOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "api", "env")

	var entries []logs.NewLog
	for i := 0; i < 9; i++ {
		stage := "staging"
		if i%2 == 0 {
			stage = "prod"
		}
		entries = append(entries, logs.NewLog{
			Level:     logs.LevelInfo,
			Message:   "event",
			Timestamp: serverTestClockEpoch.Add(-time.Duration(i/3) * time.Minute).Format(time.RFC3339),
			Metadata:  []logs.MetadataEntry{{Key: "env", Value: stage}},
		})
	}
	if status := env.do(t, bulkRequest(t, env, "api", entries, codec.CompressionNone, ""), nil); status != http.StatusCreated {
		t.Fatalf("bulk status = %d", status)
	}

	seen := map[string]bool{}
	query := url.Values{"page_size": {"2"}, "meta": {"env:prod"}, "sort": {"asc"}}
	var lastTimestamp string
	for pages := 0; pages < 10; pages++ {
		var page pageResponse
		if status := env.call(t, http.MethodGet, "/api/v1/projects/api/logs?"+query.Encode(), nil, &page); status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		for _, entry := range page.Logs {
			if seen[entry.ID] {
				t.Fatalf("log %s served twice", entry.ID)
			}
			if entry.Timestamp < lastTimestamp {
				t.Fatalf("ascending order violated: %s after %s", entry.Timestamp, lastTimestamp)
			}
			lastTimestamp = entry.Timestamp
			seen[entry.ID] = true
		}
		if !page.HasNextPage {
			break
		}
		query.Set("cursor", page.NextCursor)
	}
	if len(seen) != 5 {
		t.Errorf("served %d prod logs, want 5", len(seen))
	}

	var all pageResponse
	env.call(t, http.MethodGet, "/api/v1/projects/all/logs?page_size=100", nil, &all)
	if len(all.Logs) != 9 {
		t.Errorf("all-projects listing = %d, want 9", len(all.Logs))
	}
}

func TestQueryRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "api")

	for _, query := range []string{
		"cursor=not-a-token!",
		"page_size=ten",
		"meta=novalue",
		"sort=sideways",
		"start=yesterday",
	} {
		var body errorResponse
		if status := env.call(t, http.MethodGet, "/api/v1/projects/api/logs?"+query, nil, &body); status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, status)
		}
		if body.Error == "" {
			t.Errorf("%s: empty error message", query)
		}
	}
}

func TestStatsRoutes(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, "api", "env")
	ctx := context.Background()
	if _, err := env.store.CreateBulkLog(ctx, []logs.NewLog{
		{ProjectID: project.ID, Level: logs.LevelError, Message: "a", Timestamp: "2026-02-28T10:00:00Z",
			Metadata: []logs.MetadataEntry{{Key: "env", Value: "prod"}, {Key: "trace", Value: "x"}}},
		{ProjectID: project.ID, Level: logs.LevelInfo, Message: "b", Timestamp: "2026-02-26T10:00:00Z"},
	}); err != nil {
		t.Fatal(err)
	}

	var metrics logs.ProjectMetrics
	if status := env.call(t, http.MethodGet, "/api/v1/projects/api/metrics", nil, &metrics); status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}
	if metrics.TotalLogs != 2 || metrics.TodayLogs != 1 || metrics.LastLog == nil || metrics.LastLog.Message != "a" {
		t.Errorf("metrics = %+v", metrics)
	}

	var history struct {
		Days []logs.DailyCount `json:"days"`
	}
	env.call(t, http.MethodGet, "/api/v1/projects/api/history?days=3", nil, &history)
	if len(history.Days) != 3 || history.Days[0].Count != 1 || history.Days[1].Count != 0 || history.Days[2].Count != 1 {
		t.Errorf("history = %+v", history.Days)
	}
	if status := env.call(t, http.MethodGet, "/api/v1/projects/api/history?days=0", nil, nil); status != http.StatusBadRequest {
		t.Errorf("days=0 status = %d", status)
	}

	var keys struct {
		Keys []string `json:"keys"`
	}
	env.call(t, http.MethodGet, "/api/v1/projects/api/metadata-keys", nil, &keys)
	if strings.Join(keys.Keys, ",") != "env" {
		t.Errorf("tracked keys = %v", keys.Keys)
	}
	env.call(t, http.MethodGet, "/api/v1/projects/all/metadata-keys?scope=all", nil, &keys)
	if strings.Join(keys.Keys, ",") != "env,trace" {
		t.Errorf("all keys = %v", keys.Keys)
	}

	var cleared map[string]int64
	env.call(t, http.MethodDelete, "/api/v1/projects/api/logs", nil, &cleared)
	if cleared["deleted"] != 2 {
		t.Errorf("cleared = %v", cleared)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "api")
	env.call(t, http.MethodPost, "/api/v1/projects/api/logs", logs.NewLog{Level: logs.LevelInfo, Message: "m"}, nil)

	response, err := http.Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()
	body, _ := io.ReadAll(response.Body)
	text := string(body)

	for _, want := range []string{
		`logbook_api_http_requests_total{method="POST",route="/api/v1/projects/{project}/logs",status="201"} 1`,
		`logbook_ingest_logs_total{mode="single"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("/metrics missing %s", want)
		}
	}
}
