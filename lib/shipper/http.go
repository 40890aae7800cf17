// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bureau-foundation/logbook/lib/codec"
	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

const defaultSendLimit = 10 * time.Second

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string

	// Client defaults to an http.Client with a 10 second timeout.
	Client *http.Client

	// Compression applies to bulk bodies. The zero value sends them
	// uncompressed.
	Compression codec.Compression

	// UserAgent, when set, is sent on every request.
	UserAgent string
}

// HTTPTransport delivers entries to a logbook server's REST API.
type HTTPTransport struct {
	baseURL     string
	client      *http.Client
	compression codec.Compression
	userAgent   string
}

// NewHTTPTransport validates cfg and returns a transport.
func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("shipper: base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("shipper: base URL %q must be http or https", cfg.BaseURL)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultSendLimit}
	}
	return &HTTPTransport{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      client,
		compression: cfg.Compression,
		userAgent:   cfg.UserAgent,
	}, nil
}

// Send posts one entry as JSON.
func (t *HTTPTransport) Send(ctx context.Context, entry logs.NewLog) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("shipper: encoding log: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.logsURL(entry.ProjectID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("shipper: building request: %w", err)
	}
	request.Header.Set("Content-Type", logs.ContentTypeJSON)
	return t.do(request)
}

// SendBulk posts entries as CBOR arrays, one request per project in
// order of first appearance. It stops at the first failed request.
func (t *HTTPTransport) SendBulk(ctx context.Context, entries []logs.NewLog) error {
	for _, group := range groupByProject(entries) {
		if err := t.sendGroup(ctx, group); err != nil {
			return err
		}
	}
	return nil
}

func (t *HTTPTransport) sendGroup(ctx context.Context, group []logs.NewLog) error {
	body, err := codec.Marshal(group)
	if err != nil {
		return fmt.Errorf("shipper: encoding batch: %w", err)
	}
	digest := codec.Digest(body)
	compressed, err := codec.Compress(body, t.compression)
	if err != nil {
		return fmt.Errorf("shipper: compressing batch: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.logsURL(group[0].ProjectID)+"/bulk", bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("shipper: building request: %w", err)
	}
	request.Header.Set("Content-Type", logs.ContentTypeCBOR)
	request.Header.Set(logs.DigestHeader, digest)
	if t.compression != codec.CompressionNone {
		request.Header.Set("Content-Encoding", string(t.compression))
	}
	return t.do(request)
}

func (t *HTTPTransport) do(request *http.Request) error {
	if t.userAgent != "" {
		request.Header.Set("User-Agent", t.userAgent)
	}
	response, err := t.client.Do(request)
	if err != nil {
		return fmt.Errorf("shipper: %s %s: %w", request.Method, request.URL.Path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("shipper: %s %s: %s: %s",
			request.Method, request.URL.Path, response.Status, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func (t *HTTPTransport) logsURL(projectID string) string {
	return t.baseURL + logs.APIPrefix + "/projects/" + url.PathEscape(projectID) + "/logs"
}

func groupByProject(entries []logs.NewLog) [][]logs.NewLog {
	index := make(map[string]int)
	var groups [][]logs.NewLog
	for _, entry := range entries {
		i, ok := index[entry.ProjectID]
		if !ok {
			i = len(groups)
			index[entry.ProjectID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], entry)
	}
	return groups
}
