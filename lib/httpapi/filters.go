// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bureau-foundation/logbook/lib/codec"
	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// parseLogFilters reads the listing query parameters:
//
//	level=warn&level=error  (or level=warn,error)
//	search=timeout
//	start=2026-02-01  end=2026-02-28T12:00:00Z
//	meta=env:prod&meta=user:u-17
//	cursor=<token>  page_size=100  sort=asc
//
// The project comes from the path, not the query.
func parseLogFilters(query url.Values) (logs.LogFilters, error) {
	filters := logs.LogFilters{
		Search:    query.Get("search"),
		StartDate: query.Get("start"),
		EndDate:   query.Get("end"),
		Sort:      logs.SortDirection(query.Get("sort")),
	}

	for _, value := range query["level"] {
		for _, level := range strings.Split(value, ",") {
			if level = strings.TrimSpace(level); level != "" {
				filters.Levels = append(filters.Levels, logs.Level(level))
			}
		}
	}

	for _, value := range query["meta"] {
		key, metaValue, found := strings.Cut(value, ":")
		if !found || key == "" {
			return logs.LogFilters{}, invalid(fmt.Errorf("meta filter %q must be key:value", value))
		}
		filters.Metadata = append(filters.Metadata, logs.MetadataEntry{Key: key, Value: metaValue})
	}

	if raw := query.Get("page_size"); raw != "" {
		pageSize, err := strconv.Atoi(raw)
		if err != nil {
			return logs.LogFilters{}, invalid(fmt.Errorf("page_size %q is not an integer", raw))
		}
		filters.PageSize = pageSize
	}

	if token := query.Get("cursor"); token != "" {
		cursor, err := decodeCursor(token)
		if err != nil {
			return logs.LogFilters{}, err
		}
		filters.Cursor = &cursor
	}

	return filters, nil
}

func encodeCursor(cursor logs.Cursor) (string, error) {
	return codec.MarshalToken(cursor)
}

func decodeCursor(token string) (logs.Cursor, error) {
	var cursor logs.Cursor
	if err := codec.UnmarshalToken(token, &cursor); err != nil {
		return logs.Cursor{}, invalid(fmt.Errorf("cursor is not a valid token"))
	}
	if cursor.ID == "" || cursor.Timestamp == "" {
		return logs.Cursor{}, invalid(fmt.Errorf("cursor is incomplete"))
	}
	return cursor, nil
}
