// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/logbook/lib/schema/logs"
)

// maxLineBytes bounds a single input line. Longer lines fail the scan.
const maxLineBytes = 1 << 20

// entryLogger is the part of shipper.Logger the pipe drives.
type entryLogger interface {
	Log(level logs.Level, message string, args ...any)
}

// lineParser turns one input line into a log call.
type lineParser struct {
	// defaultLevel applies to plain lines and to JSON lines whose
	// level is missing or unrecognized.
	defaultLevel logs.Level

	// structured enables JSON object parsing.
	structured bool

	// static is appended to every entry's arguments.
	static []any

	// keepANSI disables stripping of terminal escape sequences.
	keepANSI bool
}

// messageKeys and levelKeys are checked in order. timeKeys are dropped
// because entries are stamped when they are read.
var (
	messageKeys = []string{"msg", "message"}
	levelKeys   = []string{"level", "severity", "lvl"}
	timeKeys    = []string{"time", "timestamp", "ts"}
)

func (p lineParser) parse(line string) (logs.Level, string, []any) {
	if !p.keepANSI {
		line = ansi.Strip(line)
	}
	if p.structured {
		if level, message, args, ok := p.parseJSON(line); ok {
			return level, message, append(args, p.static...)
		}
	}
	return p.defaultLevel, line, p.static
}

func (p lineParser) parseJSON(line string) (logs.Level, string, []any, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return "", "", nil, false
	}
	decoder := json.NewDecoder(strings.NewReader(trimmed))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		return "", "", nil, false
	}

	message, ok := takeString(fields, messageKeys)
	if !ok {
		// Without a message field the whole object is the message.
		message = trimmed
	}
	level := p.defaultLevel
	if raw, ok := takeString(fields, levelKeys); ok {
		if parsed, ok := parseLevel(raw); ok {
			level = parsed
		}
	}
	for _, key := range timeKeys {
		delete(fields, key)
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, 2*len(keys))
	for _, key := range keys {
		args = append(args, key, fieldText(fields[key]))
	}
	return level, message, args, true
}

// takeString removes and returns the first key present with a string value.
func takeString(fields map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if value, ok := fields[key].(string); ok {
			delete(fields, key)
			return value, true
		}
	}
	return "", false
}

func fieldText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return "null"
	case bool:
		return fmt.Sprint(v)
	default:
		var buffer bytes.Buffer
		encoder := json.NewEncoder(&buffer)
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(v); err != nil {
			return fmt.Sprint(v)
		}
		return strings.TrimSuffix(buffer.String(), "\n")
	}
}

// parseLevel maps common level spellings onto the four shipper levels.
func parseLevel(name string) (logs.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return logs.LevelDebug, true
	case "info", "notice":
		return logs.LevelInfo, true
	case "warn", "warning":
		return logs.LevelWarn, true
	case "error", "err", "fatal", "panic", "critical":
		return logs.LevelError, true
	default:
		return "", false
	}
}

// parseStatic converts key=value flags into logger arguments.
func parseStatic(pairs []string) ([]any, error) {
	args := make([]any, 0, 2*len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--meta %q: want key=value", pair)
		}
		args = append(args, key, value)
	}
	return args, nil
}

// pump reads lines from input until EOF, logging each non-empty line.
// When tee is non-nil every line is copied to it unchanged. It returns
// the number of lines logged.
func pump(input io.Reader, tee io.Writer, logger entryLogger, parser lineParser) (int, error) {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	count := 0
	for scanner.Scan() {
		line := scanner.Text()
		if tee != nil {
			if _, err := fmt.Fprintln(tee, line); err != nil {
				return count, fmt.Errorf("tee: %w", err)
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		level, message, args := parser.parse(line)
		logger.Log(level, message, args...)
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("reading input: %w", err)
	}
	return count, nil
}
