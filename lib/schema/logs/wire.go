// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logs

// HTTP wire conventions shared by lib/shipper and lib/httpapi.
const (
	// DigestHeader carries "blake3=<hex>" over the uncompressed bulk
	// body. Optional on requests; verified when present.
	DigestHeader = "X-Logbook-Digest"

	ContentTypeCBOR = "application/cbor"
	ContentTypeJSON = "application/json"

	// APIPrefix is the root of the versioned REST API.
	APIPrefix = "/api/v1"
)
