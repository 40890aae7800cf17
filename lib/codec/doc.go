// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds logbook's binary wire encoding.
//
// JSON is used for single-log submissions and every query response.
// CBOR is used where volume matters: bulk log uploads from the shipper
// and opaque pagination cursors. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2), so the same value always produces the same
// bytes, which keeps cursor tokens and body digests stable.
//
// Bulk bodies may additionally be compressed ([Compress],
// [Decompress]) and carry a BLAKE3 digest of the uncompressed bytes
// ([Digest], [VerifyDigest]) so the server can reject corrupted
// uploads before decoding.
//
// Types shipped in both JSON and CBOR carry only `json` struct tags;
// fxamacker/cbor falls back to them when no `cbor` tag is present.
package codec
