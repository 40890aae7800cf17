// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type cursorLike struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	value := map[string]string{"b": "2", "a": "1", "c": "3"}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("Marshal produced different bytes for the same map")
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	in := cursorLike{ID: "5f0c", Timestamp: "2026-03-01T10:00:00.000Z"}
	token, err := MarshalToken(in)
	if err != nil {
		t.Fatalf("MarshalToken: %v", err)
	}
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("token %q is not unpadded base64url", token)
	}

	var out cursorLike
	if err := UnmarshalToken(token, &out); err != nil {
		t.Fatalf("UnmarshalToken: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestUnmarshalTokenRejectsGarbage(t *testing.T) {
	var out cursorLike
	for _, token := range []string{"!!!", "AAAA", ""} {
		if err := UnmarshalToken(token, &out); err == nil {
			t.Errorf("UnmarshalToken(%q) succeeded", token)
		}
	}
}

func TestCompressRoundTrip(t *testing.T) {
	body := bytes.Repeat([]byte(`{"level":"info","message":"request served"}`), 200)

	for _, compression := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(compression.String(), func(t *testing.T) {
			compressed, err := Compress(body, compression)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if compression != CompressionNone && len(compressed) >= len(body) {
				t.Errorf("compressed size %d not smaller than input %d", len(compressed), len(body))
			}
			decompressed, err := Decompress(compressed, compression)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(decompressed, body) {
				t.Fatal("round trip mismatch")
			}
		})
	}
}

func TestDecompressCorruptInput(t *testing.T) {
	if _, err := Decompress([]byte("definitely not zstd"), CompressionZstd); err == nil {
		t.Error("zstd accepted corrupt input")
	}
	if _, err := Decompress([]byte("definitely not lz4"), CompressionLZ4); err == nil {
		t.Error("lz4 accepted corrupt input")
	}
}

func TestParseCompression(t *testing.T) {
	cases := map[string]Compression{
		"":      CompressionNone,
		"none":  CompressionNone,
		"ZSTD":  CompressionZstd,
		" lz4 ": CompressionLZ4,
	}
	for input, want := range cases {
		got, err := ParseCompression(input)
		if err != nil {
			t.Errorf("ParseCompression(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseCompression(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression(gzip) succeeded")
	}
}

func TestDigest(t *testing.T) {
	data := []byte("batch body")
	digest := Digest(data)
	if !strings.HasPrefix(digest, "blake3=") || len(digest) != len("blake3=")+64 {
		t.Fatalf("Digest = %q", digest)
	}
	if err := VerifyDigest(data, digest); err != nil {
		t.Errorf("VerifyDigest on matching body: %v", err)
	}
	if err := VerifyDigest([]byte("tampered"), digest); err == nil {
		t.Error("VerifyDigest accepted a tampered body")
	}
	if err := VerifyDigest(data, "sha256=abcd"); err == nil {
		t.Error("VerifyDigest accepted an unknown algorithm")
	}
}
