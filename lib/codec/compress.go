// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Compression names a body compression algorithm. The string values
// double as HTTP Content-Encoding tokens.
type Compression string

const (
	// CompressionNone sends bodies as-is.
	CompressionNone Compression = ""

	// CompressionZstd is the shipper default. Log batches are
	// repetitive text and compress well.
	CompressionZstd Compression = "zstd"

	// CompressionLZ4 trades ratio for lower CPU cost (LZ4 frame format).
	CompressionLZ4 Compression = "lz4"
)

// ParseCompression accepts "", "none", "zstd", or "lz4".
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "identity":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return "", fmt.Errorf("codec: unknown compression %q", name)
	}
}

// String returns the Content-Encoding token, or "none".
func (c Compression) String() string {
	if c == CompressionNone {
		return "none"
	}
	return string(c)
}

// maxDecompressedSize bounds Decompress output so a small hostile body
// cannot expand without limit.
const maxDecompressedSize = 64 << 20

// The zstd encoder and decoder are safe for concurrent EncodeAll and
// DecodeAll calls and expensive to construct, so one of each is shared.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecompressedSize))
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress compresses data with the given algorithm. CompressionNone
// returns data unchanged.
func Compress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil

	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil

	case CompressionLZ4:
		var buffer bytes.Buffer
		writer := lz4.NewWriter(&buffer)
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("codec: lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("codec: lz4 compress: %w", err)
		}
		return buffer.Bytes(), nil

	default:
		return nil, fmt.Errorf("codec: unsupported compression %q", string(compression))
	}
}

// Decompress reverses Compress.
func Decompress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil

	case CompressionZstd:
		decoded, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("codec: zstd decompress: %w", err)
		}
		return decoded, nil

	case CompressionLZ4:
		reader := io.LimitReader(lz4.NewReader(bytes.NewReader(data)), maxDecompressedSize+1)
		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("codec: lz4 decompress: %w", err)
		}
		if len(decoded) > maxDecompressedSize {
			return nil, fmt.Errorf("codec: lz4 body exceeds %d bytes", maxDecompressedSize)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("codec: unsupported compression %q", string(compression))
	}
}

// digestPrefix tags the algorithm in digest header values.
const digestPrefix = "blake3="

// Digest returns "blake3=<hex>" for data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return digestPrefix + hex.EncodeToString(sum[:])
}

// VerifyDigest checks data against a value produced by Digest.
func VerifyDigest(data []byte, digest string) error {
	if !strings.HasPrefix(digest, digestPrefix) {
		return fmt.Errorf("codec: unsupported digest %q", digest)
	}
	if got := Digest(data); got != digest {
		return fmt.Errorf("codec: digest mismatch: body hashes to %s", got)
	}
	return nil
}
