package objstore

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// compressor wraps a reusable zstd encoder/decoder pair at a fixed level.
// zstd.Encoder/Decoder are safe for concurrent use once constructed, so one
// instance is shared across all Store operations (grounded on the
// reference lineage's pattern of holding one long-lived client/connection
// per store rather than allocating per call).
type compressor struct {
	level   zstd.EncoderLevel
	encOnce sync.Once
	enc     *zstd.Encoder
	decOnce sync.Once
	dec     *zstd.Decoder
}

// CompressionLevel maps storage.compression_level (spec.md §6.4) onto a
// zstd.EncoderLevel. 0 disables compression.
type CompressionLevel int

const (
	CompressionNone CompressionLevel = 0
	CompressionFast CompressionLevel = 1
	CompressionDefault CompressionLevel = 3
	CompressionBetter CompressionLevel = 7
	CompressionBest CompressionLevel = 11
)

func newCompressor(level CompressionLevel) (*compressor, error) {
	var zl zstd.EncoderLevel
	switch {
	case level <= 0:
		return nil, nil // compression disabled
	case level <= 2:
		zl = zstd.SpeedFastest
	case level <= 5:
		zl = zstd.SpeedDefault
	case level <= 9:
		zl = zstd.SpeedBetterCompression
	default:
		zl = zstd.SpeedBestCompression
	}
	return &compressor{level: zl}, nil
}

func (c *compressor) encoder() (*zstd.Encoder, error) {
	var err error
	c.encOnce.Do(func() {
		c.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
	})
	if err != nil {
		return nil, err
	}
	return c.enc, nil
}

func (c *compressor) decoder() (*zstd.Decoder, error) {
	var err error
	c.decOnce.Do(func() {
		c.dec, err = zstd.NewReader(nil)
	})
	if err != nil {
		return nil, err
	}
	return c.dec, nil
}

// compress returns the zstd frame for data, or data unchanged if
// compression is disabled.
func (c *compressor) compress(data []byte) ([]byte, error) {
	if c == nil {
		return data, nil
	}
	enc, err := c.encoder()
	if err != nil {
		return nil, fmt.Errorf("objstore: zstd encoder: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// decompress reverses compress. When c is nil, data is returned unchanged.
func (c *compressor) decompress(data []byte) ([]byte, error) {
	if c == nil {
		return data, nil
	}
	dec, err := c.decoder()
	if err != nil {
		return nil, fmt.Errorf("objstore: zstd decoder: %w", err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("objstore: zstd decode: %w", err)
	}
	return out, nil
}
