package plugins

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/assets"
	"github.com/wolfeidau/assetpack/internal/config"
	"github.com/wolfeidau/assetpack/internal/options"
)

const (
	AlgorithmGzip = "gzip"
	AlgorithmZstd = "zstd"
)

type CompressionOptions struct {
	Algorithm string `yaml:"algorithm"`
	// Test selects assets by name; defaults to scripts, styles, html, svg and json
	Test                 config.Pattern `yaml:"test"`
	Threshold            int            `yaml:"threshold"`
	MinRatio             float64        `yaml:"minRatio"`
	DeleteOriginalAssets bool           `yaml:"deleteOriginalAssets"`
}

// Compression emits precompressed copies of text assets next to the originals.
type Compression struct {
	opts CompressionOptions
	test *regexp.Regexp
	ext  string
}

func newCompression(raw map[string]any) (assets.Plugin, error) {
	opts, err := decode[CompressionOptions](raw)
	if err != nil {
		return nil, err
	}

	c := &Compression{opts: *opts}
	switch opts.Algorithm {
	case "", AlgorithmGzip:
		c.opts.Algorithm, c.ext = AlgorithmGzip, ".gz"
	case AlgorithmZstd:
		c.ext = ".zst"
	default:
		return nil, fmt.Errorf("%w: algorithm must be gzip or zstd, got %q", options.ErrInvalidOption, opts.Algorithm)
	}

	if opts.Test.IsZero() {
		c.opts.Test = `\.(js|css|html|svg|json|map)$`
	}
	if c.test, err = c.opts.Test.Compile(); err != nil {
		return nil, fmt.Errorf("%w: test: %w", options.ErrInvalidOption, err)
	}

	if opts.MinRatio <= 0 {
		c.opts.MinRatio = 0.8
	}
	return c, nil
}

func (c *Compression) Name() string { return "compression" }

func (c *Compression) Stage() int { return assets.StageOptimizeTransfer }

func (c *Compression) ProcessAssets(_ context.Context, comp *assets.Compilation) error {
	for _, a := range comp.Assets() {
		if !c.test.MatchString(a.Name) || len(a.Source) < c.opts.Threshold || len(a.Source) == 0 {
			continue
		}

		compressed, err := c.compress(a.Source)
		if err != nil {
			return fmt.Errorf("failed to compress %s: %w", a.Name, err)
		}

		ratio := float64(len(compressed)) / float64(len(a.Source))
		if ratio > c.opts.MinRatio {
			log.Debug().Str("file", a.Name).Float64("ratio", ratio).Msg("Skipping compression, ratio too high")
			continue
		}

		if err := comp.EmitAsset(a.Name+c.ext, compressed, assets.AssetInfo{
			Chunk:          a.Info.Chunk,
			SourceFilename: a.Info.SourceFilename,
			Immutable:      a.Info.Immutable,
		}); err != nil {
			return err
		}

		if c.opts.DeleteOriginalAssets {
			comp.DeleteAsset(a.Name)
		}
	}
	return nil
}

func (c *Compression) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	if c.opts.Algorithm == AlgorithmZstd {
		enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return nil, err
		}
		if _, err := enc.Write(data); err != nil {
			_ = enc.Close()
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(data); err != nil {
		_ = gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
