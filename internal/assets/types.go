package assets

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfeidau/assetpack/internal/config"
	"github.com/wolfeidau/assetpack/internal/naming"
	"github.com/wolfeidau/assetpack/internal/rules"
)

var (
	// ErrBuildFailed indicates esbuild reported errors
	ErrBuildFailed = errors.New("build failed with errors")
	// ErrInvalidAssetPath indicates an asset name that escapes the output directory
	ErrInvalidAssetPath = errors.New("asset path escapes the output directory")
)

// BuildMetadata is the part of esbuild's metafile the pipeline reads.
type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string               `json:"entryPoint"`
	CSSBundle  string               `json:"cssBundle"`
	Imports    []ImportInfo         `json:"imports"`
	Inputs     map[string]InputInfo `json:"inputs"`
	Bytes      int                  `json:"bytes"`
}

type ImportInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

type InputInfo struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// Result summarises a finished build.
type Result struct {
	BuildID   string        `json:"buildId"`
	Hash      string        `json:"hash"`
	Mode      config.Mode   `json:"mode"`
	OutputDir string        `json:"outputPath"`
	Duration  time.Duration `json:"duration"`
	Assets    []AssetStat   `json:"assets"`
	Warnings  []string      `json:"warnings,omitempty"`
	// Metafile is esbuild's raw metafile, for bundle analysers
	Metafile string `json:"-"`
}

type AssetStat struct {
	Name      string   `json:"name"`
	Size      int      `json:"size"`
	Chunks    []string `json:"chunks,omitempty"`
	Immutable bool     `json:"immutable,omitempty"`
}

// TotalSize is the sum of all emitted asset sizes.
func (r *Result) TotalSize() int {
	total := 0
	for _, a := range r.Assets {
		total += a.Size
	}
	return total
}

// Pipeline runs builds for a single validated configuration.
type Pipeline struct {
	config   *config.Config
	plugins  []Plugin
	matchers []*rules.Matcher
	hasher   naming.Hasher

	last        *Result
	compilation *Compilation
	mu          sync.RWMutex
}

// New creates a pipeline for cfg. The configuration must already be validated
// and is not modified.
func New(cfg *config.Config, plugins ...Plugin) (*Pipeline, error) {
	matchers, err := rules.Compile(cfg.Module.Rules)
	if err != nil {
		return nil, err
	}

	hasher, err := naming.NewHasher(cfg.Output.HashFunction, cfg.Output.HashDigest, cfg.Output.HashDigestLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidOutput, err)
	}

	return &Pipeline{
		config:   cfg,
		plugins:  plugins,
		matchers: matchers,
		hasher:   hasher,
	}, nil
}

// Config returns the configuration the pipeline builds.
func (p *Pipeline) Config() *config.Config {
	return p.config
}

// Last returns the result of the most recent successful build, or nil.
func (p *Pipeline) Last() *Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}
