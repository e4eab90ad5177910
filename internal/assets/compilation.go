package assets

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpack/internal/config"
)

// Stages order asset processing plugins, lowest first.
const (
	StageAdditional       = -2000
	StageSummarize        = 1000
	StageOptimizeTransfer = 3000
)

// Plugin is anything that takes part in a build.
type Plugin interface {
	Name() string
}

// BuildConfigurer adjusts the esbuild options before bundling. ctx lives as
// long as the build, so work started from esbuild callbacks should derive from it.
type BuildConfigurer interface {
	Plugin
	ConfigureBuild(ctx context.Context, opts *api.BuildOptions) error
}

// AssetProcessor adds, replaces or removes assets after bundling and before
// anything is written.
type AssetProcessor interface {
	Plugin
	Stage() int
	ProcessAssets(ctx context.Context, c *Compilation) error
}

// AssetInfo describes where an asset came from.
type AssetInfo struct {
	// Chunk is the entry that produced the asset, empty for standalone assets
	Chunk string
	// SourceFilename is the module the asset was emitted for, relative to the context
	SourceFilename string
	// Immutable is set when the filename carries a content hash
	Immutable bool
	// SourceMap marks source map files
	SourceMap bool
}

type Asset struct {
	Name   string
	Source []byte
	Info   AssetInfo
}

// Chunk is the output of one entry.
type Chunk struct {
	Name  string
	Hash  string
	Files []string
}

// Scripts returns the chunk's JavaScript files.
func (c *Chunk) Scripts() []string {
	return c.filesWithExt(".js")
}

// Styles returns the chunk's stylesheet files.
func (c *Chunk) Styles() []string {
	return c.filesWithExt(".css")
}

func (c *Chunk) filesWithExt(ext string) []string {
	var out []string
	for _, f := range c.Files {
		if path.Ext(f) == ext {
			out = append(out, f)
		}
	}
	return out
}

// Compilation is the in-memory set of outputs of a build. Asset names are
// slash separated and relative to the output directory.
type Compilation struct {
	BuildID string
	Hash    string
	Config  *config.Config
	Chunks  []*Chunk

	assets   map[string]*Asset
	metafile string
}

func newCompilation(buildID string, cfg *config.Config) *Compilation {
	return &Compilation{
		BuildID: buildID,
		Config:  cfg,
		assets:  map[string]*Asset{},
	}
}

// EmitAsset adds a new asset. Emitting the same name twice is an error.
func (c *Compilation) EmitAsset(name string, source []byte, info AssetInfo) error {
	name, err := cleanAssetName(name)
	if err != nil {
		return err
	}
	if existing, ok := c.assets[name]; ok {
		return fmt.Errorf("%w: %s (from %s and %s)", config.ErrOutputCollision, name, describe(existing.Info), describe(info))
	}
	c.assets[name] = &Asset{Name: name, Source: source, Info: info}
	return nil
}

// UpdateAsset replaces the contents of an existing asset.
func (c *Compilation) UpdateAsset(name string, source []byte) error {
	a, ok := c.assets[name]
	if !ok {
		return fmt.Errorf("asset %s does not exist", name)
	}
	a.Source = source
	return nil
}

// DeleteAsset removes an asset; missing names are ignored.
func (c *Compilation) DeleteAsset(name string) {
	delete(c.assets, name)
}

// Asset returns the named asset.
func (c *Compilation) Asset(name string) (*Asset, bool) {
	a, ok := c.assets[name]
	return a, ok
}

// Assets returns every asset sorted by name.
func (c *Compilation) Assets() []*Asset {
	out := make([]*Asset, 0, len(c.assets))
	for _, a := range c.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Chunk returns the named chunk.
func (c *Compilation) Chunk(name string) (*Chunk, bool) {
	for _, ch := range c.Chunks {
		if ch.Name == name {
			return ch, true
		}
	}
	return nil, false
}

func cleanAssetName(name string) (string, error) {
	name = path.Clean(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimPrefix(name, "/")
	if name == "." || name == "" || name == ".." || strings.HasPrefix(name, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetPath, name)
	}
	return name, nil
}

func describe(info AssetInfo) string {
	switch {
	case info.Chunk != "":
		return "chunk " + info.Chunk
	case info.SourceFilename != "":
		return info.SourceFilename
	}
	return "a plugin"
}
