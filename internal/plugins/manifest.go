package plugins

import (
	"context"
	"encoding/json"
	"path"
	"strings"

	"github.com/wolfeidau/assetpack/internal/assets"
)

type ManifestOptions struct {
	FileName   string `yaml:"fileName"`
	PublicPath string `yaml:"publicPath"`
}

// Manifest emits a JSON object mapping logical names ("index.js", "icon.png")
// to the emitted file names.
type Manifest struct {
	opts ManifestOptions
}

func newManifest(raw map[string]any) (assets.Plugin, error) {
	opts, err := decode[ManifestOptions](raw)
	if err != nil {
		return nil, err
	}
	if opts.FileName == "" {
		opts.FileName = "manifest.json"
	}
	return &Manifest{opts: *opts}, nil
}

func (m *Manifest) Name() string { return "manifest" }

func (m *Manifest) Stage() int { return assets.StageSummarize }

func (m *Manifest) ProcessAssets(_ context.Context, c *assets.Compilation) error {
	publicPath := m.opts.PublicPath
	if publicPath == "" && c.Config.Output.PublicPath != "auto" {
		publicPath = c.Config.Output.PublicPath
	}

	manifest := map[string]string{}
	for _, ch := range c.Chunks {
		for _, f := range ch.Files {
			manifest[ch.Name+logicalExt(f)] = publicPath + f
		}
	}
	for _, a := range c.Assets() {
		if a.Info.Chunk != "" || a.Info.SourceFilename == "" {
			continue
		}
		manifest[a.Info.SourceFilename] = publicPath + a.Name
	}

	// encoding/json sorts map keys, which keeps the file stable between builds
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return c.EmitAsset(m.opts.FileName, append(data, '\n'), assets.AssetInfo{})
}

// logicalExt is the extension of f including a trailing ".map".
func logicalExt(f string) string {
	if strings.HasSuffix(f, ".map") {
		return path.Ext(strings.TrimSuffix(f, ".map")) + ".map"
	}
	return path.Ext(f)
}
