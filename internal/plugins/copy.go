package plugins

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/assets"
	"github.com/wolfeidau/assetpack/internal/options"
)

type CopyPattern struct {
	// From is a file or directory relative to the context
	From string `yaml:"from"`
	// To is the destination directory (or file name when From is a file) under the output path
	To string `yaml:"to"`
	// Glob filters the files copied from a directory, matched against their path below From
	Glob string `yaml:"glob"`
	// Force overwrites assets emitted earlier in the build
	Force bool `yaml:"force"`
}

type CopyOptions struct {
	Patterns []CopyPattern `yaml:"patterns"`
}

// Copy adds files from the source tree to the output unchanged.
type Copy struct {
	patterns []CopyPattern
	globs    []glob.Glob
}

func newCopy(raw map[string]any) (assets.Plugin, error) {
	opts, err := decode[CopyOptions](raw)
	if err != nil {
		return nil, err
	}
	if len(opts.Patterns) == 0 {
		return nil, fmt.Errorf("%w: patterns must not be empty", options.ErrInvalidOption)
	}

	c := &Copy{patterns: opts.Patterns, globs: make([]glob.Glob, len(opts.Patterns))}
	for i, p := range opts.Patterns {
		if p.From == "" {
			return nil, fmt.Errorf("%w: patterns[%d].from is required", options.ErrInvalidOption, i)
		}
		if p.Glob == "" {
			continue
		}
		if c.globs[i], err = glob.Compile(p.Glob, '/'); err != nil {
			return nil, fmt.Errorf("%w: patterns[%d].glob: %v", options.ErrInvalidOption, i, err)
		}
	}
	return c, nil
}

func (c *Copy) Name() string { return "copy" }

func (c *Copy) Stage() int { return assets.StageAdditional }

func (c *Copy) ProcessAssets(_ context.Context, comp *assets.Compilation) error {
	for i, p := range c.patterns {
		from := p.From
		if !filepath.IsAbs(from) {
			from = filepath.Join(comp.Config.Context, from)
		}

		st, err := os.Stat(from)
		if err != nil {
			return fmt.Errorf("patterns[%d]: %w", i, err)
		}

		if !st.IsDir() {
			to := p.To
			if to == "" || hasTrailingSlash(to) {
				to = path.Join(to, filepath.Base(from))
			}
			if err := c.copyFile(comp, from, to, p.Force); err != nil {
				return err
			}
			continue
		}

		outdir := comp.Config.OutputDir()
		err = filepath.WalkDir(from, func(file string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if file == outdir {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(from, file)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if c.globs[i] != nil && !c.globs[i].Match(rel) {
				return nil
			}
			return c.copyFile(comp, file, path.Join(p.To, rel), p.Force)
		})
		if err != nil {
			return fmt.Errorf("patterns[%d]: %w", i, err)
		}
	}
	return nil
}

func (c *Copy) copyFile(comp *assets.Compilation, src, name string, force bool) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	name = assetName(name)
	if _, exists := comp.Asset(name); exists {
		if !force {
			log.Debug().Str("file", name).Msg("Skipping copy, asset already emitted")
			return nil
		}
		return comp.UpdateAsset(name, data)
	}

	rel, err := filepath.Rel(comp.Config.Context, src)
	if err != nil {
		rel = src
	}
	return comp.EmitAsset(name, data, assets.AssetInfo{SourceFilename: filepath.ToSlash(rel)})
}

// assetName puts a destination in the form assets are keyed by, so "/static/a.svg"
// and "static//a.svg" both find an asset emitted as "static/a.svg".
func assetName(to string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(to, "\\", "/")), "/")
}

func hasTrailingSlash(s string) bool {
	return s != "" && s[len(s)-1] == '/'
}
