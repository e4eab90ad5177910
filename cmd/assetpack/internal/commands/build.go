package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wolfeidau/assetpack/internal/stats"
)

type BuildCmd struct {
	ConfigFlags

	Stats    string `help:"Print build stats as table, json or yaml." default:"table" enum:"table,json,yaml"`
	Metafile string `help:"Write the bundler metafile to this path for bundle analysers." type:"path"`

	out io.Writer `kong:"-"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log, shutdown := globals.setup(ctx)
	defer shutdown()

	format, err := stats.ParseFormat(c.Stats)
	if err != nil {
		return err
	}

	p, err := c.pipeline()
	if err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Str("config", c.Config).Str("mode", string(p.Config().Mode)).Msg("Starting build")

	res, err := p.Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if c.Metafile != "" {
		if err := os.MkdirAll(filepath.Dir(c.Metafile), 0o755); err != nil {
			return fmt.Errorf("failed to create metafile directory: %w", err)
		}
		if err := os.WriteFile(c.Metafile, []byte(res.Metafile), 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("failed to write metafile: %w", err)
		}
	}

	return stats.Write(writer(c.out), res, format)
}

func writer(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
