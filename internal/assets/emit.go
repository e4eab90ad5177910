package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/telemetry"
)

// emit writes the compilation to the output directory, removing previous
// contents first when output.clean is set.
func (p *Pipeline) emit(ctx context.Context, comp *Compilation) error {
	outdir := p.config.OutputDir()

	if p.config.Output.Clean {
		if err := cleanDir(outdir); err != nil {
			return fmt.Errorf("failed to clean output directory: %w", err)
		}
	}

	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	metrics := telemetry.GetMetrics()

	for _, a := range comp.Assets() {
		target := filepath.Join(outdir, filepath.FromSlash(a.Name))
		if !within(outdir, target) {
			return fmt.Errorf("%w: %s", ErrInvalidAssetPath, a.Name)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, a.Source, 0o644); err != nil { //nolint:gosec // build outputs are meant to be world readable
			return err
		}

		metrics.AssetsEmitted.Add(ctx, 1)
		metrics.BytesEmitted.Add(ctx, int64(len(a.Source)))

		log.Debug().Str("file", a.Name).Int("size", len(a.Source)).Msg("Wrote asset")
	}
	return nil
}

// cleanDir removes everything inside dir, keeping dir itself.
func cleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	log.Debug().Str("dir", dir).Int("removed", len(entries)).Msg("Cleaned output directory")
	return nil
}

func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
