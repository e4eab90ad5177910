package commands

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpack/internal/assets"
	"github.com/wolfeidau/assetpack/internal/stats"
	"github.com/wolfeidau/assetpack/internal/telemetry"
	"github.com/wolfeidau/assetpack/internal/watch"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type WatchCmd struct {
	ConfigFlags

	Debounce time.Duration `help:"How long to wait for file changes to settle before rebuilding." default:"100ms"`
	Ignore   []string      `help:"Extra directories, relative to the context, that never trigger a rebuild."`

	out io.Writer `kong:"-"`
}

func (c *WatchCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, shutdown := globals.setup(ctx)
	defer shutdown()

	p, err := c.pipeline()
	if err != nil {
		return err
	}

	w, err := newRebuilder(log, p, writer(c.out)).watcher(c.Debounce, c.Ignore)
	if err != nil {
		return err
	}

	log.Info().Str("context", p.Config().Context).Msg("Watching for changes")
	return w.Run(ctx)
}

// rebuilder runs a build for the initial state and for each batch of changes.
// Failed builds are reported and the previous output is left in place.
type rebuilder struct {
	log zerolog.Logger
	p   *assets.Pipeline
	out io.Writer
}

func newRebuilder(log zerolog.Logger, p *assets.Pipeline, out io.Writer) *rebuilder {
	return &rebuilder{log: log, p: p, out: out}
}

func (r *rebuilder) watcher(debounce time.Duration, ignore []string) (*watch.Watcher, error) {
	cfg := r.p.Config()

	w, err := watch.New(cfg.Context, watch.Options{
		Ignore:   append([]string{cfg.OutputDir()}, ignore...),
		Debounce: debounce,
	}, r.onChange)
	if err != nil {
		return nil, err
	}

	r.build(context.Background())
	return w, nil
}

func (r *rebuilder) onChange(ctx context.Context, changed []string) {
	r.log.Info().Strs("files", changed).Msg("Change detected, rebuilding")
	telemetry.GetMetrics().RebuildsTriggered.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("files", len(changed))))
	r.build(ctx)
}

func (r *rebuilder) build(ctx context.Context) {
	res, err := r.p.Build(ctx)
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		r.log.Error().Err(err).Msg("Build failed")
		return
	}
	if err := stats.Write(r.out, res, stats.FormatTable); err != nil {
		r.log.Error().Err(err).Msg("Failed to write stats")
	}
}
