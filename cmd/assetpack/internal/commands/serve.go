package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httpmw "github.com/wolfeidau/assetpack/internal/http"
	"github.com/wolfeidau/assetpack/internal/logger"
)

type ServeCmd struct {
	ConfigFlags

	Listen      string        `help:"Address to listen on." default:"127.0.0.1:8080" env:"ASSETPACK_LISTEN"`
	CORSOrigins []string      `help:"Origins allowed to fetch assets cross-origin." env:"ASSETPACK_CORS_ORIGINS"`
	Debounce    time.Duration `help:"How long to wait for file changes to settle before rebuilding." default:"100ms"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, shutdown := globals.setup(ctx)
	defer shutdown()

	p, err := c.pipeline()
	if err != nil {
		return err
	}

	w, err := newRebuilder(log, p, os.Stdout).watcher(c.Debounce, nil)
	if err != nil {
		return err
	}

	handler := httpmw.Chain(p.Handler(),
		httpmw.Trace("assetpack.serve"),
		httpmw.ClientIP(),
		logger.NewRequests(log).Wrap,
		httpmw.CORS(c.CORSOrigins),
		httpmw.NoCache(),
	)
	srv := configureHTTPServer(c.Listen, handler)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", c.Listen).Str("version", globals.Version).Msg("Starting dev server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down dev server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
