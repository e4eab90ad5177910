package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/assets"
	"github.com/wolfeidau/assetpack/internal/config"
	"github.com/wolfeidau/assetpack/internal/logger"
	"github.com/wolfeidau/assetpack/internal/plugins"
	"github.com/wolfeidau/assetpack/internal/telemetry"
)

type Globals struct {
	Debug          bool
	Tracing        bool
	OTLPEndpoint   string
	OTLPInsecure   bool
	SampleRatio    float64
	MetricInterval time.Duration
	LogFile        string
	Version        string
}

// setup configures the process logger and, when tracing is enabled, the
// OTLP exporters. The returned func flushes telemetry and must be called on exit.
func (g *Globals) setup(ctx context.Context) (zerolog.Logger, func()) {
	log := logger.Setup(g.Debug, logger.FileOptions{
		Path:       g.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	})
	zlog.Logger = log

	if !g.Tracing {
		return log, func() {}
	}

	shutdown, err := telemetry.InitTelemetry(ctx, g.telemetryOptions())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialise telemetry, continuing without it")
		return log, func() {}
	}
	return log, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

func (g *Globals) telemetryOptions() telemetry.Options {
	return telemetry.Options{
		ServiceName:    "assetpack",
		Version:        g.Version,
		Endpoint:       g.OTLPEndpoint,
		Insecure:       g.OTLPInsecure,
		SampleRatio:    g.SampleRatio,
		MetricInterval: g.MetricInterval,
	}
}

// ConfigFlags locate and override the configuration file.
type ConfigFlags struct {
	Config     string `help:"Path to the configuration file (.yaml, .yml or .json)." short:"c" default:"assetpack.yaml" env:"ASSETPACK_CONFIG" type:"path"`
	Mode       string `help:"Override the configured mode (development, production or none)." env:"ASSETPACK_MODE"`
	OutputPath string `help:"Override output.path." name:"output-path" type:"path"`
}

// load reads, overrides and validates the configuration.
func (f *ConfigFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.Config)
	if err != nil {
		return nil, err
	}
	if f.Mode != "" {
		cfg.Mode = config.Mode(f.Mode)
	}
	if f.OutputPath != "" {
		cfg.Output.Path = f.OutputPath
	}

	if err := cfg.Validate(plugins.DefaultRegistry()); err != nil {
		return nil, fmt.Errorf("invalid configuration %s:\n%w", f.Config, err)
	}
	return cfg, nil
}

// pipeline loads the configuration and instantiates its plugins.
func (f *ConfigFlags) pipeline() (*assets.Pipeline, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}

	resolved, err := plugins.DefaultRegistry().Resolve(cfg)
	if err != nil {
		return nil, err
	}

	p, err := assets.New(cfg, resolved...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return p, nil
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
