package main

import (
	"context"
	"time"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/assetpack/cmd/assetpack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug          bool          `help:"Enable debug mode."`
		Tracing        bool          `help:"Export traces and metrics over OTLP." env:"ASSETPACK_TRACING"`
		OTLPEndpoint   string        `help:"OTLP gRPC endpoint (host:port), defaults to OTEL_EXPORTER_OTLP_ENDPOINT." name:"otlp-endpoint"`
		OTLPInsecure   bool          `help:"Disable TLS when talking to the OTLP endpoint." name:"otlp-insecure" env:"ASSETPACK_OTLP_INSECURE"`
		SampleRatio    float64       `help:"Fraction of builds to trace." default:"1"`
		MetricInterval time.Duration `help:"How often metrics are exported while watching or serving." default:"10s"`
		LogFile        string        `help:"Also write JSON logs to this file, rotated by size." env:"ASSETPACK_LOG_FILE"`
		Version        kong.VersionFlag

		Build    commands.BuildCmd    `cmd:"" help:"Bundle every entry point once."`
		Watch    commands.WatchCmd    `cmd:"" help:"Rebuild whenever a file under the context changes."`
		Serve    commands.ServeCmd    `cmd:"" help:"Serve the bundle from memory and rebuild on change."`
		Validate commands.ValidateCmd `cmd:"" help:"Check a configuration file without building."`
		Inspect  commands.InspectCmd  `cmd:"" help:"Print the configuration with defaults applied."`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("assetpack"),
		kong.Description("Bundle JavaScript, CSS and static assets from a declarative configuration."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(globals())
	cmd.FatalIfErrorf(err)
}

func globals() *commands.Globals {
	return &commands.Globals{
		Debug:          cli.Debug,
		Tracing:        cli.Tracing,
		OTLPEndpoint:   cli.OTLPEndpoint,
		OTLPInsecure:   cli.OTLPInsecure,
		SampleRatio:    cli.SampleRatio,
		MetricInterval: cli.MetricInterval,
		LogFile:        cli.LogFile,
		Version:        version,
	}
}
