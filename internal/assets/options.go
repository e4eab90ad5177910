package assets

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpack/internal/config"
	"github.com/wolfeidau/assetpack/internal/naming"
	"github.com/wolfeidau/assetpack/internal/rules"
)

var esTargets = map[string]api.Target{
	"":       api.DefaultTarget,
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// buildOptions translates the configuration into esbuild options. Entry
// outputs are written to "<outdir>/<entry name>.js" and renamed afterwards.
func (p *Pipeline) buildOptions(ctx context.Context) (api.BuildOptions, error) {
	cfg := p.config

	entryPoints, err := entryPoints(cfg)
	if err != nil {
		return api.BuildOptions{}, err
	}

	target, ok := esTargets[strings.ToLower(cfg.Target)]
	if !ok {
		return api.BuildOptions{}, fmt.Errorf("%w: %q", config.ErrInvalidTarget, cfg.Target)
	}

	production := cfg.Mode == config.ModeProduction

	opts := api.BuildOptions{
		AbsWorkingDir:       cfg.Context,
		EntryPointsAdvanced: entryPoints,
		Bundle:              true,
		Write:               false,
		Metafile:            true,
		Outdir:              cfg.OutputDir(),
		AssetNames:          naming.ToEsbuildAssetNames(cfg.Output.AssetModuleFilename),
		PublicPath:          cond(cfg.Output.PublicPath == "auto", "", cfg.Output.PublicPath),
		Format:              api.FormatIIFE,
		Platform:            api.PlatformBrowser,
		Target:              target,
		External:            slices.Clone(cfg.Externals),
		ResolveExtensions:   slices.Clone(cfg.Resolve.Extensions),
		Alias:               cfg.Resolve.Alias,
		Sourcemap:           sourceMap(cfg.Devtool, cfg.Mode),
		MinifyWhitespace:    production,
		MinifyIdentifiers:   production,
		MinifySyntax:        production,
		TreeShaking:         cond(production, api.TreeShakingTrue, api.TreeShakingDefault),
		LogLevel:            api.LogLevelSilent,
		Define:              map[string]string{},
		Banner:              map[string]string{},
		Footer:              map[string]string{},
		Plugins: []api.Plugin{
			entryPlugin(cfg),
			rules.Plugin(p.matchers),
		},
	}

	if cfg.Mode != config.ModeNone {
		opts.Define["process.env.NODE_ENV"] = strconv.Quote(string(cfg.Mode))
	}

	for _, plugin := range p.plugins {
		bc, ok := plugin.(BuildConfigurer)
		if !ok {
			continue
		}
		if err := bc.ConfigureBuild(ctx, &opts); err != nil {
			return api.BuildOptions{}, fmt.Errorf("plugin %s: %w", plugin.Name(), err)
		}
	}

	return opts, nil
}

// sourceMap maps a devtool value onto esbuild's source map modes. eval
// variants have no esbuild equivalent and are emitted inline.
func sourceMap(devtool string, mode config.Mode) api.SourceMap {
	switch devtool {
	case "":
		return cond(mode == config.ModeDevelopment, api.SourceMapInline, api.SourceMapNone)
	case "source-map", "cheap-module-source-map":
		return api.SourceMapLinked
	case "inline-source-map", "eval", "eval-source-map", "eval-cheap-module-source-map":
		return api.SourceMapInline
	case "hidden-source-map":
		return api.SourceMapExternal
	}
	return api.SourceMapNone
}

func entryPoints(cfg *config.Config) ([]api.EntryPoint, error) {
	out := make([]api.EntryPoint, 0, len(cfg.Entry))
	for _, ep := range cfg.Entry {
		if len(ep.Import) == 1 {
			src, err := cfg.ResolveSource(ep.Import[0])
			if err != nil {
				return nil, fmt.Errorf("entry %s: %w", ep.Name, err)
			}
			out = append(out, api.EntryPoint{InputPath: src, OutputPath: ep.Name})
			continue
		}
		out = append(out, api.EntryPoint{InputPath: entryNamespace + ":" + ep.Name, OutputPath: ep.Name})
	}
	return out, nil
}

// outputRel returns the path of an esbuild output relative to the output directory.
func outputRel(outdir, path string) (string, error) {
	rel, err := filepath.Rel(outdir, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
