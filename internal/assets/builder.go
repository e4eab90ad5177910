package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/naming"
	"github.com/wolfeidau/assetpack/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Build bundles every entry, runs the asset plugins and writes the outputs.
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	buildID := uuid.NewString()

	ctx, span := telemetry.Tracer().Start(ctx, "assets.Build", trace.WithAttributes(
		attribute.String("build.id", buildID),
		attribute.String("build.mode", string(p.config.Mode)),
		attribute.Int("build.entries", len(p.config.Entry)),
	))
	defer span.End()

	metrics := telemetry.GetMetrics()
	metrics.BuildsTotal.Add(ctx, 1)

	comp, warnings, err := p.compile(ctx, buildID)
	if err == nil {
		err = p.emit(ctx, comp)
	}

	elapsed := time.Since(start)
	metrics.BuildDuration.Record(ctx, float64(elapsed.Milliseconds()))

	if err != nil {
		metrics.BuildErrorsTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := &Result{
		BuildID:   buildID,
		Hash:      comp.Hash,
		Mode:      p.config.Mode,
		OutputDir: p.config.OutputDir(),
		Duration:  elapsed,
		Warnings:  warnings,
		Metafile:  comp.metafile,
	}
	for _, a := range comp.Assets() {
		stat := AssetStat{Name: a.Name, Size: len(a.Source), Immutable: a.Info.Immutable}
		if a.Info.Chunk != "" {
			stat.Chunks = []string{a.Info.Chunk}
		}
		result.Assets = append(result.Assets, stat)
	}

	span.SetAttributes(
		attribute.String("build.hash", comp.Hash),
		attribute.Int("build.assets", len(result.Assets)),
	)

	log.Info().
		Str("build_id", buildID).
		Str("hash", comp.Hash).
		Int("assets", len(result.Assets)).
		Dur("duration", elapsed).
		Msg("Build complete")

	p.last = result
	p.compilation = comp
	return result, nil
}

// compile runs esbuild and the asset plugins without touching the output directory.
func (p *Pipeline) compile(ctx context.Context, buildID string) (*Compilation, []string, error) {
	opts, err := p.buildOptions(ctx)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Strs("entries", p.config.Entry.Names()).
		Str("mode", string(p.config.Mode)).
		Str("output", opts.Outdir).
		Msg("Building assets")

	result := api.Build(opts)

	warnings := make([]string, 0, len(result.Warnings))
	for _, msg := range result.Warnings {
		warnings = append(warnings, formatMessage(msg))
		log.Warn().Str("warning", formatMessage(msg)).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", formatMessage(msg)).Msg("Build error")
		}
		return nil, warnings, fmt.Errorf("%w: %d error(s), first: %s", ErrBuildFailed, len(result.Errors), formatMessage(result.Errors[0]))
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, warnings, fmt.Errorf("failed to parse metafile: %w", err)
	}

	comp := newCompilation(buildID, p.config)
	comp.metafile = result.Metafile
	if err := p.collect(comp, opts.Outdir, result.OutputFiles, &metadata); err != nil {
		return nil, warnings, err
	}

	processors := make([]AssetProcessor, 0, len(p.plugins))
	for _, plugin := range p.plugins {
		if ap, ok := plugin.(AssetProcessor); ok {
			processors = append(processors, ap)
		}
	}
	sort.SliceStable(processors, func(i, j int) bool { return processors[i].Stage() < processors[j].Stage() })

	for _, ap := range processors {
		if err := ap.ProcessAssets(ctx, comp); err != nil {
			return nil, warnings, fmt.Errorf("plugin %s: %w", ap.Name(), err)
		}
	}

	return comp, warnings, nil
}

// collect renames entry outputs according to the filename templates and adds
// everything esbuild produced to the compilation.
func (p *Pipeline) collect(comp *Compilation, outdir string, files []api.OutputFile, metadata *BuildMetadata) error {
	cfg := p.config

	outputs := make(map[string][]byte, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := outputRel(outdir, f.Path)
		if err != nil {
			return err
		}
		outputs[rel] = f.Contents
		names = append(names, rel)
	}
	sort.Strings(names)

	fullParts := make([][]byte, 0, len(names)*2)
	for _, name := range names {
		fullParts = append(fullParts, []byte(name), outputs[name])
	}
	comp.Hash = p.hasher.Sum(fullParts...)

	sources := p.sourceFilenames(outdir, metadata)
	consumed := map[string]bool{}

	for _, ep := range cfg.Entry {
		jsRel, cssRel := ep.Name+".js", ep.Name+".css"
		js, hasJS := outputs[jsRel]
		css, hasCSS := outputs[cssRel]

		chunk := &Chunk{Name: ep.Name, Hash: p.hasher.Sum(js, css)}
		data := naming.PathData{Name: ep.Name, ID: ep.Name, ChunkHash: chunk.Hash, FullHash: comp.Hash}

		if hasJS {
			data.Filename, data.ContentHash = jsRel, p.hasher.Sum(js)
			name, err := naming.Render(cfg.EntryFilename(ep), data)
			if err != nil {
				return fmt.Errorf("entry %s: %w", ep.Name, err)
			}
			if err := p.emitEntryFile(comp, outputs, consumed, chunk, jsRel, name, naming.HasContentPlaceholder(cfg.EntryFilename(ep))); err != nil {
				return err
			}
		}

		if hasCSS {
			data.Filename, data.ContentHash = cssRel, p.hasher.Sum(css)
			name, err := naming.Render(cfg.Output.CSSFilename, data)
			if err != nil {
				return fmt.Errorf("entry %s: %w", ep.Name, err)
			}
			if err := p.emitEntryFile(comp, outputs, consumed, chunk, cssRel, name, naming.HasContentPlaceholder(cfg.Output.CSSFilename)); err != nil {
				return err
			}
		}

		if !hasJS && !hasCSS {
			return fmt.Errorf("%w: entry %s produced no output", ErrBuildFailed, ep.Name)
		}
		comp.Chunks = append(comp.Chunks, chunk)
	}

	immutable := naming.HasContentPlaceholder(cfg.Output.AssetModuleFilename)
	for _, name := range names {
		if consumed[name] {
			continue
		}
		info := AssetInfo{
			SourceFilename: sources[name],
			Immutable:      immutable,
			SourceMap:      path.Ext(name) == ".map",
		}
		if err := comp.EmitAsset(name, outputs[name], info); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) emitEntryFile(comp *Compilation, outputs map[string][]byte, consumed map[string]bool, chunk *Chunk, oldName, newName string, immutable bool) error {
	newName, err := cleanAssetName(newName)
	if err != nil {
		return err
	}

	contents := outputs[oldName]
	consumed[oldName] = true

	mapName := oldName + ".map"
	if sm, ok := outputs[mapName]; ok {
		consumed[mapName] = true
		newMap := newName + ".map"

		contents = bytes.ReplaceAll(contents,
			[]byte("sourceMappingURL="+path.Base(mapName)),
			[]byte("sourceMappingURL="+path.Base(newMap)))

		rebased, err := rebaseSourceMap(sm, path.Dir(oldName), path.Dir(newName))
		if err != nil {
			return fmt.Errorf("source map %s: %w", mapName, err)
		}
		if err := comp.EmitAsset(newMap, rebased, AssetInfo{Chunk: chunk.Name, Immutable: immutable, SourceMap: true}); err != nil {
			return err
		}
		chunk.Files = append(chunk.Files, newMap)
	}

	if err := comp.EmitAsset(newName, contents, AssetInfo{Chunk: chunk.Name, Immutable: immutable}); err != nil {
		return err
	}
	chunk.Files = append(chunk.Files, newName)

	log.Debug().Str("chunk", chunk.Name).Str("from", oldName).Str("to", newName).Msg("Renamed entry output")
	return nil
}

// sourceFilenames maps output names to the single module each asset output
// was generated from.
func (p *Pipeline) sourceFilenames(outdir string, metadata *BuildMetadata) map[string]string {
	out := map[string]string{}
	for key, info := range metadata.Outputs {
		if info.EntryPoint != "" || len(info.Inputs) != 1 {
			continue
		}
		rel, err := outputRel(outdir, filepath.Join(p.config.Context, filepath.FromSlash(key)))
		if err != nil {
			continue
		}
		for input := range info.Inputs {
			out[rel] = input
		}
	}
	return out
}

// rebaseSourceMap rewrites the relative "sources" of a map moved from oldDir to newDir.
func rebaseSourceMap(data []byte, oldDir, newDir string) ([]byte, error) {
	if oldDir == newDir {
		return data, nil
	}

	var sm map[string]json.RawMessage
	if err := json.Unmarshal(data, &sm); err != nil {
		return nil, err
	}

	var sources []string
	if raw, ok := sm["sources"]; ok {
		if err := json.Unmarshal(raw, &sources); err != nil {
			return nil, err
		}
	}

	for i, src := range sources {
		if path.IsAbs(src) || hasScheme(src) {
			continue
		}
		rel, err := filepath.Rel(filepath.FromSlash(newDir), filepath.FromSlash(path.Join(oldDir, src)))
		if err != nil {
			return nil, err
		}
		sources[i] = filepath.ToSlash(rel)
	}

	raw, err := json.Marshal(sources)
	if err != nil {
		return nil, err
	}
	sm["sources"] = raw
	return json.Marshal(sm)
}

func hasScheme(s string) bool {
	for i, c := range s {
		switch {
		case c == ':':
			return i > 0
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return false
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}
