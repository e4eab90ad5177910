package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpack/internal/config"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, contents := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(contents), 0o600))
	}
}

func gettingStarted(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/index.js":  `import printMe from "./print.js"; import "./style.css"; import icon from "./icon.png"; printMe(); console.log(icon, process.env.NODE_ENV);`,
		"src/print.js":  `export default function printMe() { console.log("I get called from print.js!"); }`,
		"src/style.css": `.hello { color: red; }`,
		"src/icon.png":  "not really a png",
	})

	cfg := &config.Config{
		Mode: config.ModeDevelopment,
		Entry: config.Entry{
			{Name: "index", Import: []string{"./src/index.js"}},
			{Name: "print", Import: []string{"./src/print.js"}},
		},
		Output: config.Output{Filename: "[name].bundle.js", Clean: true},
		Module: config.Module{Rules: []config.Rule{
			{Test: `/\.css$/i`, Use: config.LoaderChain{{Loader: "style-loader"}, {Loader: "css-loader"}}},
			{Test: `/\.(png|svg|jpg|jpeg|gif)$/i`, Type: config.AssetResource},
		}},
	}
	cfg.ApplyDefaults(dir)
	require.NoError(t, cfg.Validate(nil))
	return cfg
}

func build(t *testing.T, cfg *config.Config, plugins ...Plugin) *Result {
	t.Helper()
	p, err := New(cfg, plugins...)
	require.NoError(t, err)
	res, err := p.Build(context.Background())
	require.NoError(t, err)
	return res
}

func assetNames(res *Result) []string {
	names := make([]string, 0, len(res.Assets))
	for _, a := range res.Assets {
		names = append(names, a.Name)
	}
	return names
}

func TestBuildOneBundlePerEntry(t *testing.T) {
	cfg := gettingStarted(t)
	res := build(t, cfg)

	names := assetNames(res)
	require.Contains(t, names, "index.bundle.js")
	require.Contains(t, names, "print.bundle.js")
	require.FileExists(t, filepath.Join(cfg.OutputDir(), "index.bundle.js"))
	require.FileExists(t, filepath.Join(cfg.OutputDir(), "print.bundle.js"))

	index, err := os.ReadFile(filepath.Join(cfg.OutputDir(), "index.bundle.js"))
	require.NoError(t, err)
	require.Contains(t, string(index), "I get called from print.js!")
	require.Contains(t, string(index), ".hello { color: red; }")
	require.Contains(t, string(index), `"development"`)

	var png string
	for _, a := range res.Assets {
		if strings.HasSuffix(a.Name, ".png") {
			png = a.Name
			require.Empty(t, a.Chunks)
		}
	}
	require.NotEmpty(t, png)
	require.Contains(t, string(index), png)
}

func TestBuildEmitsStylesheetAssets(t *testing.T) {
	cfg := gettingStarted(t)
	cfg.Module.Rules = append(cfg.Module.Rules, config.Rule{Test: `/\.(woff|woff2|eot|ttf|otf)$/i`, Type: config.AssetResource})
	writeFiles(t, cfg.Context, map[string]string{
		"src/style.css": `@font-face { font-family: "MyFont"; src: url(./my-font.woff2) format("woff2"); }
.hello { color: red; font-family: "MyFont"; background: url("./icon.png"); }`,
		"src/my-font.woff2": "not really a font",
	})

	res := build(t, cfg)

	var font, png string
	for _, name := range assetNames(res) {
		switch {
		case strings.HasSuffix(name, ".woff2"):
			font = name
		case strings.HasSuffix(name, ".png"):
			png = name
		}
	}
	require.NotEmpty(t, font)
	require.NotEmpty(t, png)
	require.FileExists(t, filepath.Join(cfg.OutputDir(), font))

	index, err := os.ReadFile(filepath.Join(cfg.OutputDir(), "index.bundle.js"))
	require.NoError(t, err)
	require.Contains(t, string(index), font)
	require.Contains(t, string(index), png)
	require.NotContains(t, string(index), "url(./my-font.woff2)")
	require.NotContains(t, string(index), `url(\"./icon.png\")`)
}

func TestBuildContentHashFilenames(t *testing.T) {
	cfg := gettingStarted(t)
	cfg.Output.Filename = "js/[name].[contenthash:8].js"
	cfg.Devtool = "source-map"

	res := build(t, cfg)

	var js, sourceMap string
	for _, a := range res.Assets {
		switch {
		case strings.HasPrefix(a.Name, "js/index.") && strings.HasSuffix(a.Name, ".js"):
			js = a.Name
			require.True(t, a.Immutable)
			require.Equal(t, []string{"index"}, a.Chunks)
		case strings.HasPrefix(a.Name, "js/index.") && strings.HasSuffix(a.Name, ".js.map"):
			sourceMap = a.Name
		}
	}
	require.Len(t, strings.TrimSuffix(strings.TrimPrefix(js, "js/index."), ".js"), 8)
	require.Equal(t, js+".map", sourceMap)

	contents, err := os.ReadFile(filepath.Join(cfg.OutputDir(), filepath.FromSlash(js)))
	require.NoError(t, err)
	require.Contains(t, string(contents), "sourceMappingURL="+filepath.Base(sourceMap))

	sm, err := os.ReadFile(filepath.Join(cfg.OutputDir(), filepath.FromSlash(sourceMap)))
	require.NoError(t, err)
	require.Contains(t, string(sm), "../../src/index.js")
}

func TestBuildIsDeterministic(t *testing.T) {
	cfg := gettingStarted(t)
	cfg.Output.Filename = "[name].[contenthash].js"

	first := build(t, cfg)
	second := build(t, cfg)

	require.Equal(t, first.Hash, second.Hash)
	require.Equal(t, assetNames(first), assetNames(second))
	require.NotEqual(t, first.BuildID, second.BuildID)
}

func TestBuildMultiSourceEntry(t *testing.T) {
	cfg := gettingStarted(t)
	cfg.Entry = config.Entry{{Name: "app", Import: []string{"./src/print.js", "./src/style.css"}}}

	res := build(t, cfg)
	require.Contains(t, assetNames(res), "app.bundle.js")

	contents, err := os.ReadFile(filepath.Join(cfg.OutputDir(), "app.bundle.js"))
	require.NoError(t, err)
	require.Contains(t, string(contents), ".hello { color: red; }")
}

func TestBuildDetectsContentHashCollision(t *testing.T) {
	cfg := gettingStarted(t)
	cfg.Mode = config.ModeProduction
	cfg.Entry = config.Entry{
		{Name: "a", Import: []string{"./src/print.js"}},
		{Name: "b", Import: []string{"./src/print.js"}},
	}
	cfg.Output.Filename = "[contenthash].js"

	p, err := New(cfg)
	require.NoError(t, err)
	_, err = p.Build(context.Background())
	require.ErrorIs(t, err, config.ErrOutputCollision)
}

func TestBuildReportsSyntaxErrors(t *testing.T) {
	cfg := gettingStarted(t)
	writeFiles(t, cfg.Context, map[string]string{"src/print.js": "export default function ("})

	p, err := New(cfg)
	require.NoError(t, err)
	_, err = p.Build(context.Background())
	require.ErrorIs(t, err, ErrBuildFailed)
	require.Nil(t, p.Last())
}

func TestBuildCleansOutput(t *testing.T) {
	cfg := gettingStarted(t)
	writeFiles(t, cfg.OutputDir(), map[string]string{"stale.js": "old"})

	build(t, cfg)
	require.NoFileExists(t, filepath.Join(cfg.OutputDir(), "stale.js"))

	cfg.Output.Clean = false
	writeFiles(t, cfg.OutputDir(), map[string]string{"stale.js": "old"})
	build(t, cfg)
	require.FileExists(t, filepath.Join(cfg.OutputDir(), "stale.js"))
}

type recorder struct {
	name  string
	stage int
	calls *[]string
	fn    func(c *Compilation) error
}

func (r recorder) Name() string { return r.name }
func (r recorder) Stage() int   { return r.stage }

func (r recorder) ProcessAssets(_ context.Context, c *Compilation) error {
	*r.calls = append(*r.calls, r.name)
	if r.fn != nil {
		return r.fn(c)
	}
	return nil
}

func TestAssetProcessorsRunByStage(t *testing.T) {
	cfg := gettingStarted(t)

	var calls []string
	res := build(t, cfg,
		recorder{name: "compress", stage: StageOptimizeTransfer, calls: &calls},
		recorder{name: "manifest", stage: StageSummarize, calls: &calls, fn: func(c *Compilation) error {
			return c.EmitAsset("manifest.json", []byte("{}"), AssetInfo{})
		}},
		recorder{name: "copy", stage: StageAdditional, calls: &calls},
	)

	require.Equal(t, []string{"copy", "manifest", "compress"}, calls)
	require.Contains(t, assetNames(res), "manifest.json")
	require.FileExists(t, filepath.Join(cfg.OutputDir(), "manifest.json"))
}

func TestAssetProcessorCollision(t *testing.T) {
	cfg := gettingStarted(t)

	var calls []string
	p, err := New(cfg, recorder{name: "dup", calls: &calls, fn: func(c *Compilation) error {
		return c.EmitAsset("index.bundle.js", []byte("x"), AssetInfo{})
	}})
	require.NoError(t, err)

	_, err = p.Build(context.Background())
	require.ErrorIs(t, err, config.ErrOutputCollision)
}

func TestEmitAssetRejectsEscapingPaths(t *testing.T) {
	c := newCompilation("id", &config.Config{})
	require.ErrorIs(t, c.EmitAsset("../evil.js", nil, AssetInfo{}), ErrInvalidAssetPath)
	require.NoError(t, c.EmitAsset("./nested/../ok.js", nil, AssetInfo{}))

	_, ok := c.Asset("ok.js")
	require.True(t, ok)
}

func TestRebaseSourceMap(t *testing.T) {
	in := []byte(`{"version":3,"sources":["../src/index.js","webpack://x/y.js"],"mappings":""}`)
	out, err := rebaseSourceMap(in, ".", "js/app")
	require.NoError(t, err)
	require.Contains(t, string(out), `"../../../src/index.js"`)
	require.Contains(t, string(out), `"webpack://x/y.js"`)

	same, err := rebaseSourceMap(in, "js", "js")
	require.NoError(t, err)
	require.Equal(t, in, same)
}

func TestSourceMapModes(t *testing.T) {
	tests := []struct {
		devtool  string
		mode     config.Mode
		expected api.SourceMap
	}{
		{devtool: "", mode: config.ModeDevelopment, expected: api.SourceMapInline},
		{devtool: "", mode: config.ModeProduction, expected: api.SourceMapNone},
		{devtool: "false", mode: config.ModeDevelopment, expected: api.SourceMapNone},
		{devtool: "source-map", mode: config.ModeProduction, expected: api.SourceMapLinked},
		{devtool: "eval-source-map", mode: config.ModeDevelopment, expected: api.SourceMapInline},
		{devtool: "hidden-source-map", mode: config.ModeProduction, expected: api.SourceMapExternal},
	}

	for _, tt := range tests {
		t.Run(tt.devtool+"/"+string(tt.mode), func(t *testing.T) {
			require.Equal(t, tt.expected, sourceMap(tt.devtool, tt.mode))
		})
	}
}

func TestHandlerServesLastBuild(t *testing.T) {
	cfg := gettingStarted(t)
	cfg.Output.Filename = "[name].[contenthash].js"

	p, err := New(cfg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.js", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	res, err := p.Build(context.Background())
	require.NoError(t, err)

	var js string
	for _, a := range res.Assets {
		if strings.HasPrefix(a.Name, "index.") && strings.HasSuffix(a.Name, ".js") {
			js = a.Name
		}
	}

	rec = httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+js, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	require.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
	require.Contains(t, rec.Body.String(), "I get called from print.js!")

	rec = httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.js", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/"+js, nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
