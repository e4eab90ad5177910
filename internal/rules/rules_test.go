package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpack/internal/config"
)

func assetManagementRules() []config.Rule {
	return []config.Rule{
		{Test: `/\.css$/i`, Use: config.LoaderChain{{Loader: "style-loader"}, {Loader: "css-loader"}}},
		{Test: `/\.(png|svg|jpg|jpeg|gif)$/i`, Type: config.AssetResource},
		{Test: `/\.(woff|woff2|eot|ttf|otf)$/i`, Type: config.AssetResource},
	}
}

func TestMatch(t *testing.T) {
	matchers, err := Compile(assetManagementRules())
	require.NoError(t, err)

	tests := []struct {
		path     string
		expected int
	}{
		{path: "/app/src/style.css", expected: 0},
		{path: "/app/src/STYLE.CSS", expected: 0},
		{path: "/app/src/icon.png", expected: 1},
		{path: "/app/src/logo.SVG", expected: 1},
		{path: "/app/src/fonts/a.woff2", expected: 2},
		{path: "/app/src/index.js", expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m := Match(matchers, tt.path)
			if tt.expected < 0 {
				require.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			require.Equal(t, tt.expected, m.Index)
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	matchers, err := Compile([]config.Rule{
		{Test: `\.svg$`, Type: config.AssetInline},
		{Test: `\.(png|svg)$`, Type: config.AssetResource},
	})
	require.NoError(t, err)

	require.Equal(t, 0, Match(matchers, "a.svg").Index)
	require.Equal(t, 1, Match(matchers, "a.png").Index)
}

func TestExclude(t *testing.T) {
	matchers, err := Compile([]config.Rule{
		{Test: `\.js$`, Exclude: `/node_modules/`, Use: config.LoaderChain{{Loader: "babel-loader"}}},
		{Test: `\.js$`, Type: config.AssetSource},
	})
	require.NoError(t, err)

	require.Equal(t, 0, Match(matchers, "/app/src/a.js").Index)
	require.Equal(t, 1, Match(matchers, "/app/node_modules/lib/a.js").Index)
}

func TestCompileRejectsInvalidRule(t *testing.T) {
	_, err := Compile([]config.Rule{{Test: `(`, Type: config.AssetResource}})
	require.ErrorIs(t, err, config.ErrInvalidPattern)

	_, err = Compile([]config.Rule{{Test: `\.less$`, Use: config.LoaderChain{{Loader: "less-loader"}}}})
	require.ErrorIs(t, err, config.ErrUnknownLoader)
}

func TestTransformAssetTypes(t *testing.T) {
	big := []byte(strings.Repeat("x", 100))
	small := []byte("x")

	tests := []struct {
		name     string
		rule     config.Rule
		path     string
		contents []byte
		expected api.Loader
	}{
		{name: "resource", rule: config.Rule{Test: `.`, Type: config.AssetResource}, path: "a.png", contents: small, expected: api.LoaderFile},
		{name: "inline", rule: config.Rule{Test: `.`, Type: config.AssetInline}, path: "a.svg", contents: big, expected: api.LoaderDataURL},
		{name: "source", rule: config.Rule{Test: `.`, Type: config.AssetSource}, path: "a.txt", contents: small, expected: api.LoaderText},
		{name: "json", rule: config.Rule{Test: `.`, Type: config.JSON}, path: "a.json5", contents: small, expected: api.LoaderJSON},
		{name: "javascript", rule: config.Rule{Test: `.`, Type: config.JavaScript}, path: "a.ts", contents: small, expected: api.LoaderTS},
		{
			name:     "asset under limit",
			rule:     config.Rule{Test: `.`, Type: config.Asset, Parser: config.RuleParser{DataURLCondition: config.DataURLCondition{MaxSize: 10}}},
			path:     "a.png",
			contents: small,
			expected: api.LoaderDataURL,
		},
		{
			name:     "asset over limit",
			rule:     config.Rule{Test: `.`, Type: config.Asset, Parser: config.RuleParser{DataURLCondition: config.DataURLCondition{MaxSize: 10}}},
			path:     "a.png",
			contents: big,
			expected: api.LoaderFile,
		},
		{name: "asset default limit", rule: config.Rule{Test: `.`, Type: config.Asset}, path: "a.png", contents: big, expected: api.LoaderDataURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matchers, err := Compile([]config.Rule{tt.rule})
			require.NoError(t, err)

			src, err := matchers[0].Transform(tt.path, tt.contents)
			require.NoError(t, err)
			require.Equal(t, tt.expected, src.Loader)
		})
	}
}

func TestPluginInBuild(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.js"), []byte(`import "./style.css"; import logo from "./logo.png"; console.log(logo);`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte(`.hello { color: red; }`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), []byte("not really a png"), 0o600))

	matchers, err := Compile(assetManagementRules())
	require.NoError(t, err)

	result := api.Build(api.BuildOptions{
		AbsWorkingDir: dir,
		EntryPoints:   []string{"index.js"},
		Bundle:        true,
		Outdir:        filepath.Join(dir, "dist"),
		AssetNames:    "[name]-[hash]",
		Plugins:       []api.Plugin{Plugin(matchers)},
		LogLevel:      api.LogLevelSilent,
	})
	require.Empty(t, result.Errors)

	var js, png string
	for _, f := range result.OutputFiles {
		switch filepath.Ext(f.Path) {
		case ".js":
			js = string(f.Contents)
		case ".png":
			png = filepath.Base(f.Path)
		}
	}

	require.Contains(t, js, "document.createElement")
	require.Contains(t, js, ".hello { color: red; }")
	require.NotEmpty(t, png)
	require.Contains(t, js, png)
}
