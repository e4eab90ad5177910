package loaders

import (
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpack/internal/options"
)

func chain(t *testing.T, names ...string) Chain {
	t.Helper()
	c := Chain{}
	for _, name := range names {
		l, err := New(name, nil)
		require.NoError(t, err)
		c = append(c, l)
	}
	return c
}

func TestStyleAndCSSLoader(t *testing.T) {
	src := &Source{Path: "/src/style.css", Contents: ".hello { color: red; }"}
	require.NoError(t, chain(t, "style-loader", "css-loader").Apply(src))

	require.Equal(t, api.LoaderJS, src.Loader)
	require.Contains(t, src.Contents, `".hello { color: red; }"`)
	require.Contains(t, src.Contents, `document.createElement("style")`)
	require.Contains(t, src.Contents, `"/src/style.css"`)
}

func TestStyleLoaderURLs(t *testing.T) {
	tests := []struct {
		name     string
		css      string
		contains []string
		excludes []string
	}{
		{
			name:     "relative image",
			css:      `.hello { background: url("./icon.png"); }`,
			contains: []string{`import __assetpack_url_0 from "./icon.png";`, `url(\"" + __assetpack_url_0 + "\")"`},
		},
		{
			name: "font with query and bare name",
			css:  `@font-face { src: url(my-font.woff2) format("woff2"), url('my-font.eot?#iefix'); }`,
			contains: []string{
				`import __assetpack_url_0 from "./my-font.woff2";`,
				`import __assetpack_url_1 from "./my-font.eot";`,
				`__assetpack_url_1 + "?#iefix\")"`,
			},
		},
		{
			name:     "same file imported once",
			css:      `a { background: url(./a.png); } b { background: url(./a.png); }`,
			contains: []string{`import __assetpack_url_0 from "./a.png";`},
			excludes: []string{`__assetpack_url_1`},
		},
		{
			name:     "remote and data urls untouched",
			css:      `a { background: url(https://example.com/a.png), url(data:image/png;base64,AAAA), url(/static/b.png), url(#c); }`,
			contains: []string{`https://example.com/a.png`, `data:image/png;base64,AAAA`, `/static/b.png`},
			excludes: []string{`__assetpack_url_`},
		},
		{
			name:     "local import",
			css:      `@import "./base.css"; @import url(~normalize.css/normalize.css); @import url("https://fonts.example.com/x.css"); .a { color: red; }`,
			contains: []string{`import "./base.css";`, `import "normalize.css/normalize.css";`, `@import url(\"https://fonts.example.com/x.css\");`},
			excludes: []string{`@import \"./base.css\"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &Source{Path: "/src/style.css", Contents: tt.css}
			require.NoError(t, chain(t, "style-loader", "css-loader").Apply(src))
			require.Equal(t, api.LoaderJS, src.Loader)
			for _, want := range tt.contains {
				require.Contains(t, src.Contents, want)
			}
			for _, unwanted := range tt.excludes {
				require.NotContains(t, src.Contents, unwanted)
			}
		})
	}
}

func TestStyleLoaderOrder(t *testing.T) {
	// written the wrong way round, style-loader runs first and sees raw input
	src := &Source{Path: "/src/style.css", Contents: "a{}"}
	err := chain(t, "css-loader", "style-loader").Apply(src)
	require.ErrorIs(t, err, ErrLoaderOrder)
}

func TestCSSModulesWithStyleLoader(t *testing.T) {
	css, err := New("css-loader", map[string]any{"modules": true})
	require.NoError(t, err)

	src := &Source{Path: "/src/a.module.css"}
	err = Chain{styleLoaderMust(t), css}.Apply(src)
	require.ErrorIs(t, err, ErrLoaderOrder)
}

func styleLoaderMust(t *testing.T) Loader {
	l, err := New("style-loader", nil)
	require.NoError(t, err)
	return l
}

func TestCSSLoaderModules(t *testing.T) {
	l, err := New("css-loader", map[string]any{"modules": true})
	require.NoError(t, err)

	src := &Source{Path: "a.module.css"}
	require.NoError(t, l.Apply(src))
	require.Equal(t, api.LoaderLocalCSS, src.Loader)
}

func TestURLLoaderLimit(t *testing.T) {
	l, err := New("url-loader", map[string]any{"limit": 4})
	require.NoError(t, err)

	small := &Source{Path: "a.png", Contents: "abc"}
	require.NoError(t, l.Apply(small))
	require.Equal(t, api.LoaderDataURL, small.Loader)

	large := &Source{Path: "b.png", Contents: strings.Repeat("x", 10)}
	require.NoError(t, l.Apply(large))
	require.Equal(t, api.LoaderFile, large.Loader)
}

func TestSimpleLoaders(t *testing.T) {
	tests := []struct {
		loader   string
		path     string
		expected api.Loader
	}{
		{loader: "raw-loader", path: "a.txt", expected: api.LoaderText},
		{loader: "file-loader", path: "a.png", expected: api.LoaderFile},
		{loader: "json-loader", path: "a.json", expected: api.LoaderJSON},
		{loader: "babel-loader", path: "a.jsx", expected: api.LoaderJSX},
		{loader: "ts-loader", path: "a.tsx", expected: api.LoaderTSX},
		{loader: "esbuild-loader", path: "a.ts", expected: api.LoaderTS},
		{loader: "babel-loader", path: "a.mjs", expected: api.LoaderJS},
	}

	for _, tt := range tests {
		t.Run(tt.loader+" "+tt.path, func(t *testing.T) {
			src := &Source{Path: tt.path}
			require.NoError(t, chain(t, tt.loader).Apply(src))
			require.Equal(t, tt.expected, src.Loader)
		})
	}
}

func TestUnknownLoader(t *testing.T) {
	_, err := New("sass-loader", nil)
	require.ErrorIs(t, err, ErrUnknownLoader)
	require.False(t, Known("sass-loader"))
	require.True(t, Known("css-loader"))
}

func TestLoaderOptionsValidated(t *testing.T) {
	_, err := New("style-loader", map[string]any{"injectType": "lazyStyleTag"})
	require.ErrorIs(t, err, options.ErrUnknownOption)

	_, err = New("css-loader", map[string]any{"module": true})
	require.ErrorIs(t, err, options.ErrUnknownOption)

	// transpiler options are passed through untouched
	_, err = New("babel-loader", map[string]any{"presets": []any{"@babel/preset-env"}})
	require.NoError(t, err)
}

func TestNames(t *testing.T) {
	names := Names()
	require.Contains(t, names, "style-loader")
	require.IsIncreasing(t, names)
}
