// Package config holds the build configuration: entries, output naming,
// module rules and plugin wiring. A Config is loaded once, validated, and then
// treated as read-only by the rest of the build.
package config

import (
	"path/filepath"
	"slices"
)

// Mode selects the optimisation defaults of a build.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
	ModeNone        Mode = "none"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeDevelopment, ModeProduction, ModeNone:
		return true
	}
	return false
}

// AssetType is the handling mode of a rule that does not use loaders.
type AssetType string

const (
	AssetResource AssetType = "asset/resource"
	AssetInline   AssetType = "asset/inline"
	AssetSource   AssetType = "asset/source"
	Asset         AssetType = "asset"
	JavaScript    AssetType = "javascript/auto"
	JSON          AssetType = "json"
)

// Valid reports whether t is one of the known asset types.
func (t AssetType) Valid() bool {
	switch t {
	case AssetResource, AssetInline, AssetSource, Asset, JavaScript, JSON:
		return true
	}
	return false
}

// Defaults applied by ApplyDefaults.
const (
	DefaultOutputPath          = "dist"
	DefaultFilename            = "[name].js"
	DefaultCSSFilename         = "[name].css"
	DefaultAssetModuleFilename = "[hash][ext][query]"
	DefaultEntryName           = "main"
	DefaultInlineMaxSize       = 8096
)

// DefaultExtensions are tried, in order, when an entry or import omits its extension.
var DefaultExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".css", ".json"}

// Devtool values mapped onto esbuild source map modes.
var devtools = []string{"", "false", "source-map", "inline-source-map", "hidden-source-map", "eval", "eval-source-map", "eval-cheap-module-source-map", "cheap-module-source-map"}

// Targets understood by the bundler.
var targets = []string{"", "es5", "es2015", "es2016", "es2017", "es2018", "es2019", "es2020", "es2021", "es2022", "esnext"}

type Config struct {
	// Context is the base directory entries and rule paths resolve against
	Context   string         `yaml:"context,omitempty" json:"context,omitempty"`
	Mode      Mode           `yaml:"mode,omitempty" json:"mode,omitempty"`
	Entry     Entry          `yaml:"entry" json:"entry"`
	Output    Output         `yaml:"output" json:"output"`
	Module    Module         `yaml:"module,omitempty" json:"module,omitempty"`
	Plugins   []PluginConfig `yaml:"plugins,omitempty" json:"plugins,omitempty"`
	Resolve   Resolve        `yaml:"resolve,omitempty" json:"resolve,omitempty"`
	Externals []string       `yaml:"externals,omitempty" json:"externals,omitempty"`
	Devtool   string         `yaml:"devtool,omitempty" json:"devtool,omitempty"`
	Target    string         `yaml:"target,omitempty" json:"target,omitempty"`
}

type Output struct {
	Path                string `yaml:"path,omitempty" json:"path,omitempty"`
	Filename            string `yaml:"filename,omitempty" json:"filename,omitempty"`
	CSSFilename         string `yaml:"cssFilename,omitempty" json:"cssFilename,omitempty"`
	AssetModuleFilename string `yaml:"assetModuleFilename,omitempty" json:"assetModuleFilename,omitempty"`
	PublicPath          string `yaml:"publicPath,omitempty" json:"publicPath,omitempty"`
	Clean               bool   `yaml:"clean,omitempty" json:"clean,omitempty"`
	HashFunction        string `yaml:"hashFunction,omitempty" json:"hashFunction,omitempty"`
	HashDigest          string `yaml:"hashDigest,omitempty" json:"hashDigest,omitempty"`
	HashDigestLength    int    `yaml:"hashDigestLength,omitempty" json:"hashDigestLength,omitempty"`
}

type Module struct {
	Rules []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Rule maps files whose path matches Test to either a loader chain or an asset type.
type Rule struct {
	Test    Pattern     `yaml:"test" json:"test"`
	Exclude Pattern     `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Use     LoaderChain `yaml:"use,omitempty" json:"use,omitempty"`
	Type    AssetType   `yaml:"type,omitempty" json:"type,omitempty"`
	Parser  RuleParser  `yaml:"parser,omitempty" json:"parser,omitempty"`
}

type RuleParser struct {
	DataURLCondition DataURLCondition `yaml:"dataUrlCondition,omitempty" json:"dataUrlCondition,omitempty"`
}

type DataURLCondition struct {
	MaxSize int `yaml:"maxSize,omitempty" json:"maxSize,omitempty"`
}

// InlineMaxSize is the size limit for the "asset" type to inline a file.
func (r Rule) InlineMaxSize() int {
	if r.Parser.DataURLCondition.MaxSize > 0 {
		return r.Parser.DataURLCondition.MaxSize
	}
	return DefaultInlineMaxSize
}

// PluginConfig names a plugin and carries its options record.
type PluginConfig struct {
	Name    string         `yaml:"name" json:"name"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

type Resolve struct {
	Extensions []string          `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Alias      map[string]string `yaml:"alias,omitempty" json:"alias,omitempty"`
}

// ApplyDefaults fills in every unset field. baseDir is used when Context is empty.
func (c *Config) ApplyDefaults(baseDir string) {
	if c.Context == "" {
		c.Context = baseDir
	}
	if !filepath.IsAbs(c.Context) {
		if abs, err := filepath.Abs(c.Context); err == nil {
			c.Context = abs
		}
	}
	if c.Mode == "" {
		c.Mode = ModeProduction
	}
	if c.Output.Path == "" {
		c.Output.Path = DefaultOutputPath
	}
	if c.Output.Filename == "" {
		c.Output.Filename = DefaultFilename
	}
	if c.Output.CSSFilename == "" {
		c.Output.CSSFilename = DefaultCSSFilename
	}
	if c.Output.AssetModuleFilename == "" {
		c.Output.AssetModuleFilename = DefaultAssetModuleFilename
	}
	if len(c.Resolve.Extensions) == 0 {
		c.Resolve.Extensions = slices.Clone(DefaultExtensions)
	}
}

// OutputDir is the absolute output directory.
func (c *Config) OutputDir() string {
	if filepath.IsAbs(c.Output.Path) {
		return filepath.Clean(c.Output.Path)
	}
	return filepath.Join(c.Context, c.Output.Path)
}

// EntryFilename is the filename template of a single entry.
func (c *Config) EntryFilename(e EntryPoint) string {
	if e.Filename != "" {
		return e.Filename
	}
	return c.Output.Filename
}
