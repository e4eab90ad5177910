// Package loaders implements the closed set of module loaders a rule's "use"
// chain may name. Loaders run right to left, each transforming a Source.
package loaders

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpack/internal/options"
)

var (
	// ErrUnknownLoader indicates a loader name outside the supported set
	ErrUnknownLoader = errors.New("unknown loader")
	// ErrLoaderOrder indicates a loader received input it cannot handle
	ErrLoaderOrder = errors.New("loader received unexpected input")
)

// Source is a module as it moves through a loader chain.
type Source struct {
	Path     string
	Contents string
	// Loader tells esbuild how to interpret Contents once the chain finishes
	Loader api.Loader
}

// Loader transforms a single module.
type Loader interface {
	Name() string
	Apply(src *Source) error
}

type factory func(opts map[string]any) (Loader, error)

var registry = map[string]factory{
	"css-loader":     newCSSLoader,
	"style-loader":   noOptions(styleLoader{}),
	"raw-loader":     noOptions(setLoader{name: "raw-loader", loader: api.LoaderText}),
	"file-loader":    noOptions(setLoader{name: "file-loader", loader: api.LoaderFile}),
	"json-loader":    noOptions(setLoader{name: "json-loader", loader: api.LoaderJSON}),
	"url-loader":     newURLLoader,
	"babel-loader":   transpiler("babel-loader"),
	"ts-loader":      transpiler("ts-loader"),
	"esbuild-loader": transpiler("esbuild-loader"),
}

// Known reports whether name is a supported loader.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names lists the supported loaders.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the named loader, decoding and validating its options.
func New(name string, opts map[string]any) (Loader, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLoader, name)
	}
	l, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return l, nil
}

// Chain is an ordered loader list as written in the configuration.
type Chain []Loader

// Apply runs the chain last to first, the way webpack evaluates "use".
func (c Chain) Apply(src *Source) error {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Apply(src); err != nil {
			return fmt.Errorf("%s on %s: %w", c[i].Name(), src.Path, err)
		}
	}
	return nil
}

func noOptions(l Loader) factory {
	return func(opts map[string]any) (Loader, error) {
		if err := options.Decode(opts, &struct{}{}); err != nil {
			return nil, err
		}
		return l, nil
	}
}

type setLoader struct {
	name   string
	loader api.Loader
}

func (s setLoader) Name() string { return s.name }

func (s setLoader) Apply(src *Source) error {
	src.Loader = s.loader
	return nil
}

type cssLoader struct {
	Modules bool `yaml:"modules"`
}

func newCSSLoader(opts map[string]any) (Loader, error) {
	l := &cssLoader{}
	if err := options.Decode(opts, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (c *cssLoader) Name() string { return "css-loader" }

func (c *cssLoader) Apply(src *Source) error {
	if c.Modules {
		src.Loader = api.LoaderLocalCSS
	} else {
		src.Loader = api.LoaderCSS
	}
	return nil
}

type urlLoader struct {
	// Limit is the largest file, in bytes, inlined as a data URL; 0 inlines everything
	Limit int `yaml:"limit"`
}

func newURLLoader(opts map[string]any) (Loader, error) {
	l := &urlLoader{}
	if err := options.Decode(opts, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (u *urlLoader) Name() string { return "url-loader" }

func (u *urlLoader) Apply(src *Source) error {
	if u.Limit > 0 && len(src.Contents) > u.Limit {
		src.Loader = api.LoaderFile
		return nil
	}
	src.Loader = api.LoaderDataURL
	return nil
}

// transpiler covers babel-loader and friends. esbuild does the transpiling,
// so their options are accepted and not interpreted.
type transpilerLoader struct {
	name string
}

func transpiler(name string) factory {
	return func(map[string]any) (Loader, error) {
		return transpilerLoader{name: name}, nil
	}
}

func (t transpilerLoader) Name() string { return t.name }

func (t transpilerLoader) Apply(src *Source) error {
	src.Loader = LoaderForExt(src.Path)
	return nil
}

// LoaderForExt picks the script loader matching a file extension.
func LoaderForExt(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".json":
		return api.LoaderJSON
	case ".css":
		return api.LoaderCSS
	default:
		return api.LoaderJS
	}
}
