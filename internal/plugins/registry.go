// Package plugins holds the built-in build plugins and the registry that
// turns plugin descriptors from the configuration into instances.
package plugins

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wolfeidau/assetpack/internal/assets"
	"github.com/wolfeidau/assetpack/internal/config"
	"github.com/wolfeidau/assetpack/internal/options"
)

// Factory builds a plugin from its options record. Factories must not touch
// the filesystem or network; that happens during the build.
type Factory func(opts map[string]any) (assets.Plugin, error)

// Registry maps plugin names and their aliases to factories.
type Registry struct {
	factories map[string]Factory
	aliases   map[string]string
}

var _ config.PluginValidator = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		aliases:   map[string]string{},
	}
}

// DefaultRegistry returns a registry with every built-in plugin, reachable by
// its short name or the name of the webpack plugin it stands in for.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("html", newHTML, "HtmlWebpackPlugin")
	r.Register("copy", newCopy, "CopyWebpackPlugin")
	r.Register("manifest", newManifest, "WebpackManifestPlugin")
	r.Register("compression", newCompression, "CompressionPlugin")
	r.Register("define", newDefine, "DefinePlugin")
	r.Register("banner", newBanner, "BannerPlugin")
	r.Register("remote", newRemote, "HttpUriPlugin")
	return r
}

// Register adds a factory under name and any aliases, replacing earlier registrations.
func (r *Registry) Register(name string, f Factory, aliases ...string) {
	r.factories[name] = f
	for _, alias := range aliases {
		r.aliases[alias] = name
	}
}

// Names lists the canonical plugin names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (Factory, bool) {
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	f, ok := r.factories[name]
	return f, ok
}

// New builds the plugin described by pc.
func (r *Registry) New(pc config.PluginConfig) (assets.Plugin, error) {
	f, ok := r.lookup(pc.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownPlugin, pc.Name)
	}

	p, err := f(pc.Options)
	if errors.Is(err, options.ErrUnknownOption) {
		return nil, fmt.Errorf("%w: %w", config.ErrUnknownPluginOption, err)
	}
	return p, err
}

// ValidatePlugin checks the name and options of pc without keeping the result.
func (r *Registry) ValidatePlugin(pc config.PluginConfig) error {
	_, err := r.New(pc)
	return err
}

// Resolve builds every plugin of cfg, in declaration order.
func (r *Registry) Resolve(cfg *config.Config) ([]assets.Plugin, error) {
	out := make([]assets.Plugin, 0, len(cfg.Plugins))
	for i, pc := range cfg.Plugins {
		p, err := r.New(pc)
		if err != nil {
			return nil, fmt.Errorf("plugins[%d] %s: %w", i, pc.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func decode[T any](opts map[string]any) (*T, error) {
	out := new(T)
	if err := options.Decode(opts, out); err != nil {
		return nil, err
	}
	return out, nil
}
