package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/wolfeidau/assetpack/internal/loaders"
	"github.com/wolfeidau/assetpack/internal/naming"
)

// PluginValidator checks a plugin descriptor against the available plugins.
type PluginValidator interface {
	ValidatePlugin(pc PluginConfig) error
}

// Validate checks the structural well-formedness of the configuration and
// returns every problem found, joined. plugins may be nil to skip plugin checks.
func (c *Config) Validate(plugins PluginValidator) error {
	var errs []error

	if !c.Mode.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q (expected development, production or none)", ErrInvalidMode, c.Mode))
	}
	if !slices.Contains(devtools, c.Devtool) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidDevtool, c.Devtool))
	}
	if !slices.Contains(targets, strings.ToLower(c.Target)) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidTarget, c.Target))
	}

	errs = append(errs, c.validateEntries()...)
	errs = append(errs, c.validateOutput()...)

	for i, rule := range c.Module.Rules {
		if err := rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("module.rules[%d]: %w", i, err))
		}
	}

	if plugins != nil {
		for i, pc := range c.Plugins {
			if err := plugins.ValidatePlugin(pc); err != nil {
				errs = append(errs, fmt.Errorf("plugins[%d] %s: %w", i, pc.Name, err))
			}
		}
	}

	return errors.Join(errs...)
}

func (c *Config) validateEntries() []error {
	if len(c.Entry) == 0 {
		return []error{ErrNoEntries}
	}

	var errs []error
	seen := map[string]bool{}
	for _, ep := range c.Entry {
		if ep.Name == "" {
			errs = append(errs, fmt.Errorf("%w: empty entry name", ErrInvalidEntry))
			continue
		}
		if seen[ep.Name] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateEntry, ep.Name))
		}
		seen[ep.Name] = true

		if len(ep.Import) == 0 {
			errs = append(errs, fmt.Errorf("%w: %q has no source paths", ErrInvalidEntry, ep.Name))
		}
		for _, src := range ep.Import {
			if _, err := c.ResolveSource(src); err != nil {
				errs = append(errs, fmt.Errorf("entry %q: %w", ep.Name, err))
			}
		}
	}
	return errs
}

// ResolveSource finds the file an entry path refers to, trying the
// configured extensions when the path has none that exists.
func (c *Config) ResolveSource(src string) (string, error) {
	p := src
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.Context, p)
	}

	if st, err := os.Stat(p); err == nil && !st.IsDir() {
		return p, nil
	}
	for _, ext := range c.Resolve.Extensions {
		if st, err := os.Stat(p + ext); err == nil && !st.IsDir() {
			return p + ext, nil
		}
	}
	for _, ext := range c.Resolve.Extensions {
		index := filepath.Join(p, "index"+ext)
		if _, err := os.Stat(index); err == nil {
			return index, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrEntryNotFound, src)
}

func (c *Config) validateOutput() []error {
	var errs []error

	if _, err := naming.NewHasher(c.Output.HashFunction, c.Output.HashDigest, c.Output.HashDigestLength); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidOutput, err))
	}

	if c.Output.Clean {
		out, ctx := c.OutputDir(), filepath.Clean(c.Context)
		if rel, err := filepath.Rel(out, ctx); err == nil && !strings.HasPrefix(rel, "..") {
			errs = append(errs, fmt.Errorf("%w: output.clean would remove %s, which contains the context directory", ErrInvalidOutput, out))
		}
	}

	if err := c.checkEntryFilenames(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// checkEntryFilenames substitutes each entry name into its filename template
// and rejects two entries landing on the same file. Names that still depend
// on content hashes can only be compared after the build.
func (c *Config) checkEntryFilenames() error {
	owners := map[string]string{}
	var errs []error
	for _, ep := range c.Entry {
		tmpl := c.EntryFilename(ep)
		if tmpl == "" {
			errs = append(errs, fmt.Errorf("%w: empty filename for entry %q", ErrInvalidOutput, ep.Name))
			continue
		}

		name := naming.StaticName(tmpl, ep.Name)
		if naming.HasPerEntryPlaceholder(name) {
			continue
		}
		if other, ok := owners[name]; ok {
			errs = append(errs, fmt.Errorf("%w: entries %q and %q both emit %s", ErrOutputCollision, other, ep.Name, name))
			continue
		}
		owners[name] = ep.Name
	}
	return errors.Join(errs...)
}

// Validate checks a single rule.
func (r Rule) Validate() error {
	var errs []error

	if r.Test.IsZero() {
		errs = append(errs, fmt.Errorf("%w: test is required", ErrInvalidRule))
	} else if _, err := r.Test.Compile(); err != nil {
		errs = append(errs, err)
	}
	if !r.Exclude.IsZero() {
		if _, err := r.Exclude.Compile(); err != nil {
			errs = append(errs, err)
		}
	}

	switch {
	case len(r.Use) > 0 && r.Type != "":
		errs = append(errs, fmt.Errorf("%w: use and type are mutually exclusive", ErrInvalidRule))
	case len(r.Use) == 0 && r.Type == "":
		errs = append(errs, fmt.Errorf("%w: one of use or type is required", ErrInvalidRule))
	case r.Type != "" && !r.Type.Valid():
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownAssetType, r.Type))
	}

	for _, ref := range r.Use {
		if _, err := loaders.New(ref.Loader, ref.Options); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrUnknownLoader, err))
		}
	}

	return errors.Join(errs...)
}
