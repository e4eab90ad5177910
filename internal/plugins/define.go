package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpack/internal/assets"
	"github.com/wolfeidau/assetpack/internal/options"
)

type DefineOptions struct {
	// Definitions maps identifiers to replacement values. Strings are inserted
	// as code, as webpack does; other values are inserted as JSON.
	Definitions map[string]any `yaml:"definitions"`
}

// Define replaces global identifiers at compile time.
type Define struct {
	defs map[string]string
}

func newDefine(raw map[string]any) (assets.Plugin, error) {
	opts, err := decode[DefineOptions](raw)
	if err != nil {
		return nil, err
	}

	d := &Define{defs: make(map[string]string, len(opts.Definitions))}
	for key, value := range opts.Definitions {
		switch v := value.(type) {
		case string:
			d.defs[key] = v
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("%w: definitions.%s: %v", options.ErrInvalidOption, key, err)
			}
			d.defs[key] = string(data)
		}
	}
	return d, nil
}

func (d *Define) Name() string { return "define" }

func (d *Define) ConfigureBuild(_ context.Context, opts *api.BuildOptions) error {
	if opts.Define == nil {
		opts.Define = map[string]string{}
	}
	for key, value := range d.defs {
		opts.Define[key] = value
	}
	return nil
}

type BannerOptions struct {
	Banner string `yaml:"banner"`
	Footer string `yaml:"footer"`
	// Raw inserts the text as is instead of wrapping it in a comment
	Raw bool `yaml:"raw"`
}

// Banner prepends and appends text to every script and stylesheet.
type Banner struct {
	opts BannerOptions
}

func newBanner(raw map[string]any) (assets.Plugin, error) {
	opts, err := decode[BannerOptions](raw)
	if err != nil {
		return nil, err
	}
	if opts.Banner == "" && opts.Footer == "" {
		return nil, fmt.Errorf("%w: banner or footer is required", options.ErrInvalidOption)
	}
	return &Banner{opts: *opts}, nil
}

func (b *Banner) Name() string { return "banner" }

func (b *Banner) ConfigureBuild(_ context.Context, opts *api.BuildOptions) error {
	if opts.Banner == nil {
		opts.Banner = map[string]string{}
	}
	if opts.Footer == nil {
		opts.Footer = map[string]string{}
	}
	for _, kind := range []string{"js", "css"} {
		if b.opts.Banner != "" {
			opts.Banner[kind] = join(opts.Banner[kind], b.text(b.opts.Banner))
		}
		if b.opts.Footer != "" {
			opts.Footer[kind] = join(opts.Footer[kind], b.text(b.opts.Footer))
		}
	}
	return nil
}

func (b *Banner) text(s string) string {
	if b.opts.Raw {
		return s
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var sb strings.Builder
	sb.WriteString("/*!\n")
	for _, l := range lines {
		sb.WriteString(" * " + strings.ReplaceAll(l, "*/", "* /") + "\n")
	}
	sb.WriteString(" */")
	return sb.String()
}

func join(existing, s string) string {
	if existing == "" {
		return s
	}
	return existing + "\n" + s
}
