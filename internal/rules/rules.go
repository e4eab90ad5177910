// Package rules evaluates module rules against file paths and turns them into
// an esbuild plugin. Rules are tried in declaration order; the first rule
// whose test matches (and whose exclude does not) decides how a file loads.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/config"
	"github.com/wolfeidau/assetpack/internal/loaders"
)

const pluginName = "assetpack-rules"

// Matcher is a compiled rule.
type Matcher struct {
	Index int
	Rule  config.Rule

	filter  string
	test    *regexp.Regexp
	exclude *regexp.Regexp
	chain   loaders.Chain
}

// Compile compiles every rule, keeping declaration order.
func Compile(rules []config.Rule) ([]*Matcher, error) {
	matchers := make([]*Matcher, 0, len(rules))
	for i, rule := range rules {
		m, err := compileRule(i, rule)
		if err != nil {
			return nil, fmt.Errorf("module.rules[%d]: %w", i, err)
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

func compileRule(i int, rule config.Rule) (*Matcher, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	filter, err := rule.Test.Expr()
	if err != nil {
		return nil, err
	}
	test, err := rule.Test.Compile()
	if err != nil {
		return nil, err
	}

	m := &Matcher{Index: i, Rule: rule, filter: filter, test: test}

	if !rule.Exclude.IsZero() {
		if m.exclude, err = rule.Exclude.Compile(); err != nil {
			return nil, err
		}
	}

	for _, ref := range rule.Use {
		l, err := loaders.New(ref.Loader, ref.Options)
		if err != nil {
			return nil, err
		}
		m.chain = append(m.chain, l)
	}
	return m, nil
}

// Matches reports whether the rule applies to path.
func (m *Matcher) Matches(path string) bool {
	path = filepath.ToSlash(path)
	if !m.test.MatchString(path) {
		return false
	}
	return m.exclude == nil || !m.exclude.MatchString(path)
}

// Match returns the first matcher that applies to path, or nil.
func Match(matchers []*Matcher, path string) *Matcher {
	for _, m := range matchers {
		if m.Matches(path) {
			return m
		}
	}
	return nil
}

// Transform runs the rule over contents already read from path.
func (m *Matcher) Transform(path string, contents []byte) (*loaders.Source, error) {
	src := &loaders.Source{Path: path, Contents: string(contents)}

	if len(m.chain) > 0 {
		if err := m.chain.Apply(src); err != nil {
			return nil, err
		}
		return src, nil
	}

	switch m.Rule.Type {
	case config.AssetResource:
		src.Loader = api.LoaderFile
	case config.AssetInline:
		src.Loader = api.LoaderDataURL
	case config.AssetSource:
		src.Loader = api.LoaderText
	case config.Asset:
		src.Loader = api.LoaderDataURL
		if len(contents) > m.Rule.InlineMaxSize() {
			src.Loader = api.LoaderFile
		}
	case config.JSON:
		src.Loader = api.LoaderJSON
	default: // javascript/auto
		src.Loader = loaders.LoaderForExt(path)
	}
	return src, nil
}

// Load reads path and runs the rule over it.
func (m *Matcher) Load(path string) (*loaders.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return m.Transform(path, data)
}

// Plugin registers one OnLoad callback per rule, in rule order. esbuild stops
// at the first callback that returns contents, which gives first match wins.
func Plugin(matchers []*Matcher) api.Plugin {
	return api.Plugin{
		Name: pluginName,
		Setup: func(build api.PluginBuild) {
			for _, m := range matchers {
				build.OnLoad(api.OnLoadOptions{Filter: m.filter, Namespace: "file"},
					func(args api.OnLoadArgs) (api.OnLoadResult, error) {
						if !m.Matches(args.Path) {
							// excluded; leave it to later rules or esbuild's defaults
							return api.OnLoadResult{}, nil
						}

						src, err := m.Load(args.Path)
						if err != nil {
							return api.OnLoadResult{}, err
						}

						log.Debug().
							Str("path", args.Path).
							Int("rule", m.Index).
							Msg("Rule matched")

						resolveDir := filepath.Dir(args.Path)
						return api.OnLoadResult{
							PluginName: pluginName,
							Contents:   &src.Contents,
							ResolveDir: resolveDir,
							Loader:     src.Loader,
							WatchFiles: []string{args.Path},
						}, nil
					})
			}
		},
	}
}
