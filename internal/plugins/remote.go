package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/assets"
	"github.com/wolfeidau/assetpack/internal/client"
	"github.com/wolfeidau/assetpack/internal/loaders"
	"github.com/wolfeidau/assetpack/internal/options"
)

const remoteNamespace = "http-url"

// ErrHostNotAllowed indicates a remote import from a host outside allowedHosts
var ErrHostNotAllowed = errors.New("remote host not allowed")

type RemoteOptions struct {
	CacheDir     string   `yaml:"cacheDir"`
	AllowedHosts []string `yaml:"allowedHosts"`
	Retries      uint     `yaml:"retries"`
	Timeout      string   `yaml:"timeout"`
}

// Remote lets modules import "https://" URLs. Responses are cached according
// to their Cache-Control headers.
type Remote struct {
	opts    RemoteOptions
	timeout time.Duration
	fetcher *client.Fetcher
}

func newRemote(raw map[string]any) (assets.Plugin, error) {
	opts, err := decode[RemoteOptions](raw)
	if err != nil {
		return nil, err
	}

	r := &Remote{opts: *opts, timeout: 30 * time.Second}
	if opts.Timeout != "" {
		if r.timeout, err = time.ParseDuration(opts.Timeout); err != nil {
			return nil, fmt.Errorf("%w: timeout: %v", options.ErrInvalidOption, err)
		}
	}
	if opts.Retries == 0 {
		r.opts.Retries = 3
	}
	return r, nil
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) ConfigureBuild(ctx context.Context, opts *api.BuildOptions) error {
	if r.fetcher == nil {
		r.fetcher = client.NewFetcher(client.NewCachingHTTPClient(r.opts.CacheDir, r.timeout), r.opts.Retries)
	}
	opts.Plugins = append(opts.Plugins, r.esbuildPlugin(ctx))
	return nil
}

// esbuildPlugin fetches modules on behalf of the build running under ctx, so
// cancelling the build abandons any fetch still in flight.
func (r *Remote) esbuildPlugin(ctx context.Context) api.Plugin {
	return api.Plugin{
		Name: remoteNamespace,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `^https?://`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return r.resolve(args.Path)
				})

			// relative imports inside a remote module resolve against its URL
			build.OnResolve(api.OnResolveOptions{Filter: ".*", Namespace: remoteNamespace},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					base, err := url.Parse(args.Importer)
					if err != nil {
						return api.OnResolveResult{}, err
					}
					ref, err := url.Parse(args.Path)
					if err != nil {
						return api.OnResolveResult{}, err
					}
					return r.resolve(base.ResolveReference(ref).String())
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: remoteNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(r.opts.Retries))
					defer cancel()

					body, err := r.fetcher.Get(ctx, args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}

					log.Debug().Str("url", args.Path).Int("size", len(body)).Msg("Fetched remote module")

					contents := string(body)
					u, _ := url.Parse(args.Path)
					return api.OnLoadResult{
						Contents: &contents,
						Loader:   loaders.LoaderForExt(path.Base(u.Path)),
					}, nil
				})
		},
	}
}

func (r *Remote) resolve(raw string) (api.OnResolveResult, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return api.OnResolveResult{}, err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return api.OnResolveResult{}, fmt.Errorf("unsupported scheme %q in %s", u.Scheme, raw)
	}
	if len(r.opts.AllowedHosts) > 0 && !slices.Contains(r.opts.AllowedHosts, u.Hostname()) {
		return api.OnResolveResult{}, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Host)
	}
	return api.OnResolveResult{Path: u.String(), Namespace: remoteNamespace}, nil
}
