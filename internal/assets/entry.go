package assets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetpack/internal/config"
)

const entryNamespace = "assetpack-entry"

// entryPlugin serves entries that list several sources as a synthetic module
// importing each of them in order.
func entryPlugin(cfg *config.Config) api.Plugin {
	return api.Plugin{
		Name: entryNamespace,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + entryNamespace + ":"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      strings.TrimPrefix(args.Path, entryNamespace+":"),
						Namespace: entryNamespace,
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: entryNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					ep, ok := cfg.Entry.Get(args.Path)
					if !ok {
						return api.OnLoadResult{}, fmt.Errorf("%w: %s", config.ErrEntryNotFound, args.Path)
					}

					contents, err := entrySource(cfg, ep)
					if err != nil {
						return api.OnLoadResult{}, err
					}

					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: cfg.Context,
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

func entrySource(cfg *config.Config, ep config.EntryPoint) (string, error) {
	var sb strings.Builder
	for _, imp := range ep.Import {
		src, err := cfg.ResolveSource(imp)
		if err != nil {
			return "", fmt.Errorf("entry %s: %w", ep.Name, err)
		}
		fmt.Fprintf(&sb, "import %s;\n", strconv.Quote(src))
	}
	return sb.String(), nil
}
