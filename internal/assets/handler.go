package assets

import (
	"bytes"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Handler serves the assets of the most recent successful build from memory.
// Requests for "/" or a directory fall back to its index.html.
func (p *Pipeline) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if strings.HasSuffix(r.URL.Path, "/") || name == "" {
			name = path.Join(name, "index.html")
		}

		p.mu.RLock()
		comp := p.compilation
		var (
			asset *Asset
			ok    bool
		)
		if comp != nil {
			asset, ok = comp.Asset(name)
		}
		p.mu.RUnlock()

		if comp == nil {
			http.Error(w, "Build not ready", http.StatusServiceUnavailable)
			return
		}
		if !ok {
			log.Debug().Str("path", r.URL.Path).Msg("Asset not found")
			http.NotFound(w, r)
			return
		}

		if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if asset.Info.Immutable {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		w.Header().Set("ETag", `"`+comp.Hash+`"`)

		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(asset.Source))
	})
}
