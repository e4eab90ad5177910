package client

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// NewCachingHTTPClient creates an HTTP client that honours Cache-Control on
// remote modules. With a cacheDir the cache persists across builds, otherwise
// it lives for the life of the process.
func NewCachingHTTPClient(cacheDir string, timeout time.Duration) *http.Client {
	var cache httpcache.Cache = httpcache.NewMemoryCache()
	if cacheDir != "" {
		cache = diskcache.New(cacheDir)
	}

	return &http.Client{
		Transport: httpcache.NewTransport(cache),
		Timeout:   timeout,
	}
}

// FromCache reports whether the response was served by the caching transport.
func FromCache(resp *http.Response) bool {
	return resp.Header.Get(httpcache.XFromCache) != ""
}
