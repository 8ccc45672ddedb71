package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// fromCacheHeader is set by httpcache on responses served from the cache.
const fromCacheHeader = httpcache.XFromCache

// NewCachingHTTPClient creates an HTTP client that caches GET responses and
// revalidates them with the server's ETag. Responses are kept on disk under
// cacheDir so repeated CLI runs share them, or in memory if cacheDir is empty.
func NewCachingHTTPClient(cacheDir string) *http.Client {
	var cache httpcache.Cache = httpcache.NewMemoryCache()
	if cacheDir != "" {
		cache = diskcache.New(cacheDir)
	}

	return &http.Client{
		Transport: httpcache.NewTransport(cache),
	}
}
