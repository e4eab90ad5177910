package http

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type contextKey string

const clientIPContextKey contextKey = "client_ip"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so the first one listed is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// ExtractClientIP returns the client address, preferring the first
// X-Forwarded-For hop, then X-Real-IP, then RemoteAddr without its port.
func ExtractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIPFromContext returns the address stored by ClientIP.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey).(string)
	return ip
}

// ClientIP stores the client address in the request context and replaces
// RemoteAddr with it, so request logs show the real peer behind a proxy.
func ClientIP() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ExtractClientIP(r)
			r = r.WithContext(context.WithValue(r.Context(), clientIPContextKey, ip))
			r.RemoteAddr = ip
			next.ServeHTTP(w, r)
		})
	}
}

// NoCache marks responses as uncacheable unless the handler already set a
// Cache-Control header. The dev server rebuilds in place, so unhashed names
// must always be revalidated.
func NoCache() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&noCacheWriter{ResponseWriter: w}, r)
		})
	}
}

type noCacheWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (n *noCacheWriter) WriteHeader(code int) {
	if !n.wroteHeader {
		n.wroteHeader = true
		if n.Header().Get("Cache-Control") == "" {
			n.Header().Set("Cache-Control", "no-cache")
		}
	}
	n.ResponseWriter.WriteHeader(code)
}

func (n *noCacheWriter) Write(b []byte) (int, error) {
	if !n.wroteHeader {
		n.WriteHeader(http.StatusOK)
	}
	return n.ResponseWriter.Write(b)
}

// CORS allows cross-origin GETs from the given origins; an empty list allows any origin.
func CORS(origins []string) Middleware {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		MaxAge:         600,
	})
	return c.Handler
}

// Trace records a server span per request.
func Trace(operation string) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation)
	}
}
