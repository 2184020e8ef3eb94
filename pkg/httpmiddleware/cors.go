package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls the Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. "*" allows any origin.
	AllowOrigins []string
	// AllowMethods defaults to the simple methods plus PUT and DELETE.
	AllowMethods []string
	// AllowHeaders lists request headers the client may send.
	AllowHeaders []string
	// AllowCredentials permits cookies and Authorization headers. It is
	// incompatible with a wildcard origin; the concrete origin is echoed.
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// CORS returns a middleware answering preflight requests and attaching CORS
// headers to all responses.
func CORS(cfg CORSConfig) Middleware {
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		}
	}
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := allowedOrigin(cfg.AllowOrigins, origin)
			if allowed == "" {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", methods)
				if headers != "" {
					h.Set("Access-Control-Allow-Headers", headers)
				}
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowedOrigin(allowed []string, origin string) string {
	if origin == "" {
		return ""
	}
	for _, o := range allowed {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}
