package api

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"receptionist/internal/config"
)

// HTTPAuth applies API-key auth to the admin endpoints and per-client rate limiting to all of them.
// The voice webhook and health check are never behind a key.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyChecker
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		keys:    newKeyChecker(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			if required, guarded := requiredPermissionHTTP(r); guarded {
				err := a.keys.check(
					strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader())),
					strings.TrimSpace(r.Header.Get(a.keys.extraHeader())),
					required,
				)
				if err != nil {
					statusCode := http.StatusUnauthorized
					if errors.Is(err, errPermissionDenied) {
						statusCode = http.StatusForbidden
					}
					writeError(w, statusCode, err.Error())
					return
				}
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requiredPermissionHTTP reports whether the path needs a key and which permission it needs.
func requiredPermissionHTTP(r *http.Request) (string, bool) {
	path := r.URL.Path
	if !strings.HasPrefix(path, "/business/") {
		return "", false
	}
	if strings.HasSuffix(path, "/export") {
		return permExport, true
	}
	return permReadBusiness, true
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader())); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}
