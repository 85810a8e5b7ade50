package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"yeti/core"
	"yeti/metrics"
)

// corsMiddleware adds CORS headers for configured origins
func (a *API) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range a.config.API.AllowedOrigins {
			if origin == allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				break
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if a.config.API.TLS {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// jwtAuthMiddleware resolves the bearer token into a Principal.
// The token subject is looked up on every request so disabled users and
// role changes take effect immediately.
func (a *API) jwtAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractTokenFromRequest(r)
		if tokenString == "" {
			metrics.AuthenticationFailures.WithLabelValues("missing_token").Inc()
			writeError(w, r, http.StatusUnauthorized, "Authentication required", nil, a.logger)
			return
		}

		claims, err := ParseToken(tokenString, a.config.Auth.JWTSecret, a.config.Auth.Issuer)
		if err != nil {
			metrics.AuthenticationFailures.WithLabelValues("invalid_token").Inc()
			writeError(w, r, http.StatusUnauthorized, "Invalid or expired token", err, a.logger)
			return
		}

		uid, err := claims.UserID()
		if err != nil {
			metrics.AuthenticationFailures.WithLabelValues("invalid_subject").Inc()
			writeError(w, r, http.StatusUnauthorized, "Invalid or expired token", err, a.logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.DBReadTimeout)
		user, err := a.users.GetUser(ctx, uid)
		cancel()
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				metrics.AuthenticationFailures.WithLabelValues("unknown_user").Inc()
				writeError(w, r, http.StatusUnauthorized, "Invalid or expired token", err, a.logger)
				return
			}
			writeError(w, r, http.StatusInternalServerError, "Authentication failed", err, a.logger)
			return
		}

		if !user.Enabled {
			metrics.AuthenticationFailures.WithLabelValues("user_disabled").Inc()
			a.logger.Warnw("AUDIT: Disabled user presented a valid token",
				"user_id", uid.Hex(),
				"username", user.Username,
				"ip", getRealIP(r, a.config.API.TrustProxy))
			writeError(w, r, http.StatusUnauthorized, "User account is disabled", nil, a.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), core.NewPrincipal(user))))
	})
}

// RequirePermission allows the request only if the principal holds perm
func (a *API) RequirePermission(perm core.Permission) func(http.Handler) http.Handler {
	return a.requirePrincipal("permission:"+string(perm), func(p *core.Principal) bool {
		return p.HasPermission(perm)
	})
}

// RequireRole allows the request only if the principal holds role
func (a *API) RequireRole(role string) func(http.Handler) http.Handler {
	return a.requirePrincipal("role:"+role, func(p *core.Principal) bool {
		return p.HasRole(role)
	})
}

func (a *API) requirePrincipal(requirement string, allowed func(*core.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipal(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "Authentication required", nil, a.logger)
				return
			}
			if !allowed(p) {
				metrics.AuthorizationDenials.WithLabelValues(requirement).Inc()
				a.logger.Warnw("AUDIT: Permission denied",
					"username", p.Username,
					"user_id", p.ID.Hex(),
					"required", requirement,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()))
				writeError(w, r, http.StatusForbidden, "Insufficient permissions", nil, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractTokenFromRequest reads a Bearer token, falling back to the auth_token cookie
func extractTokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	cookie, err := r.Cookie("auth_token")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// getRealIP returns the client IP, honouring X-Forwarded-For / X-Real-IP only behind a trusted proxy
func getRealIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ip := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
		if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xrip) != nil {
			return xrip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
