// Package auth guards the control API with a static bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// RequireToken rejects requests that do not carry "Authorization: Bearer <token>".
// An empty token disables the check.
func RequireToken(token string, log logrus.FieldLogger, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	log = log.WithField("component", "auth")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, ok := BearerToken(r)
		if !ok {
			log.WithField("path", r.URL.Path).Debug("Missing or malformed Authorization header")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			log.WithField("path", r.URL.Path).Warn("Invalid API token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the token of a Bearer Authorization header (RFC 7235,
// scheme case-insensitive). WebSocket clients cannot set headers, so the
// token query parameter is accepted as a fallback.
func BearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		fields := strings.Fields(header)
		if len(fields) < 2 || !strings.EqualFold(fields[0], "Bearer") {
			return "", false
		}
		token := strings.TrimSpace(strings.Join(fields[1:], " "))
		return token, token != ""
	}
	token := r.URL.Query().Get("token")
	return token, token != ""
}
