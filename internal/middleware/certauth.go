// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
)

type ctxKey string

const operatorKey ctxKey = "operator"

// HealthPath is served without a client certificate.
const HealthPath = "/healthz"

// CertAuth is a middleware that enforces mutual TLS authentication.
//
// Every request except HealthPath must present a client certificate signed
// by the configured CA; the TLS layer verifies the chain. The certificate's
// Common Name is stored in the request context as the operator identity.
func CertAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == HealthPath {
			next.ServeHTTP(w, r)
			return
		}
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client certificate provided", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), operatorKey, peerCommonName(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFromContext returns the client certificate CN stored by CertAuth,
// or "" if none.
func OperatorFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(operatorKey).(string); ok {
		return s
	}
	return ""
}

// peerCommonName returns the CN of the verified client certificate, or "".
func peerCommonName(r *http.Request) string {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return ""
	}
	return r.TLS.PeerCertificates[0].Subject.CommonName
}
