package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"net/http"
	"net/http/httptest"
	"testing"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func TestCertAuth_HealthBypass(t *testing.T) {
	dummy := &dummyHandler{}
	h := CertAuth(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", HealthPath, nil)
	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Error("expected next handler to be called for health check")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", rec.Code)
	}
}

func TestCertAuth_NoCertificate(t *testing.T) {
	for _, path := range []string{"/api/artifacts", "/api/backup"} {
		dummy := &dummyHandler{}
		h := CertAuth(dummy)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", path, nil)
		h.ServeHTTP(rec, req)

		if dummy.called {
			t.Errorf("%s: did not expect next handler to be called without certificate", path)
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 Unauthorized, got %d", path, rec.Code)
		}
	}
}

func TestCertAuth_TLSWithoutPeer(t *testing.T) {
	dummy := &dummyHandler{}
	req := httptest.NewRequest("GET", "/api/artifacts", nil)
	req.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()
	CertAuth(dummy).ServeHTTP(rec, req)

	if dummy.called || rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without peer certificates, got %d (called=%v)", rec.Code, dummy.called)
	}
}

func TestCertAuth_ValidCertificate(t *testing.T) {
	cert := &x509.Certificate{Subject: pkix.Name{CommonName: "operator-alice"}}
	ts := &tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}

	dummy := &dummyHandler{}
	h := CertAuth(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/artifacts", nil)
	req.TLS = ts
	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Error("expected next handler to be called when valid certificate provided")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 OK, got %d", rec.Code)
	}
	if op := OperatorFromContext(dummy.ctx); op != "operator-alice" {
		t.Errorf("expected operator 'operator-alice', got '%s'", op)
	}
}

func TestOperatorFromContext(t *testing.T) {
	if empty := OperatorFromContext(context.Background()); empty != "" {
		t.Errorf("expected empty string for missing operator, got '%s'", empty)
	}
	ctx := context.WithValue(context.Background(), operatorKey, "bob")
	if val := OperatorFromContext(ctx); val != "bob" {
		t.Errorf("expected 'bob', got '%s'", val)
	}
}
