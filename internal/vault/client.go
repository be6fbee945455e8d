// Package vault is a minimal HashiCorp Vault HTTP client covering what a
// backup needs: AppRole or token authentication and KV v1/v2 list and read.
package vault

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"github.com/atinyakov/vaultkeeper/internal/models"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	defaultMount    = "secret"
	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 2

	tokenHeader = "X-Vault-Token"
)

// Config describes how to reach one Vault server.
type Config struct {
	// Address is the server base URL, e.g. https://vault.local:8200.
	Address string
	// Mount is the KV engine mount path. Defaults to "secret".
	Mount string
	// KVVersion is 1 or 2. Zero means 2.
	KVVersion int
	// Timeout bounds every single HTTP attempt.
	Timeout time.Duration
	// RetryMax is the number of retries on connection errors and 5xx.
	// Zero means the default of 2; a negative value disables retries.
	RetryMax int
	// CACert optionally points at a PEM bundle used to verify the server.
	CACert string
}

// Client talks to one Vault server. It is not safe for concurrent use
// across different credential sets; create one per entry.
type Client struct {
	cfg   Config
	base  *url.URL
	http  *retryablehttp.Client
	token string
	log   *zap.Logger
}

// NewClient validates cfg and builds a client with bounded timeouts.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("vault address is required")
	}
	base, err := url.Parse(cfg.Address)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid vault address %q", cfg.Address)
	}
	if cfg.Mount == "" {
		cfg.Mount = defaultMount
	}
	cfg.Mount = strings.Trim(cfg.Mount, "/")
	switch cfg.KVVersion {
	case 0:
		cfg.KVVersion = 2
	case 1, 2:
	default:
		return nil, fmt.Errorf("unsupported kv version %d", cfg.KVVersion)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	switch {
	case cfg.RetryMax == 0:
		cfg.RetryMax = defaultRetryMax
	case cfg.RetryMax < 0:
		cfg.RetryMax = 0
	}
	if log == nil {
		log = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSHandshakeTimeout: cfg.Timeout,
	}
	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport, Timeout: cfg.Timeout}
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveledLogger{log: log.Named("http")}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{cfg: cfg, base: base, http: rc, log: log}, nil
}

// Address returns the configured server address.
func (c *Client) Address() string { return c.cfg.Address }

// SetToken installs a client token for subsequent calls.
func (c *Client) SetToken(token string) { c.token = token }

// Authenticate logs in with AppRole when the pair is present, otherwise
// validates the raw token with a lookup-self call.
func (c *Client) Authenticate(ctx context.Context, creds models.Credentials) error {
	switch {
	case creds.HasAppRole():
		token, err := c.Login(ctx, creds.RoleID, creds.SecretID)
		if err != nil {
			return err
		}
		c.SetToken(token)
		return nil
	case creds.Token != "":
		c.SetToken(creds.Token)
		if _, err := c.do(ctx, http.MethodGet, "auth/token/lookup-self", nil, nil); err != nil {
			return authError(err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %w", berrors.ErrAuthenticationFailed, berrors.ErrNoCredentials)
	}
}

// Login exchanges an AppRole pair for a client token.
func (c *Client) Login(ctx context.Context, roleID, secretID string) (string, error) {
	body := map[string]string{"role_id": roleID, "secret_id": secretID}
	resp, err := c.do(ctx, http.MethodPost, "auth/approle/login", nil, body)
	if err != nil {
		return "", authError(err)
	}
	if resp.Auth == nil || resp.Auth.ClientToken == "" {
		return "", fmt.Errorf("%w: login response carries no token", berrors.ErrAuthenticationFailed)
	}
	c.log.Debug("approle login succeeded",
		zap.String("role_id", models.Mask(roleID)),
		zap.Duration("lease", time.Duration(resp.Auth.LeaseDuration)*time.Second))
	return resp.Auth.ClientToken, nil
}

// List returns the child names of folder path p. Folders end with "/".
// Vault answers 404 for an empty or missing folder; that is an empty list.
func (c *Client) List(ctx context.Context, p string) ([]string, error) {
	q := url.Values{"list": {"true"}}
	resp, err := c.do(ctx, http.MethodGet, c.listPath(p), q, nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	var data struct {
		Keys []string `json:"keys"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decode list %q: %w", p, err)
	}
	return data.Keys, nil
}

// Read returns the full key/value content of leaf p.
func (c *Client) Read(ctx context.Context, p string) (models.SecretContent, error) {
	resp, err := c.do(ctx, http.MethodGet, c.readPath(p), nil, nil)
	if err != nil {
		return nil, err
	}
	raw := resp.Data
	if c.cfg.KVVersion == 2 {
		var v2 struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &v2); err != nil {
			return nil, fmt.Errorf("decode secret %q: %w", p, err)
		}
		raw = v2.Data
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("secret %q has no current data", p)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var content models.SecretContent
	if err := dec.Decode(&content); err != nil {
		return nil, fmt.Errorf("decode secret %q: %w", p, err)
	}
	return content, nil
}

func (c *Client) listPath(p string) string {
	p = strings.TrimLeft(p, "/")
	if c.cfg.KVVersion == 2 {
		return c.cfg.Mount + "/metadata/" + p
	}
	return c.cfg.Mount + "/" + p
}

func (c *Client) readPath(p string) string {
	p = strings.Trim(p, "/")
	if c.cfg.KVVersion == 2 {
		return c.cfg.Mount + "/data/" + p
	}
	return c.cfg.Mount + "/" + p
}

type response struct {
	Data json.RawMessage `json:"data"`
	Auth *struct {
		ClientToken   string `json:"client_token"`
		LeaseDuration int    `json:"lease_duration"`
	} `json:"auth"`
	Errors []string `json:"errors"`
}

// StatusError is a non-2xx answer from Vault.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Errors []string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("vault %s %s: status %d", e.Method, e.Path, e.Code)
	if len(e.Errors) > 0 {
		msg += ": " + strings.Join(e.Errors, "; ")
	}
	return msg
}

func (c *Client) do(ctx context.Context, method, p string, query url.Values, body any) (*response, error) {
	u := c.base.JoinPath("v1", p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = query.Encode()

	var payload any
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault %s %s: %w", method, p, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out response
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil && res.StatusCode < 300 {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &StatusError{Method: method, Path: p, Code: res.StatusCode, Errors: out.Errors}
	}
	return &out, nil
}

func authError(err error) error {
	return fmt.Errorf("%w: %w", berrors.ErrAuthenticationFailed, err)
}
