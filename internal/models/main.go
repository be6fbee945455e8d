// Package models defines the core data structures for backup entries,
// credentials, snapshots and artifacts.
package models

import (
	"strings"
	"time"
)

// MaskVisible is the number of leading characters Mask leaves readable.
const MaskVisible = 4

// Credentials authenticate one entry against its secret store. Either the
// AppRole pair or Token is set; the AppRole pair wins when both are.
type Credentials struct {
	// RoleID is the AppRole role identifier.
	RoleID string `json:"role_id,omitempty"`
	// SecretID is the AppRole secret identifier.
	SecretID string `json:"secret_id,omitempty"`
	// Token is a pre-issued client token.
	Token string `json:"token,omitempty"`
}

// HasAppRole reports whether both AppRole fields are present.
func (c Credentials) HasAppRole() bool {
	return c.RoleID != "" && c.SecretID != ""
}

// Empty reports whether no usable credential is configured.
func (c Credentials) Empty() bool {
	return !c.HasAppRole() && c.Token == ""
}

// String renders the credentials masked, so they are safe in %v and logs.
func (c Credentials) String() string {
	if c.HasAppRole() {
		return "approle(role_id=" + Mask(c.RoleID) + ", secret_id=" + Mask(c.SecretID) + ")"
	}
	if c.Token != "" {
		return "token(" + Mask(c.Token) + ")"
	}
	return "none"
}

// GoString keeps %#v masked as well.
func (c Credentials) GoString() string { return c.String() }

// Mask keeps the first MaskVisible characters of s and replaces the rest with '*'.
func Mask(s string) string {
	r := []rune(s)
	if len(r) <= MaskVisible {
		return string(r)
	}
	return string(r[:MaskVisible]) + strings.Repeat("*", len(r)-MaskVisible)
}

// Entry is one (server, root path) pair to back up.
type Entry struct {
	// Server is the secret store base address, e.g. https://vault.local:8200.
	Server string `json:"server"`
	// Mount is the KV engine mount; defaults to "secret".
	Mount string `json:"mount,omitempty"`
	// KVVersion selects the KV engine API: 1 or 2 (default).
	KVVersion int `json:"kv_version,omitempty"`
	// RootPath is the folder under Mount to capture.
	RootPath string `json:"root_path"`

	Credentials
}

// Label is a short "server root" description for logs and CLI output.
func (e Entry) Label() string {
	return e.Server + " " + e.RootPath
}

// EntryResult is the outcome of backing up one Entry.
type EntryResult struct {
	Server  string `json:"server"`
	Root    string `json:"root"`
	// Artifact is the stored artifact name; empty when the entry failed.
	Artifact string `json:"artifact,omitempty"`
	// Size is the packed artifact length in bytes.
	Size int `json:"size,omitempty"`
	// Leaves is the number of secrets captured.
	Leaves int `json:"leaves"`
	// Omitted is the number of leaves that failed to read.
	Omitted int `json:"omitted,omitempty"`
	// Abandoned is the number of sub-trees whose listing failed.
	Abandoned int `json:"abandoned,omitempty"`
	// Err is the entry failure, nil on success.
	Err error `json:"-"`
	// Error mirrors Err for JSON output.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the entry produced no artifact.
func (r EntryResult) Failed() bool { return r.Err != nil }

// Partial reports whether the artifact was stored with omissions.
func (r EntryResult) Partial() bool { return r.Err == nil && (r.Omitted > 0 || r.Abandoned > 0) }

// ArtifactInfo describes a stored artifact.
type ArtifactInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// String describes the entry with its credentials masked.
func (e Entry) String() string {
	return e.Label() + " " + e.Credentials.String()
}

// GoString keeps %#v masked as well.
func (e Entry) GoString() string { return e.String() }
