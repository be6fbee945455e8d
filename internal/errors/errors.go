// Package errors defines the failure classes of a backup or restore run.
//
// Callers compare with errors.Is; producers wrap with fmt.Errorf("...: %w")
// so the server, path and cause stay in the message:
//
//	return fmt.Errorf("read %s: %w: %v", path, errors.ErrLeafReadFailed, err)
package errors

import "errors"

// Per-entry backup failures. An entry that fails with one of these is skipped,
// the batch continues.
var (
	// ErrAuthenticationFailed indicates the secret store rejected the entry's credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNoCredentials indicates an entry carries neither an AppRole pair nor a token.
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrEnumerationFailed indicates a list call on a folder failed; that sub-tree is abandoned.
	ErrEnumerationFailed = errors.New("enumeration failed")

	// ErrLeafReadFailed indicates a single secret could not be read; it is omitted from the snapshot.
	ErrLeafReadFailed = errors.New("leaf read failed")

	// ErrUploadFailed indicates the packed artifact could not be stored.
	ErrUploadFailed = errors.New("upload failed")
)

// Restore failures.
var (
	// ErrNotFound indicates the named artifact does not exist in the object store.
	ErrNotFound = errors.New("artifact not found")

	// ErrDownloadFailed indicates the object store failed while fetching an artifact.
	ErrDownloadFailed = errors.New("download failed")

	// ErrTamperDetected indicates the integrity tag did not match; nothing was decrypted.
	ErrTamperDetected = errors.New("tamper detected")

	// ErrDecode indicates a malformed container or an unparsable payload.
	ErrDecode = errors.New("decode error")
)

// Startup and contract failures.
var (
	// ErrInvalidSalt indicates a salt of the wrong length reached key derivation.
	ErrInvalidSalt = errors.New("invalid salt length")

	// ErrPassphraseMissing indicates the passphrase file is absent or empty.
	ErrPassphraseMissing = errors.New("passphrase file missing")
)
