package artifact

import (
	"fmt"
	"strings"
	"time"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
)

const (
	// Extension terminates every artifact name.
	Extension = ".bin"

	dateLayout = "2006-01-02"
	timeLayout = "1504"
)

// NameParts are the fields encoded in an artifact name.
type NameParts struct {
	Prefix     string
	Server     string
	Root       string
	CapturedAt time.Time
}

// Name builds <prefix>.<server>.<root>.<YYYY-MM-DD>.<HHMM>.bin in UTC.
// Each field is reduced to [A-Za-z0-9_-] so the dot stays an unambiguous
// separator: "https://vault.local:8200" becomes "vault_local_8200" and
// "secrets/db/" becomes "secrets_db".
//
// The mapping is lossy: "secrets/db" and "secrets_db" share a name, as do the
// http and https forms of one host. The snapshot payload carries the exact
// server and root; stores refuse a second put under an existing name.
func Name(prefix, server, root string, at time.Time) string {
	at = at.UTC()
	return strings.Join([]string{
		Sanitize(prefix),
		Sanitize(serverHost(server)),
		Sanitize(root),
		at.Format(dateLayout),
		at.Format(timeLayout),
	}, ".") + Extension
}

// ParseName reverses Name. Sanitized fields are returned as stored.
func ParseName(name string) (NameParts, error) {
	base, ok := strings.CutSuffix(name, Extension)
	if !ok {
		return NameParts{}, fmt.Errorf("%w: %q lacks %s suffix", berrors.ErrDecode, name, Extension)
	}
	fields := strings.Split(base, ".")
	if len(fields) != 5 {
		return NameParts{}, fmt.Errorf("%w: %q has %d fields, want 5", berrors.ErrDecode, name, len(fields))
	}
	at, err := time.Parse(dateLayout+"."+timeLayout, fields[3]+"."+fields[4])
	if err != nil {
		return NameParts{}, fmt.Errorf("%w: %q timestamp: %v", berrors.ErrDecode, name, err)
	}
	return NameParts{
		Prefix:     fields[0],
		Server:     fields[1],
		Root:       fields[2],
		CapturedAt: at,
	}, nil
}

// Sanitize maps every byte outside [A-Za-z0-9_-] to '_' and trims leading
// and trailing underscores. An empty result becomes "root".
func Sanitize(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			b[i] = '_'
		}
	}
	out := strings.Trim(string(b), "_")
	if out == "" {
		return "root"
	}
	return out
}

func serverHost(server string) string {
	if _, rest, ok := strings.Cut(server, "://"); ok {
		server = rest
	}
	return strings.TrimRight(server, "/")
}
