package device

import (
	"net/url"
	"strings"

	"github.com/edirooss/ptz-server/internal/domain/ptz"
)

// Key identifies one device in the registry.
type Key string

// Identity is the caller-supplied device identity.
// Password is accepted for parity with device credentials but never part of the key.
type Identity struct {
	Address  string
	Username string
	Password string
}

// Resolve derives the registry key for id. Identical inputs always yield the
// same key; cosmetic differences in the address (scheme and host case,
// surrounding whitespace, trailing slashes) do not split a device in two.
// The username is query-escaped so the first '@' always ends it.
func Resolve(id Identity) (Key, error) {
	addr := normalizeAddress(id.Address)
	if addr == "" {
		return "", ptz.InvalidArgument("identity.resolve", "device address required")
	}
	return Key(url.QueryEscape(strings.TrimSpace(id.Username)) + "@" + addr), nil
}

func normalizeAddress(raw string) string {
	s := strings.TrimRight(strings.TrimSpace(raw), "/")
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		return strings.ToLower(s)
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return strings.TrimRight(u.String(), "/")
}

// hostOf returns the address without scheme or path, used for derived stream URIs.
func hostOf(address string) string {
	s := strings.TrimSpace(address)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}
