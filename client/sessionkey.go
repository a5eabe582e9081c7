// Package client is the multi-relay session manager: normalized relay
// sessions, a per-connection worker state machine, and a logical
// multi-relay session that fans requests out to a membership of workers.
package client

import (
	"net/url"
	"strings"

	"nostrium.dev/utils/errorf"
)

// SessionKey is the normalized (relay URL, owner pubkey) pair used as the
// session registry key.
type SessionKey struct {
	URL    string
	Pubkey string
}

var defaultPort = map[string]string{
	"ws": "80", "http": "80",
	"wss": "443", "https": "443",
}

// NewSessionKey normalizes rawurl and pubkeyHex: scheme and host are
// lowercased, the scheme's default port is stripped, the path defaults to
// "/", and pubkeyHex is lowercased and checked against ^[0-9a-f]{64}$.
func NewSessionKey(rawurl, pubkeyHex string) (SessionKey, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return SessionKey{}, errorf.E("invalid relay url %q: %w", rawurl, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return SessionKey{}, errorf.E("relay url %q has no scheme", rawurl)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return SessionKey{}, errorf.E("relay url %q has no host", rawurl)
	}
	port := u.Port()
	if port != "" && port == defaultPort[scheme] {
		port = ""
	}
	hostport := host
	if port != "" {
		hostport = host + ":" + port
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	norm := scheme + "://" + hostport + path
	if u.RawQuery != "" {
		norm += "?" + u.RawQuery
	}

	pk := strings.ToLower(pubkeyHex)
	if !validPubkeyHex(pk) {
		return SessionKey{}, errorf.E("invalid pubkey %q", pubkeyHex)
	}
	return SessionKey{URL: norm, Pubkey: pk}, nil
}

func validPubkeyHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

func (k SessionKey) String() string { return k.URL + "#" + k.Pubkey }
