package relay

import (
	"net/http"
	"strconv"
	"strings"

	"nostrium.dev/encoders/hex"
)

// ServiceURL derives this relay's own ws:// or wss:// URL from an inbound
// HTTP request, the value an AUTH event's "relay" tag is checked against.
// Returns empty when auth isn't required, matching the teacher's own
// ServiceURL short-circuit.
func (s *Server) ServiceURL(req *http.Request) string {
	if !s.cfg.AuthRequired {
		return ""
	}
	host := req.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = req.Host
	}
	proto := req.Header.Get("X-Forwarded-Proto")
	switch proto {
	case "https":
		proto = "wss"
	case "http":
		proto = "ws"
	case "":
		if isNakedHostOrIP(host) {
			proto = "ws"
		} else {
			proto = "wss"
		}
	}
	return proto + "://" + host
}

func isNakedHostOrIP(host string) bool {
	if host == "localhost" || strings.Contains(host, ":") {
		return true
	}
	_, err := strconv.Atoi(strings.ReplaceAll(host, ".", ""))
	return err == nil
}

// AdminAuth reports whether pubkey is a configured relay owner.
func (s *Server) AdminAuth(pubkey []byte) bool { return s.isOwner(pubkey) }

// UserAuth reports whether pubkey may authenticate under the configured
// auth mode (whitelist/denylist/none).
func (s *Server) UserAuth(pubkey []byte) bool {
	hexKey := hex.Enc(pubkey)
	switch s.cfg.AuthMode {
	case "whitelist":
		for _, k := range s.cfg.AuthWhitelist {
			if k == hexKey {
				return true
			}
		}
		return false
	case "denylist":
		for _, k := range s.cfg.AuthDenylist {
			if k == hexKey {
				return false
			}
		}
		return true
	default:
		return true
	}
}
