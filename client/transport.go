package client

import (
	"net/http"

	"nostrium.dev/utils/context"
	"nostrium.dev/protocol/ws"
)

// Conn is the minimal transport surface a relay worker drives: one text
// frame at a time, each direction independently blocking.
type Conn interface {
	WriteMessage(p []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Transport dials a relay URL and returns a ready Conn. Swapped out in
// tests for a fake that never touches the network.
type Transport interface {
	Dial(ctx context.T, rawurl string, header http.Header) (Conn, error)
}

// wsTransport is the production Transport, backed by protocol/ws's
// gobwas/ws client connection.
type wsTransport struct{}

func (wsTransport) Dial(ctx context.T, rawurl string, header http.Header) (Conn, error) {
	return ws.NewConnection(ctx, rawurl, header)
}

// DefaultTransport is the Transport used when Options.Transport is nil.
var DefaultTransport Transport = wsTransport{}
