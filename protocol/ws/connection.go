package ws

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gobwas/httphead"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"nostrium.dev/utils/context"
	"nostrium.dev/utils/errorf"
)

// Connection is the client-side WebSocket transport for one relay worker,
// wrapping github.com/gobwas/ws's low-level dialer/reader/writer instead
// of a higher-level client library, matching the low-allocation style the
// rest of this module's wire path uses.
type Connection struct {
	conn   net.Conn
	reader *wsutil.Reader

	controlHandler wsutil.FrameHandlerFunc
}

// NewConnection dials url (ws:// or wss://) and completes the WebSocket
// upgrade, sending header as additional request headers.
func NewConnection(ctx context.T, rawurl string, header http.Header) (*Connection, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, err
	}

	if header == nil {
		header = http.Header{}
	}
	header.Set("Sec-WebSocket-Extensions", negotiateDeflate())

	dialer := ws.Dialer{
		Header: ws.HandshakeHeaderHTTP(header),
	}
	if u.Scheme == "wss" {
		dialer.TLSConfig = &tls.Config{}
	}

	conn, _, _, err := dialer.Dial(ctx, rawurl)
	if err != nil {
		return nil, errorf.E("upgrade_error: %w", err)
	}

	c := &Connection{conn: conn}
	c.reader = wsutil.NewClientSideReader(conn)
	c.controlHandler = wsutil.ControlFrameHandler(conn, ws.StateClientSide)
	return c, nil
}

// WriteMessage writes a single text frame.
func (c *Connection) WriteMessage(p []byte) error {
	return wsutil.WriteClientText(c.conn, p)
}

// ReadMessage blocks for the next text frame, transparently answering
// control frames (ping/pong/close) inline.
func (c *Connection) ReadMessage() ([]byte, error) {
	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return nil, errorf.E("stream_error: %w", err)
		}
		if hdr.OpCode.IsControl() {
			if err := c.controlHandler(hdr, c.reader); err != nil {
				return nil, errorf.E("stream_error: %w", err)
			}
			continue
		}
		if hdr.OpCode != ws.OpText && hdr.OpCode != ws.OpBinary {
			if err := c.reader.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		buf := make([]byte, hdr.Length)
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			return nil, errorf.E("stream_error: %w", err)
		}
		if hdr.Masked {
			ws.Cipher(buf, hdr.Mask, 0)
		}
		return buf, nil
	}
}

// Close sends a close frame and closes the underlying TCP connection.
func (c *Connection) Close() error {
	_ = wsutil.WriteClientMessage(c.conn, ws.StateClientSide, ws.OpClose, nil)
	return c.conn.Close()
}

// negotiateDeflate builds the permessage-deflate extension offer with
// gobwas/httphead. NewConnection sends it on every dial; Connection does
// not decompress frames, whatever the relay answers.
func negotiateDeflate() string {
	var parsed []httphead.Option
	parsed = append(parsed, httphead.NewOption("permessage-deflate", nil))
	var sb strings.Builder
	httphead.WriteOptions(&sb, parsed)
	return sb.String()
}
