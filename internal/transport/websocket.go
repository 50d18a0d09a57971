package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/DoyleJ11/blackjack-client/internal/protocol"
)

const readLimit = 1 << 20

type WebsocketDialer struct {
	HTTPClient *http.Client
}

func (WebsocketDialer) Name() string { return NameWebsocket }

func (d WebsocketDialer) Dial(ctx context.Context, baseURL string) (Conn, error) {
	u, err := websocketURL(baseURL)
	if err != nil {
		return nil, err
	}
	c, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	c.SetReadLimit(readLimit)

	// First frame is always the handshake carrying our connection id.
	var env protocol.Envelope
	if err := wsjson.Read(ctx, c, &env); err != nil {
		c.CloseNow()
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	var hs protocol.Handshake
	if env.Event != protocol.EvtConnect {
		c.CloseNow()
		return nil, fmt.Errorf("read handshake: unexpected %q", env.Event)
	}
	if err := env.Decode(&hs); err != nil || hs.SID == "" {
		c.CloseNow()
		return nil, fmt.Errorf("read handshake: missing sid")
	}
	return &wsConn{conn: c, id: hs.SID}, nil
}

type wsConn struct {
	conn *websocket.Conn
	id   string
}

func (c *wsConn) ID() string        { return c.id }
func (c *wsConn) Transport() string { return NameWebsocket }

func (c *wsConn) Recv(ctx context.Context) (protocol.Envelope, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return protocol.Envelope{}, fmt.Errorf("%w: %v", ErrServerClosed, err)
		}
		return protocol.Envelope{}, err
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		return protocol.Envelope{}, fmt.Errorf("%w: %q", ErrBadFrame, truncate(data, 64))
	}
	return env, nil
}

func (c *wsConn) Send(ctx context.Context, env protocol.Envelope) error {
	return wsjson.Write(ctx, c.conn, env)
}

func (c *wsConn) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "client disconnect")
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func websocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
