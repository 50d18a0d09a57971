package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DoyleJ11/blackjack-client/internal/protocol"
)

// PollingDialer speaks the long-polling fallback:
//
//	POST   /poll        -> {"sid": "..."}
//	GET    /poll/{sid}  -> [envelope, ...] (204 when the poll window elapses)
//	POST   /poll/{sid}  <- envelope
//	DELETE /poll/{sid}
//
// 410 Gone on any session request means the server closed the session.
type PollingDialer struct {
	HTTPClient *http.Client
}

func (PollingDialer) Name() string { return NamePolling }

func (d PollingDialer) Dial(ctx context.Context, baseURL string) (Conn, error) {
	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimRight(baseURL, "/") + "/poll"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, nil)
	if err != nil {
		return nil, fmt.Errorf("open poll session: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open poll session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open poll session: status %d", resp.StatusCode)
	}
	var hs protocol.Handshake
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil || hs.SID == "" {
		return nil, fmt.Errorf("open poll session: missing sid")
	}
	return &pollConn{
		client:  client,
		session: base + "/" + url.PathEscape(hs.SID),
		id:      hs.SID,
	}, nil
}

type pollConn struct {
	client  *http.Client
	session string
	id      string
	pending []protocol.Envelope
}

func (c *pollConn) ID() string        { return c.id }
func (c *pollConn) Transport() string { return NamePolling }

func (c *pollConn) Recv(ctx context.Context) (protocol.Envelope, error) {
	for len(c.pending) == 0 {
		batch, err := c.poll(ctx)
		if err != nil {
			return protocol.Envelope{}, err
		}
		c.pending = batch
	}
	env := c.pending[0]
	c.pending = c.pending[1:]
	return env, nil
}

func (c *pollConn) poll(ctx context.Context) ([]protocol.Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.session, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	case http.StatusGone:
		return nil, ErrServerClosed
	default:
		return nil, fmt.Errorf("poll: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var batch []protocol.Envelope
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadFrame, truncate(body, 64))
	}
	return batch, nil
}

func (c *pollConn) Send(ctx context.Context, env protocol.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.session, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return ErrServerClosed
	case resp.StatusCode >= 300:
		return fmt.Errorf("send %s: status %d", env.Event, resp.StatusCode)
	}
	return nil
}

func (c *pollConn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.session, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
