package transport

import (
	"context"
	"errors"

	"github.com/DoyleJ11/blackjack-client/internal/protocol"
)

var ErrServerClosed = errors.New("server disconnect")
var ErrBadFrame = errors.New("malformed frame")
var ErrNotConnected = errors.New("not connected to server")
var ErrSendBufferFull = errors.New("send buffer full")
var ErrUnknownTransport = errors.New("unknown transport")
var ErrNoTransports = errors.New("no transports configured")

const (
	NameWebsocket = "websocket"
	NamePolling   = "polling"
)

// Conn is one logical connection to the table server. Recv is only ever
// called from a single goroutine; Send may run concurrently with it.
type Conn interface {
	// ID is the server-assigned connection id.
	ID() string
	Transport() string
	// Recv blocks for the next envelope. A server-initiated close wraps
	// ErrServerClosed; an undecodable frame wraps ErrBadFrame and leaves the
	// connection usable.
	Recv(ctx context.Context) (protocol.Envelope, error)
	Send(ctx context.Context, env protocol.Envelope) error
	Close() error
}

type Dialer interface {
	Name() string
	Dial(ctx context.Context, baseURL string) (Conn, error)
}

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Event interface{ isTransportEvent() }

// StatusChanged is emitted on every status transition. Err carries the
// failure that caused it, if any.
type StatusChanged struct {
	From Status
	To   Status
	Err  error
}

// Opened is emitted right before the transition to StatusConnected.
type Opened struct {
	ConnID    string
	Transport string
}

// Closed is emitted when an established connection ends without the
// client asking for it.
type Closed struct {
	ServerInitiated bool
	Err             error
}

type Received struct {
	Envelope protocol.Envelope
}

func (StatusChanged) isTransportEvent() {}
func (Opened) isTransportEvent()        {}
func (Closed) isTransportEvent()        {}
func (Received) isTransportEvent()      {}
