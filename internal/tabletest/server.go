// Package tabletest is an in-process table server that speaks the client's
// wire protocol over both websocket and long-polling. It seats players,
// tracks readiness and bets, records everything clients send, and lets a
// test push arbitrary messages or cut connections in either of the two ways
// the client distinguishes.
package tabletest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/blackjack-client/internal/protocol"
	"github.com/DoyleJ11/blackjack-client/internal/transport"
)

var ErrUnknownClient = errors.New("unknown client")
var ErrServerStopped = errors.New("server stopped")

type Option func(*Server)

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithPollWindow sets how long GET /poll/{sid} waits before answering 204.
func WithPollWindow(d time.Duration) Option {
	return func(s *Server) { s.pollWindow = d }
}

func WithStartingChips(n int) Option {
	return func(s *Server) { s.chips = n }
}

type Server struct {
	log        *zap.Logger
	pollWindow time.Duration
	chips      int
	healthy    atomic.Bool
	hub        *hub
	cancel     context.CancelFunc
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		log:        zap.NewNop(),
		pollWindow: time.Second,
		chips:      1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthy.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.hub = newHub(ctx, s.chips, s.log)
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.health)
	r.Get("/ws", s.websocket)
	r.Route("/poll", func(r chi.Router) {
		r.Post("/", s.openPoll)
		r.Get("/{sid}", s.poll)
		r.Post("/{sid}", s.pollSend)
		r.Delete("/{sid}", s.pollClose)
	})
	return r
}

// Close kicks every client and stops the hub.
func (s *Server) Close() { s.cancel() }

func (s *Server) SetHealthy(ok bool) { s.healthy.Store(ok) }

// Push sends env to one connection.
func (s *Server) Push(sid string, env protocol.Envelope) error {
	reply := make(chan error, 1)
	if !s.hub.send(push{id: sid, env: env, reply: reply}) {
		return ErrServerStopped
	}
	return <-reply
}

// Broadcast sends env to everyone seated in room and reports how many.
func (s *Server) Broadcast(room string, env protocol.Envelope) int {
	reply := make(chan int, 1)
	if !s.hub.send(broadcastMsg{room: room, env: env, reply: reply}) {
		return 0
	}
	return <-reply
}

// Kick closes the connection from the server side: a 1000 close frame on
// websocket, 410 Gone on polling.
func (s *Server) Kick(sid string) error { return s.disconnect(sid, reasonKicked) }

// Drop cuts the connection without a close handshake.
func (s *Server) Drop(sid string) error { return s.disconnect(sid, reasonDropped) }

func (s *Server) disconnect(sid string, reason closeReason) error {
	reply := make(chan error, 1)
	if !s.hub.send(disconnect{id: sid, reason: reason, reply: reply}) {
		return ErrServerStopped
	}
	return <-reply
}

// Received returns every envelope clients have sent, in arrival order.
func (s *Server) Received() []Received {
	v, _ := s.state()
	return v.received
}

// Clients lists live connections ordered by id.
func (s *Server) Clients() []ClientInfo {
	v, _ := s.state()
	return v.clients
}

func (s *Server) state() (hubView, bool) {
	reply := make(chan hubView, 1)
	if !s.hub.send(getState{reply: reply}) {
		return hubView{}, false
	}
	return <-reply, true
}

func (s *Server) lookup(sid string) lookupResult {
	reply := make(chan lookupResult, 1)
	if !s.hub.send(lookup{id: sid, reply: reply}) {
		return lookupResult{gone: reasonKicked}
	}
	return <-reply
}

func (s *Server) register(c *client) bool {
	reply := make(chan struct{})
	if !s.hub.send(register{c: c, reply: reply}) {
		return false
	}
	<-reply
	return true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := transport.HealthResponse{Status: "ok"}
	code := http.StatusOK
	if !s.healthy.Load() {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
