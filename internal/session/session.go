// Package session owns the client's view of who it is and where it sits:
// connection status, server-assigned ids, the current room and the last
// user-visible error. All of it, together with the snapshot reconciler, is
// mutated by a single goroutine fed through an inbox. Transport events and
// user actions are serialized there, so no ordering between the two is
// left to chance.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/DoyleJ11/blackjack-client/internal/clienterr"
	"github.com/DoyleJ11/blackjack-client/internal/protocol"
	"github.com/DoyleJ11/blackjack-client/internal/reconciler"
	"github.com/DoyleJ11/blackjack-client/internal/transport"
)

var ErrClosed = errors.New("session closed")

// Transport is the part of transport.Manager the session drives.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(env protocol.Envelope) error
	Subscribe(fn func(transport.Event)) (dispose func())
}

type State struct {
	ConnectionStatus transport.Status
	// ConnectionID is the id the server assigned to this connection.
	ConnectionID string
	// LocalPlayerID is set only once the server acknowledged a join from
	// this connection, and cleared on leave or disconnect.
	LocalPlayerID string
	CurrentRoomID string
	LastError     error
}

// Update is what subscribers receive after every change.
type Update struct {
	State State
	View  reconciler.View
}

type Option func(*Session)

func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

type msg interface{ isSessionMsg() }

type fromTransport struct{ ev transport.Event }

type doAction struct {
	action Action
	reply  chan error
}

type barrier struct{ reply chan struct{} }

func (fromTransport) isSessionMsg() {}
func (doAction) isSessionMsg()      {}
func (barrier) isSessionMsg()       {}

type subscriber struct {
	id uint64
	fn func(Update)
}

type Session struct {
	t   Transport
	log *zap.Logger

	inbox  chan msg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Owned by loop.
	st       State
	rec      *reconciler.Reconciler
	leftRoom string

	latest atomic.Pointer[Update]

	mu      sync.Mutex
	subs    []subscriber
	nextSub uint64
	dispose func()

	closeOnce sync.Once
	closeErr  error
}

// New starts the session loop. It lives until Close or until parent is
// cancelled. Call Start to connect.
func New(parent context.Context, t Transport, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		t:      t,
		log:    zap.NewNop(),
		inbox:  make(chan msg, 64),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		st:     State{ConnectionStatus: transport.StatusDisconnected},
		rec:    reconciler.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.publish()

	go s.loop()
	return s
}

// Start subscribes to the transport and connects. It returns the outcome of
// the first connection attempt; retries continue in the background.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.dispose == nil {
		s.dispose = s.t.Subscribe(s.onTransportEvent)
	}
	s.mu.Unlock()
	return s.t.Connect(ctx)
}

// Close disconnects the transport, stops the loop and releases subscribers.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.t.Disconnect()
		s.sync()

		s.mu.Lock()
		if s.dispose != nil {
			s.dispose()
		}
		s.subs = nil
		s.mu.Unlock()

		s.cancel()
		<-s.done
	})
	return s.closeErr
}

func (s *Session) State() State { return s.latest.Load().State }

func (s *Session) View() reconciler.View { return s.latest.Load().View.Clone() }

// Subscribe registers fn for every Update. fn runs on the session loop and
// must not call the action methods; reading State or View is fine.
func (s *Session) Subscribe(fn func(Update)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Session) onTransportEvent(ev transport.Event) {
	select {
	case s.inbox <- fromTransport{ev: ev}:
	case <-s.ctx.Done():
	}
}

func (s *Session) do(a Action) error {
	reply := make(chan error, 1)
	select {
	case s.inbox <- doAction{action: a, reply: reply}:
	case <-s.ctx.Done():
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.ctx.Done():
		return ErrClosed
	}
}

// sync returns once every message queued before it has been handled.
func (s *Session) sync() {
	reply := make(chan struct{})
	select {
	case s.inbox <- barrier{reply: reply}:
	case <-s.ctx.Done():
		return
	}
	select {
	case <-reply:
	case <-s.ctx.Done():
	}
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case fromTransport:
				s.handleTransport(msg.ev)
				s.publish()

			case doAction:
				err := s.dispatch(msg.action)
				s.publish()
				msg.reply <- err

			case barrier:
				close(msg.reply)
			}
		}
	}
}

func (s *Session) handleTransport(ev transport.Event) {
	switch e := ev.(type) {
	case transport.StatusChanged:
		s.st.ConnectionStatus = e.To
		switch e.To {
		case transport.StatusConnected:
			s.st.LastError = nil
		case transport.StatusReconnecting:
			if e.Err != nil {
				s.st.LastError = e.Err
			}
		case transport.StatusFailed:
			s.resetSeat()
			s.st.ConnectionID = ""
			if e.Err != nil {
				s.st.LastError = e.Err
			}
		case transport.StatusDisconnected:
			s.resetSeat()
			s.st.ConnectionID = ""
		}

	case transport.Opened:
		s.st.ConnectionID = e.ConnID

	case transport.Closed:
		s.log.Info("connection dropped", zap.Bool("server_initiated", e.ServerInitiated), zap.Error(e.Err))
		s.resetSeat()
		s.st.ConnectionID = ""
		s.st.LastError = e.Err

	case transport.Received:
		s.handleEnvelope(e.Envelope)
	}
}

func (s *Session) handleEnvelope(env protocol.Envelope) {
	switch env.Event {
	case protocol.EvtGameStateUpdate:
		var p protocol.GameStateUpdate
		if err := env.Decode(&p); err != nil {
			s.log.Warn("bad game state", zap.Error(err))
			return
		}
		s.applyState(p.GameState)

	case protocol.EvtPlayerJoined:
		var p protocol.PlayerJoined
		if err := env.Decode(&p); err != nil {
			s.log.Warn("bad join ack", zap.Error(err))
			return
		}
		snap, err := p.GameState.ToSnapshot()
		if err != nil {
			s.log.Warn("bad join ack", zap.Error(err))
			return
		}
		if s.leftRoom != "" && snap.RoomID == s.leftRoom {
			s.log.Debug("ignoring join ack for room already left", zap.String("room", snap.RoomID))
			return
		}
		if p.Player.ID != "" && p.Player.ID == s.st.ConnectionID {
			s.st.LocalPlayerID = p.Player.ID
			s.st.CurrentRoomID = snap.RoomID
			s.st.LastError = nil
			s.rec.SetLocalPlayer(p.Player.ID)
			s.log.Info("joined", zap.String("room", snap.RoomID), zap.String("player", p.Player.Name))
		}
		s.rec.Apply(snap)

	case protocol.EvtJoinError:
		var p protocol.ErrorPayload
		if err := env.Decode(&p); err != nil || p.Message == "" {
			p.Message = "Failed to join game"
		}
		s.resetSeat()
		s.st.LastError = clienterr.New(clienterr.KindJoinRejected, p.Message)

	case protocol.EvtError:
		var p protocol.ErrorPayload
		if err := env.Decode(&p); err != nil || p.Message == "" {
			p.Message = "Server error"
		}
		s.st.LastError = clienterr.New(clienterr.KindActionRejected, p.Message)

	default:
		s.log.Debug("unhandled event", zap.String("event", env.Event))
	}
}

func (s *Session) applyState(gs *protocol.GameState) {
	snap, err := gs.ToSnapshot()
	if err != nil {
		s.log.Warn("bad game state", zap.Error(err))
		return
	}
	if s.leftRoom != "" && snap.RoomID == s.leftRoom {
		return
	}
	if !s.rec.Apply(snap) {
		s.log.Debug("stale snapshot discarded", zap.Uint64("seq", snap.Seq))
	}
}

// resetSeat forgets the seat and the held snapshot.
func (s *Session) resetSeat() {
	s.st.LocalPlayerID = ""
	s.st.CurrentRoomID = ""
	s.leftRoom = ""
	s.rec.Clear()
	s.rec.SetLocalPlayer("")
}

func (s *Session) publish() {
	u := &Update{State: s.st, View: s.rec.View()}
	s.latest.Store(u)

	s.mu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(Update{State: u.State, View: u.View.Clone()})
	}
}
