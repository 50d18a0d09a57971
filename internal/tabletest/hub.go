package tabletest

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/blackjack-client/internal/protocol"
)

type closeReason int

const (
	reasonNone closeReason = iota
	// reasonLeft: the client went away on its own.
	reasonLeft
	// reasonKicked: the server closed the connection deliberately.
	reasonKicked
	// reasonDropped: the connection was cut without a close handshake.
	reasonDropped
)

// client is one logical connection. The hub closes out exactly once; reason
// is written before that and only read after out is drained.
type client struct {
	id        string
	transport string
	out       chan protocol.Envelope
	reason    closeReason
}

func newClient(id, transport string) *client {
	return &client{id: id, transport: transport, out: make(chan protocol.Envelope, 64)}
}

type hubMsg interface{ isHubMsg() }

type register struct {
	c     *client
	reply chan struct{}
}

type unregister struct{ id string }

type fromClient struct {
	id  string
	env protocol.Envelope
}

type push struct {
	id    string
	env   protocol.Envelope
	reply chan error
}

type broadcastMsg struct {
	room  string
	env   protocol.Envelope
	reply chan int
}

type disconnect struct {
	id     string
	reason closeReason
	reply  chan error
}

type lookup struct {
	id    string
	reply chan lookupResult
}

type lookupResult struct {
	c    *client
	gone closeReason
}

type getState struct {
	reply chan hubView
}

func (register) isHubMsg()     {}
func (unregister) isHubMsg()   {}
func (fromClient) isHubMsg()   {}
func (push) isHubMsg()         {}
func (broadcastMsg) isHubMsg() {}
func (disconnect) isHubMsg()   {}
func (lookup) isHubMsg()       {}
func (getState) isHubMsg()     {}

// Received is one envelope a client sent to the server.
type Received struct {
	ConnID   string
	Envelope protocol.Envelope
}

type ClientInfo struct {
	ID        string
	Transport string
	RoomID    string
	Player    string
}

type hubView struct {
	received []Received
	clients  []ClientInfo
}

// hub owns every connection and table. All of it is touched only by loop.
type hub struct {
	inbox    chan hubMsg
	clients  map[string]*client
	gone     map[string]closeReason
	tables   map[string]*table
	seatedIn map[string]string
	received []Received
	chips    int
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func newHub(parent context.Context, chips int, log *zap.Logger) *hub {
	ctx, cancel := context.WithCancel(parent)
	h := &hub{
		inbox:    make(chan hubMsg, 64),
		clients:  make(map[string]*client),
		gone:     make(map[string]closeReason),
		tables:   make(map[string]*table),
		seatedIn: make(map[string]string),
		chips:    chips,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *hub) send(m hubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case register:
				h.clients[msg.c.id] = msg.c
				delete(h.gone, msg.c.id)
				close(msg.reply)

			case unregister:
				h.remove(msg.id, reasonLeft)

			case fromClient:
				if _, ok := h.clients[msg.id]; !ok {
					break
				}
				h.received = append(h.received, Received{ConnID: msg.id, Envelope: msg.env})
				h.handle(msg.id, msg.env)

			case push:
				c := h.clients[msg.id]
				if c == nil {
					msg.reply <- ErrUnknownClient
					break
				}
				h.deliver(c, msg.env)
				msg.reply <- nil

			case broadcastMsg:
				n := 0
				for id, room := range h.seatedIn {
					if room == msg.room {
						if c := h.clients[id]; c != nil {
							h.deliver(c, msg.env)
							n++
						}
					}
				}
				msg.reply <- n

			case disconnect:
				if _, ok := h.clients[msg.id]; !ok {
					msg.reply <- ErrUnknownClient
					break
				}
				h.remove(msg.id, msg.reason)
				msg.reply <- nil

			case lookup:
				msg.reply <- lookupResult{c: h.clients[msg.id], gone: h.gone[msg.id]}

			case getState:
				msg.reply <- h.view()
			}
		}
	}
}

// deliver never blocks the loop; a client that cannot keep up is dropped.
func (h *hub) deliver(c *client, env protocol.Envelope) {
	select {
	case c.out <- env:
	default:
		h.log.Warn("client too slow, dropping", zap.String("sid", c.id))
		h.remove(c.id, reasonDropped)
	}
}

func (h *hub) remove(id string, reason closeReason) {
	c := h.clients[id]
	if c == nil {
		return
	}
	delete(h.clients, id)
	h.gone[id] = reason
	c.reason = reason
	close(c.out)
	h.unseat(id)
	h.log.Debug("client removed", zap.String("sid", id), zap.Int("reason", int(reason)))
}

func (h *hub) handle(id string, env protocol.Envelope) {
	switch env.Event {
	case protocol.EvtJoinGame:
		var p protocol.JoinGame
		if err := env.Decode(&p); err != nil {
			h.reply(id, protocol.EvtJoinError, protocol.ErrorPayload{Message: "Invalid join request"})
			return
		}
		h.join(id, strings.TrimSpace(p.PlayerName), strings.TrimSpace(p.RoomID))

	case protocol.EvtLeaveGame:
		h.unseat(id)

	case protocol.EvtPlayerReady:
		if t := h.tableOf(id); t != nil && t.ready(id) {
			h.broadcastState(t)
		}

	case protocol.EvtPlaceBet:
		var p protocol.PlaceBet
		t := h.tableOf(id)
		if t == nil || env.Decode(&p) != nil {
			h.reply(id, protocol.EvtError, protocol.ErrorPayload{Message: "Invalid bet"})
			return
		}
		if err := t.bet(id, p.Amount); err != nil {
			h.reply(id, protocol.EvtError, protocol.ErrorPayload{Message: err.Error()})
			return
		}
		h.broadcastState(t)
	}
}

func (h *hub) join(id, name, room string) {
	if name == "" || room == "" {
		h.reply(id, protocol.EvtJoinError, protocol.ErrorPayload{Message: "Player name and room are required"})
		return
	}
	for _, t := range h.tables {
		if t.hasName(name, id) {
			h.reply(id, protocol.EvtJoinError, protocol.ErrorPayload{Message: "Name already taken"})
			return
		}
	}

	h.unseat(id)
	t := h.tables[room]
	if t == nil {
		t = newTable(room)
		h.tables[room] = t
	}
	p := t.seat(id, name, h.chips)
	h.seatedIn[id] = room

	gs := protocol.FromSnapshot(t.snapshot())
	env, err := protocol.NewEnvelope(protocol.EvtPlayerJoined, protocol.PlayerJoined{
		Player:    gs.Players[p],
		GameState: gs,
	})
	if err != nil {
		h.log.Error("encode join", zap.Error(err))
		return
	}
	h.toTable(t, env)
}

func (h *hub) unseat(id string) {
	room, ok := h.seatedIn[id]
	if !ok {
		return
	}
	delete(h.seatedIn, id)
	t := h.tables[room]
	if t == nil {
		return
	}
	t.unseat(id)
	if len(t.players) == 0 {
		delete(h.tables, room)
		return
	}
	h.broadcastState(t)
}

func (h *hub) tableOf(id string) *table {
	return h.tables[h.seatedIn[id]]
}

func (h *hub) broadcastState(t *table) {
	env, err := protocol.NewEnvelope(protocol.EvtGameStateUpdate, protocol.GameStateUpdate{
		GameState: protocol.FromSnapshot(t.snapshot()),
	})
	if err != nil {
		h.log.Error("encode state", zap.Error(err))
		return
	}
	h.toTable(t, env)
}

func (h *hub) toTable(t *table, env protocol.Envelope) {
	for _, p := range slices.Clone(t.players) {
		if c := h.clients[p.ID]; c != nil {
			h.deliver(c, env)
		}
	}
}

func (h *hub) reply(id, event string, payload any) {
	c := h.clients[id]
	if c == nil {
		return
	}
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		h.log.Error("encode reply", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliver(c, env)
}

func (h *hub) view() hubView {
	v := hubView{received: slices.Clone(h.received)}
	for id, c := range h.clients {
		info := ClientInfo{ID: id, Transport: c.transport, RoomID: h.seatedIn[id]}
		if t := h.tableOf(id); t != nil {
			if i := t.index(id); i >= 0 {
				info.Player = t.players[i].Name
			}
		}
		v.clients = append(v.clients, info)
	}
	slices.SortFunc(v.clients, func(a, b ClientInfo) int { return strings.Compare(a.ID, b.ID) })
	return v
}

func (h *hub) shutdown() {
	for id := range h.clients {
		h.remove(id, reasonKicked)
	}
}
