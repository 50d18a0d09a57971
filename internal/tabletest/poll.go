package tabletest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/blackjack-client/internal/protocol"
	"github.com/DoyleJ11/blackjack-client/internal/transport"
)

func (s *Server) openPoll(w http.ResponseWriter, r *http.Request) {
	c := newClient(uuid.NewString(), transport.NamePolling)
	if !s.register(c) {
		http.Error(w, "server stopped", http.StatusServiceUnavailable)
		return
	}
	s.log.Debug("polling client connected", zap.String("sid", c.id))
	writeJSON(w, http.StatusOK, protocol.Handshake{SID: c.id})
}

// closedStatus maps how a session ended to the status its next request sees.
func closedStatus(reason closeReason) int {
	switch reason {
	case reasonKicked:
		return http.StatusGone
	case reasonDropped:
		return http.StatusInternalServerError
	default:
		return http.StatusNotFound
	}
}

func (s *Server) poll(w http.ResponseWriter, r *http.Request) {
	res := s.lookup(chi.URLParam(r, "sid"))
	if res.c == nil {
		w.WriteHeader(closedStatus(res.gone))
		return
	}
	c := res.c

	t := time.NewTimer(s.pollWindow)
	defer t.Stop()

	var batch []protocol.Envelope
	select {
	case env, ok := <-c.out:
		if !ok {
			w.WriteHeader(closedStatus(c.reason))
			return
		}
		batch = append(batch, env)
	case <-t.C:
		w.WriteHeader(http.StatusNoContent)
		return
	case <-r.Context().Done():
		return
	}

	// Whatever else is already queued rides along.
drain:
	for {
		select {
		case env, ok := <-c.out:
			if !ok {
				break drain
			}
			batch = append(batch, env)
		default:
			break drain
		}
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) pollSend(w http.ResponseWriter, r *http.Request) {
	res := s.lookup(chi.URLParam(r, "sid"))
	if res.c == nil {
		w.WriteHeader(closedStatus(res.gone))
		return
	}
	var env protocol.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.Event == "" {
		http.Error(w, "bad envelope", http.StatusBadRequest)
		return
	}
	s.hub.send(fromClient{id: res.c.id, env: env})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pollClose(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	res := s.lookup(sid)
	if res.c == nil {
		w.WriteHeader(closedStatus(res.gone))
		return
	}
	s.hub.send(unregister{id: sid})
	w.WriteHeader(http.StatusNoContent)
}
