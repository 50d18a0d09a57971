package tabletest

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/blackjack-client/internal/protocol"
	"github.com/DoyleJ11/blackjack-client/internal/transport"
)

const writeTimeout = 3 * time.Second

func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("accept failed", zap.Error(err))
		return
	}

	c := newClient(uuid.NewString(), transport.NameWebsocket)
	hs, err := protocol.NewEnvelope(protocol.EvtConnect, protocol.Handshake{SID: c.id})
	if err != nil {
		conn.CloseNow()
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	err = wsjson.Write(ctx, conn, hs)
	cancel()
	if err != nil || !s.register(c) {
		conn.CloseNow()
		return
	}
	defer s.hub.send(unregister{id: c.id})
	s.log.Debug("websocket client connected", zap.String("sid", c.id))

	// Writer goroutine
	go func() {
		for env := range c.out {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := wsjson.Write(ctx, conn, env)
			cancel()
			if err != nil {
				conn.CloseNow()
				return
			}
		}
		switch c.reason {
		case reasonKicked:
			_ = conn.Close(websocket.StatusNormalClosure, "server disconnect")
		case reasonDropped:
			conn.CloseNow()
		}
	}()

	// Reader loop
	for {
		var env protocol.Envelope
		if err := wsjson.Read(r.Context(), conn, &env); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				s.log.Debug("websocket client left", zap.String("sid", c.id))
			default:
				s.log.Debug("websocket read ended", zap.String("sid", c.id), zap.Error(err))
			}
			conn.CloseNow()
			return
		}
		s.hub.send(fromClient{id: c.id, env: env})
	}
}
