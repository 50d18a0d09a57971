package session

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/blackjack-client/internal/protocol"
)

func (s *Session) Join(name, roomID string) error {
	return s.do(Action{Kind: ActJoin, Name: name, RoomID: roomID})
}

func (s *Session) Ready() error { return s.do(Action{Kind: ActReady}) }

func (s *Session) PlaceBet(amount int) error {
	return s.do(Action{Kind: ActPlaceBet, Amount: amount})
}

func (s *Session) Hit() error { return s.do(Action{Kind: ActHit}) }

func (s *Session) Stand() error { return s.do(Action{Kind: ActStand}) }

func (s *Session) DoubleDown() error { return s.do(Action{Kind: ActDoubleDown}) }

func (s *Session) NextGame() error { return s.do(Action{Kind: ActNextGame}) }

// Leave sends leaveGame and forgets the seat without waiting for the server.
func (s *Session) Leave() error { return s.do(Action{Kind: ActLeave}) }

// dispatch runs on the loop. A refused action sends nothing and leaves
// LastError alone; a sent action clears it.
func (s *Session) dispatch(a Action) error {
	v := s.rec.View()
	if err := Check(a, s.st, v); err != nil {
		s.log.Debug("action refused", zap.String("action", string(a.Kind)), zap.Error(err))
		return err
	}

	var err error
	switch a.Kind {
	case ActJoin:
		err = s.join(a)

	case ActLeave:
		room := s.st.CurrentRoomID
		err = s.send(protocol.EvtLeaveGame, protocol.RoomRef{RoomID: room})
		s.resetSeat()
		s.leftRoom = room

	case ActReady:
		err = s.send(protocol.EvtPlayerReady, protocol.RoomRef{RoomID: s.st.CurrentRoomID})

	case ActPlaceBet:
		err = s.send(protocol.EvtPlaceBet, protocol.PlaceBet{Amount: a.Amount, RoomID: s.st.CurrentRoomID})

	case ActHit:
		err = s.send(protocol.EvtHit, protocol.RoomRef{RoomID: s.st.CurrentRoomID})

	case ActStand:
		err = s.send(protocol.EvtStand, protocol.RoomRef{RoomID: s.st.CurrentRoomID})

	case ActDoubleDown:
		err = s.send(protocol.EvtDoubleDown, protocol.RoomRef{RoomID: s.st.CurrentRoomID})

	case ActNextGame:
		err = s.send(protocol.EvtNextGame, protocol.RoomRef{RoomID: v.RoomID})
	}
	if err != nil {
		s.log.Warn("action not sent", zap.String("action", string(a.Kind)), zap.Error(err))
		return err
	}
	s.st.LastError = nil
	return nil
}

// join leaves the current room first when there is one, then asks for a
// seat. The seat is recorded only when the server acknowledges it.
func (s *Session) join(a Action) error {
	name, _ := NormalizeName(a.Name)
	room := strings.TrimSpace(a.RoomID)

	if cur := s.st.CurrentRoomID; cur != "" {
		if err := s.send(protocol.EvtLeaveGame, protocol.RoomRef{RoomID: cur}); err != nil {
			return err
		}
		s.resetSeat()
		s.leftRoom = cur
	}
	if s.leftRoom == room {
		s.leftRoom = ""
	}
	return s.send(protocol.EvtJoinGame, protocol.JoinGame{PlayerName: name, RoomID: room})
}

func (s *Session) send(event string, payload any) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	if err := s.t.Send(env); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}
