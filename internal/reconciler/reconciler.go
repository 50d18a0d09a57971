// Package reconciler holds the single authoritative game snapshot on the
// client and derives the view the front end renders from.
//
// A Reconciler is not safe for concurrent use; it belongs to exactly one
// owner (the session loop).
package reconciler

import (
	"github.com/DoyleJ11/blackjack-client/internal/game"
)

type Reconciler struct {
	held    *game.Snapshot
	localID string
	view    *View
}

func New() *Reconciler { return &Reconciler{} }

// Apply replaces the held snapshot wholesale. When both the held and the
// incoming snapshot for the same room carry sequence numbers, an incoming
// snapshot that is not newer is discarded and Apply returns false.
func (r *Reconciler) Apply(s *game.Snapshot) bool {
	if s == nil {
		return false
	}
	if h := r.held; h != nil && h.RoomID == s.RoomID && h.Seq > 0 && s.Seq > 0 && s.Seq <= h.Seq {
		return false
	}
	r.held = s.Clone()
	r.view = nil
	return true
}

func (r *Reconciler) SetLocalPlayer(id string) {
	if r.localID == id {
		return
	}
	r.localID = id
	r.view = nil
}

func (r *Reconciler) LocalPlayer() string { return r.localID }

// Clear drops the held snapshot. The next Apply is accepted unconditionally.
func (r *Reconciler) Clear() {
	r.held = nil
	r.view = nil
}

// Snapshot returns a copy of the held snapshot, or nil.
func (r *Reconciler) Snapshot() *game.Snapshot { return r.held.Clone() }

// View is recomputed only after the snapshot or local identity changed.
// Each call returns its own copy.
func (r *Reconciler) View() View {
	if r.view == nil {
		v := Derive(r.held, r.localID)
		r.view = &v
	}
	return r.view.Clone()
}
