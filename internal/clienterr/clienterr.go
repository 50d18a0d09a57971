// Package clienterr holds the user-facing failure taxonomy shared by the
// transport and session layers. None of these failures is fatal; each one
// leaves the session in a state from which the user can join again.
package clienterr

type Kind string

const (
	// KindConnectivity: the health probe or every transport failed to open.
	KindConnectivity Kind = "connectivity"
	// KindTransportDropped: an established connection closed unexpectedly.
	KindTransportDropped Kind = "transport_dropped"
	// KindJoinRejected: the server refused a join.
	KindJoinRejected Kind = "join_rejected"
	// KindPrecondition: a local legality check failed; nothing was sent.
	KindPrecondition Kind = "precondition"
	// KindActionRejected: the server rejected an action that was sent.
	KindActionRejected Kind = "action_rejected"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Kind sentinels, for errors.Is(err, clienterr.ErrPrecondition) and friends.
var (
	ErrConnectivity     = &Error{Kind: KindConnectivity}
	ErrTransportDropped = &Error{Kind: KindTransportDropped}
	ErrJoinRejected     = &Error{Kind: KindJoinRejected}
	ErrPrecondition     = &Error{Kind: KindPrecondition}
	ErrActionRejected   = &Error{Kind: KindActionRejected}
)

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Msg: msg, Err: err} }

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels (no message) against any error of the same kind.
// Errors carrying a message only match themselves.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}
