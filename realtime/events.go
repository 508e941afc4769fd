package realtime

import "fmt"

// ConnectionEvent is one observable session transition. The set of variants
// is closed: Connected, Disconnected, Error and Unauthorized.
type ConnectionEvent interface {
	connectionEvent()
}

type Connected struct{}

// Disconnected ends a session on any close other than CloseUnauthorized.
type Disconnected struct {
	Code   int
	Reason string
}

// Error ends a session that failed below the websocket close handshake, or
// reports a connect attempt that could not start.
type Error struct {
	Message string
}

// Unauthorized ends a session the server rejected for its credentials.
type Unauthorized struct{}

func (Connected) connectionEvent()    {}
func (Disconnected) connectionEvent() {}
func (Error) connectionEvent()        {}
func (Unauthorized) connectionEvent() {}

// Match calls the function for ev's variant and returns its result. Every
// variant needs a handler, so adding one breaks every call site.
func Match[T any](
	ev ConnectionEvent,
	connected func(Connected) T,
	disconnected func(Disconnected) T,
	failed func(Error) T,
	unauthorized func(Unauthorized) T,
) T {
	switch e := ev.(type) {
	case Connected:
		return connected(e)
	case Disconnected:
		return disconnected(e)
	case Error:
		return failed(e)
	case Unauthorized:
		return unauthorized(e)
	}
	panic(fmt.Sprintf("realtime: unknown connection event %T", ev))
}

// EventName returns a stable lowercase name for ev.
func EventName(ev ConnectionEvent) string {
	return Match(ev,
		func(Connected) string { return "connected" },
		func(Disconnected) string { return "disconnected" },
		func(Error) string { return "error" },
		func(Unauthorized) string { return "unauthorized" },
	)
}
