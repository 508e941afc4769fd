package main

import (
	"fmt"
	"io"

	"github.com/jrsteele09/go-moment-client/internal/utils"
	"github.com/jrsteele09/go-moment-client/realtime"
)

const (
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"

	GreenInverse = "\033[7;32m"

	ResetColor = "\033[0m"
)

var eventColors = map[string]string{
	"connected":    Green,
	"disconnected": Yellow,
	"error":        Red,
	"unauthorized": Magenta,
	"match":        GreenInverse,
	"session_end":  Cyan,
}

func printColoured(w io.Writer, kind, format string, args ...any) {
	colour, ok := eventColors[kind]
	if !ok {
		colour = Gray
	}
	fmt.Fprintf(w, "%s%-12s%s %s\n", colour, kind, ResetColor, fmt.Sprintf(format, args...))
}

func printConnectionEvent(w io.Writer, ev realtime.ConnectionEvent) {
	name := realtime.EventName(ev)
	detail := realtime.Match(ev,
		func(realtime.Connected) string { return "session open" },
		func(d realtime.Disconnected) string { return fmt.Sprintf("code=%d reason=%q", d.Code, d.Reason) },
		func(e realtime.Error) string { return e.Message },
		func(realtime.Unauthorized) string { return "credentials rejected, log in again" },
	)
	printColoured(w, name, "%s", detail)
}

func printMatch(w io.Writer, m realtime.MatchFrame) {
	u := m.User
	printColoured(w, realtime.TypeMatch, "#%d %s, %d: %s", u.ID, utils.ValueOr(u.FirstName, "someone"), utils.Value(u.Age), utils.Value(u.Bio))
}
