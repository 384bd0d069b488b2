package chat

import (
	"fmt"
	"log/slog"
	"time"
)

// State is a step in a chat turn.
type State int

const (
	Idle State = iota
	UserSaved
	Retrieved
	Generating
	Completed
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case UserSaved:
		return "user_saved"
	case Retrieved:
		return "retrieved"
	case Generating:
		return "generating"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Final reports whether no further transition is possible.
func (s State) Final() bool {
	return s == Completed || s == Errored
}

// next lists the forward transitions. Every non-final state may also
// move to Errored.
var next = map[State]State{
	Idle:       UserSaved,
	UserSaved:  Retrieved,
	Retrieved:  Generating,
	Generating: Completed,
}

// CanTransition reports whether a turn may move from one state to another.
func CanTransition(from, to State) bool {
	if from.Final() {
		return false
	}
	if to == Errored {
		return true
	}
	n, ok := next[from]
	return ok && n == to
}

// turn tracks one question through the orchestrator.
type turn struct {
	session string
	state   State
	err     error
	started time.Time
	logger  *slog.Logger
}

func newTurn(session string, logger *slog.Logger) *turn {
	return &turn{
		session: session,
		state:   Idle,
		started: time.Now(),
		logger:  logger.With("session", session),
	}
}

// to moves the turn forward. An illegal transition is a programming error.
func (t *turn) to(s State) {
	if !CanTransition(t.state, s) {
		panic(fmt.Sprintf("chat: illegal transition %s -> %s", t.state, s))
	}
	t.logger.Debug("turn transition", "from", t.state, "to", s)
	t.state = s
}

// fail moves the turn to Errored and returns err wrapped with the state
// the turn had reached.
func (t *turn) fail(err error) error {
	reached := t.state
	t.to(Errored)
	t.err = &TurnError{State: reached, Err: err}
	return t.err
}

func (t *turn) elapsed() time.Duration {
	return time.Since(t.started)
}
