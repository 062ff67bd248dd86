package session

import (
	"github.com/apricopt/zoro-web/internal/cli/client"
)

// Phase is the session lifecycle position derived from a State
type Phase string

const (
	PhaseUninitialized   Phase = "uninitialized"
	PhaseLoading         Phase = "loading"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

// State is a snapshot of the authentication session. Snapshots are values:
// the User they point to is replaced on every fetch and never modified in place.
type State struct {
	User            *client.User `json:"user" yaml:"user"`
	Token           string       `json:"token" yaml:"token"`
	IsLoading       bool         `json:"isLoading" yaml:"is_loading"`
	IsAuthenticated bool         `json:"isAuthenticated" yaml:"is_authenticated"`
}

// Phase reports where the snapshot sits in the session state machine
func (s State) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseLoading
	case s.IsAuthenticated:
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}

// Equal compares two snapshots by value
func (s State) Equal(o State) bool {
	if s.Token != o.Token || s.IsLoading != o.IsLoading || s.IsAuthenticated != o.IsAuthenticated {
		return false
	}
	if s.User == nil || o.User == nil {
		return s.User == o.User
	}
	return *s.User == *o.User
}

// normalize enforces that no user survives without a token and that only a
// snapshot with both a user and a token counts as authenticated
func normalize(s State) State {
	if s.Token == "" {
		s.User = nil
		s.IsAuthenticated = false
	}
	if s.User == nil {
		s.IsAuthenticated = false
	}
	return s
}

func unauthenticated() State {
	return State{}
}
