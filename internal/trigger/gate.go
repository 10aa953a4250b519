package trigger

import (
	"log/slog"

	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// Gate evaluates push events against a branch allow-list. A non-matching event
// is a no-op, never an error.
type Gate struct {
	branches map[string]struct{}
}

// NewGate creates a gate from a branch allow-list. An empty list admits nothing.
func NewGate(branches []string) *Gate {
	set := make(map[string]struct{}, len(branches))
	for _, b := range branches {
		if b != "" {
			set[b] = struct{}{}
		}
	}
	return &Gate{branches: set}
}

// Admit reports whether the event should start a pipeline run.
// Branch deletion pushes are always ignored.
func (g *Gate) Admit(ev *PushEvent) bool {
	if ev == nil || ev.Deleted {
		return false
	}
	if _, ok := g.branches[ev.Branch]; !ok {
		slog.Debug("Push event ignored by branch gate", logfields.Branch(ev.Branch))
		return false
	}
	return true
}
