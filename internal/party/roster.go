package party

import "github.com/corvino/cinema/internal/protocol"

// Participant is one entry of the latest roster snapshot.
type Participant struct {
	ID          protocol.ParticipantID
	Name        string
	State       protocol.PlayerState
	TimeSeconds float64
	IsDirector  bool
}

// ApplySnapshot builds a roster from a StatsResponses broadcast. The result
// replaces any previous roster wholesale; participants missing from s are
// gone. The director name is nil when the room service knows no director.
func ApplySnapshot(s protocol.StatsResponses) ([]Participant, *string) {
	roster := make([]Participant, 0, len(s.Responses))
	for _, r := range s.Responses {
		roster = append(roster, Participant{
			ID:          r.ID,
			Name:        r.Name,
			State:       r.PlayerState,
			TimeSeconds: r.TimeSeconds,
			IsDirector:  r.IsDirector,
		})
	}
	var director *string
	if s.DirectorName != nil {
		name := *s.DirectorName
		director = &name
	}
	return roster, director
}

// FindDirector returns the first participant flagged as director.
func FindDirector(roster []Participant) (Participant, bool) {
	for _, p := range roster {
		if p.IsDirector {
			return p, true
		}
	}
	return Participant{}, false
}

// Remove returns roster without the participant with the given id. The input
// slice is not modified.
func Remove(roster []Participant, id protocol.ParticipantID) []Participant {
	out := make([]Participant, 0, len(roster))
	for _, p := range roster {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
