package protocol

import (
	"encoding/json"
	"fmt"
)

// Wire shapes. Pointer fields let Deserialize tell a missing field from a
// zero value; every field listed without omitempty is required.

type head struct {
	Type *string `json:"type"`
}

type namedWire struct {
	Type string  `json:"type"`
	Name *string `json:"name"`
}

type seekedWire struct {
	Type string   `json:"type"`
	Name *string  `json:"name"`
	Time *float64 `json:"time"`
}

type statsWire struct {
	Type        string       `json:"type"`
	Name        *string      `json:"name"`
	Time        *float64     `json:"time"`
	PlayerState *PlayerState `json:"player_state"`
	Director    *bool        `json:"director"`
}

// statsResponseWire is used both standalone and as a StatsResponses entry,
// where the room service leaves out the type field. playerState is accepted
// on input for peers that spell the field in camelCase.
type statsResponseWire struct {
	Type             string         `json:"type,omitempty"`
	Name             *string        `json:"name"`
	ID               *ParticipantID `json:"id"`
	Time             *float64       `json:"time"`
	PlayerState      *PlayerState   `json:"player_state,omitempty"`
	PlayerStateCamel *PlayerState   `json:"playerState,omitempty"`
	Director         *bool          `json:"director"`
}

type statsResponsesWire struct {
	Type      string               `json:"type"`
	Responses *[]statsResponseWire `json:"responses"`
	Director  *string              `json:"director"`
}

type disconnectedWire struct {
	Type string         `json:"type"`
	ID   *ParticipantID `json:"id"`
}

type bareWire struct {
	Type string `json:"type"`
}

// Serialize encodes m as a self-describing JSON object. Numeric fields are
// written as JSON numbers. It fails only for values JSON cannot represent,
// such as a NaN time.
func Serialize(m Message) ([]byte, error) {
	var v any
	switch m := m.(type) {
	case Play:
		v = namedWire{Type: TypePlay, Name: &m.Initiator}
	case Pause:
		v = namedWire{Type: TypePause, Name: &m.Initiator}
	case Seeked:
		v = seekedWire{Type: TypeSeeked, Name: &m.Initiator, Time: &m.TimeSeconds}
	case Stats:
		v = statsWire{
			Type:        TypeStats,
			Name:        &m.Initiator,
			Time:        &m.TimeSeconds,
			PlayerState: &m.PlayerState,
			Director:    &m.IsDirector,
		}
	case RequestStats:
		v = bareWire{Type: TypeRequestStats}
	case StatsResponse:
		w := toStatsResponseWire(m)
		w.Type = TypeStatsResponse
		v = w
	case StatsResponses:
		entries := make([]statsResponseWire, len(m.Responses))
		for i, r := range m.Responses {
			entries[i] = toStatsResponseWire(r)
		}
		v = statsResponsesWire{Type: TypeStatsResponses, Responses: &entries, Director: m.DirectorName}
	case Disconnected:
		v = disconnectedWire{Type: TypeDisconnected, ID: &m.ID}
	case Unknown:
		v = bareWire{Type: TypeUnknown}
	case nil:
		return nil, fmt.Errorf("serialize: nil message")
	default:
		return nil, fmt.Errorf("serialize: unsupported message %T", m)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", m.Type(), err)
	}
	return data, nil
}

func toStatsResponseWire(r StatsResponse) statsResponseWire {
	return statsResponseWire{
		Name:        &r.Name,
		ID:          &r.ID,
		Time:        &r.TimeSeconds,
		PlayerState: &r.PlayerState,
		Director:    &r.IsDirector,
	}
}

// Deserialize decodes a wire payload. It never fails: anything that is not a
// JSON object with a recognised type and every required field correctly
// typed comes back as Unknown.
func Deserialize(data []byte) Message {
	m, err := decode(data)
	if err != nil {
		return Unknown{}
	}
	return m
}

// Decode is Deserialize with the reason for a rejection kept.
func Decode(data []byte) (Message, error) {
	return decode(data)
}

func decode(data []byte) (Message, error) {
	var h head
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if h.Type == nil {
		return nil, fmt.Errorf("decode: missing type")
	}

	switch *h.Type {
	case TypePlay, TypePause:
		var w namedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", *h.Type, err)
		}
		if w.Name == nil {
			return nil, missing(*h.Type, "name")
		}
		if *h.Type == TypePlay {
			return Play{Initiator: *w.Name}, nil
		}
		return Pause{Initiator: *w.Name}, nil

	case TypeSeeked:
		var w seekedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", *h.Type, err)
		}
		switch {
		case w.Name == nil:
			return nil, missing(*h.Type, "name")
		case w.Time == nil:
			return nil, missing(*h.Type, "time")
		}
		return Seeked{Initiator: *w.Name, TimeSeconds: *w.Time}, nil

	case TypeStats:
		var w statsWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", *h.Type, err)
		}
		switch {
		case w.Name == nil:
			return nil, missing(*h.Type, "name")
		case w.Time == nil:
			return nil, missing(*h.Type, "time")
		case w.PlayerState == nil:
			return nil, missing(*h.Type, "player_state")
		case w.Director == nil:
			return nil, missing(*h.Type, "director")
		}
		return Stats{
			Initiator:   *w.Name,
			TimeSeconds: *w.Time,
			PlayerState: *w.PlayerState,
			IsDirector:  *w.Director,
		}, nil

	case TypeRequestStats:
		return RequestStats{}, nil

	case TypeStatsResponse:
		var w statsResponseWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", *h.Type, err)
		}
		return fromStatsResponseWire(w)

	case TypeStatsResponses:
		var w statsResponsesWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", *h.Type, err)
		}
		if w.Responses == nil {
			return nil, missing(*h.Type, "responses")
		}
		out := StatsResponses{
			Responses:    make([]StatsResponse, 0, len(*w.Responses)),
			DirectorName: w.Director,
		}
		for i, e := range *w.Responses {
			r, err := fromStatsResponseWire(e)
			if err != nil {
				return nil, fmt.Errorf("decode %s: response %d: %w", *h.Type, i, err)
			}
			out.Responses = append(out.Responses, r)
		}
		return out, nil

	case TypeDisconnected:
		var w disconnectedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", *h.Type, err)
		}
		if w.ID == nil {
			return nil, missing(*h.Type, "id")
		}
		return Disconnected{ID: *w.ID}, nil
	}

	return nil, fmt.Errorf("decode: unrecognised type %q", *h.Type)
}

func fromStatsResponseWire(w statsResponseWire) (StatsResponse, error) {
	state := w.PlayerState
	if state == nil {
		state = w.PlayerStateCamel
	}
	switch {
	case w.Name == nil:
		return StatsResponse{}, missing(TypeStatsResponse, "name")
	case w.ID == nil:
		return StatsResponse{}, missing(TypeStatsResponse, "id")
	case w.Time == nil:
		return StatsResponse{}, missing(TypeStatsResponse, "time")
	case state == nil:
		return StatsResponse{}, missing(TypeStatsResponse, "player_state")
	case w.Director == nil:
		return StatsResponse{}, missing(TypeStatsResponse, "director")
	}
	return StatsResponse{
		Name:        *w.Name,
		ID:          *w.ID,
		TimeSeconds: *w.Time,
		PlayerState: *state,
		IsDirector:  *w.Director,
	}, nil
}

func missing(msgType, field string) error {
	return fmt.Errorf("decode %s: missing %s", msgType, field)
}
