package protocol

import "fmt"

// Message types. Each value is the "type" discriminator on the wire and must
// be unique across the set.
const (
	TypePlay           = "Play"
	TypePause          = "Pause"
	TypeSeeked         = "Seeked"
	TypeStats          = "Stats"
	TypeRequestStats   = "RequestStats"
	TypeStatsResponse  = "StatsResponse"
	TypeStatsResponses = "StatsResponses"
	TypeDisconnected   = "Disconnected"
	TypeUnknown        = "Unknown"
)

var kinds = []string{
	TypePlay,
	TypePause,
	TypeSeeked,
	TypeStats,
	TypeRequestStats,
	TypeStatsResponse,
	TypeStatsResponses,
	TypeDisconnected,
	TypeUnknown,
}

func init() {
	if err := checkUnique(kinds); err != nil {
		panic(err)
	}
}

func checkUnique(types []string) error {
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			return fmt.Errorf("protocol: duplicate message type %q", t)
		}
		seen[t] = struct{}{}
	}
	return nil
}

// Kinds returns every message discriminator known to this package.
func Kinds() []string {
	out := make([]string, len(kinds))
	copy(out, kinds)
	return out
}

// ParticipantID identifies a connection inside a room. Assigned by the room service.
type ParticipantID uint64

// Message is one of the variant messages exchanged over the party channel.
// The set is closed: only the types in this file implement it.
type Message interface {
	Type() string
	isMessage()
}

// Play asks every player in the room to start playback.
type Play struct {
	Initiator string
}

// Pause asks every player in the room to stop playback.
type Pause struct {
	Initiator string
}

// Seeked moves every guest's playhead to TimeSeconds.
type Seeked struct {
	Initiator   string
	TimeSeconds float64
}

// Stats is a client's periodic self-report.
type Stats struct {
	Initiator   string
	TimeSeconds float64
	PlayerState PlayerState
	IsDirector  bool
}

// RequestStats asks the room service to broadcast a fresh roster snapshot.
type RequestStats struct{}

// StatsResponse is one participant's entry in a roster snapshot.
type StatsResponse struct {
	Name        string
	ID          ParticipantID
	TimeSeconds float64
	PlayerState PlayerState
	IsDirector  bool
}

// StatsResponses is a full roster snapshot. DirectorName is nil when the
// room has no known director.
type StatsResponses struct {
	Responses    []StatsResponse
	DirectorName *string
}

// Disconnected reports that a participant left the room.
type Disconnected struct {
	ID ParticipantID
}

// Unknown stands in for any payload that could not be decoded.
type Unknown struct{}

func (Play) Type() string           { return TypePlay }
func (Pause) Type() string          { return TypePause }
func (Seeked) Type() string         { return TypeSeeked }
func (Stats) Type() string          { return TypeStats }
func (RequestStats) Type() string   { return TypeRequestStats }
func (StatsResponse) Type() string  { return TypeStatsResponse }
func (StatsResponses) Type() string { return TypeStatsResponses }
func (Disconnected) Type() string   { return TypeDisconnected }
func (Unknown) Type() string        { return TypeUnknown }

func (Play) isMessage()           {}
func (Pause) isMessage()          {}
func (Seeked) isMessage()         {}
func (Stats) isMessage()          {}
func (RequestStats) isMessage()   {}
func (StatsResponse) isMessage()  {}
func (StatsResponses) isMessage() {}
func (Disconnected) isMessage()   {}
func (Unknown) isMessage()        {}
