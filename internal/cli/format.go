package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/corvino/cinema/internal/party"
	"github.com/corvino/cinema/internal/protocol"
)

var senderColors = []string{
	"\033[36m", // Cyan
	"\033[32m", // Green
	"\033[33m", // Yellow
	"\033[35m", // Magenta
	"\033[34m", // Blue
	"\033[91m", // Light red
	"\033[96m", // Light cyan
	"\033[92m", // Light green
}

const ansiReset = "\033[0m"

// senderColor returns a deterministic ANSI color for a participant name.
func senderColor(name string) string {
	var h uint32
	for _, c := range name {
		h = h*31 + uint32(c)
	}
	return senderColors[h%uint32(len(senderColors))]
}

// MovieTime renders seconds as hh:mm:ss.
func MovieTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	s := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// parseMovieTime accepts plain seconds ("42.5") or colon form ("1:02",
// "01:02:03").
func parseMovieTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	var total float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

// formatParticipant renders one roster line, e.g.
//
//	[Playing] alice (director) 00:00:51
func formatParticipant(p party.Participant, color bool) string {
	name := p.Name
	if color {
		name = senderColor(p.Name) + p.Name + ansiReset
	}
	role := ""
	if p.IsDirector {
		role = " (director)"
	}
	return fmt.Sprintf("[%s] %s%s %s", p.State, name, role, MovieTime(p.TimeSeconds))
}

func formatRoster(st party.Status, color bool) string {
	if st.Role == party.Solo {
		return "Not in a party."
	}
	if len(st.Participants) == 0 {
		return "No participants reported yet."
	}
	var b strings.Builder
	for i, p := range st.Participants {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(formatParticipant(p, color))
	}
	return b.String()
}

func formatStatus(st party.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\n", st.Role)
	if st.Room != "" {
		fmt.Fprintf(&b, "Room: %s\n", st.Room)
	}
	if st.Video != "" {
		fmt.Fprintf(&b, "Video: %s\n", st.Video)
	}
	fmt.Fprintf(&b, "Player: %s %s / %s\n", st.State, MovieTime(st.TimeSeconds), MovieTime(st.Duration))
	if st.DirectorName != "" {
		fmt.Fprintf(&b, "Director: %s\n", st.DirectorName)
	}
	if st.CatchUpPending {
		b.WriteString("Waiting to catch up with the director.\n")
	}
	fmt.Fprintf(&b, "Participants: %d", len(st.Participants))
	return b.String()
}

// formatEvent renders a party notification, or "" for events not worth
// printing.
func formatEvent(e party.Event, color bool) string {
	paint := func(name string) string {
		if !color {
			return name
		}
		return senderColor(name) + name + ansiReset
	}

	switch e.Kind {
	case party.EventChannelOpen:
		return "Connected to the party."
	case party.EventChannelClosed:
		msg := "Connection to the party was lost"
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg + ". Type 'leave' to keep watching alone."
	case party.EventCaughtUp:
		return "Caught up with the director."
	}

	switch m := e.Message.(type) {
	case protocol.Play:
		return paint(m.Initiator) + " pressed play"
	case protocol.Pause:
		return "Playback paused"
	case protocol.Seeked:
		return fmt.Sprintf("%s jumped to %s", paint(m.Initiator), MovieTime(m.TimeSeconds))
	case protocol.Disconnected:
		return fmt.Sprintf("Participant %d left", m.ID)
	}
	return ""
}
