package protocol

import (
	"encoding/json"
	"fmt"
)

// PlayerState is the coarse playback state a client reports.
type PlayerState string

// Player states.
const (
	Playing PlayerState = "Playing" // actively advancing
	Paused  PlayerState = "Paused"  // explicitly paused
	Loading PlayerState = "Loading" // buffering, readiness below the playable threshold
)

// Valid reports whether s is one of the known states.
func (s PlayerState) Valid() bool {
	switch s {
	case Playing, Paused, Loading:
		return true
	}
	return false
}

// ParsePlayerState converts a wire string into a PlayerState.
func ParsePlayerState(s string) (PlayerState, error) {
	ps := PlayerState(s)
	if !ps.Valid() {
		return "", fmt.Errorf("unknown player state %q", s)
	}
	return ps, nil
}

// UnmarshalJSON rejects anything but a known state string.
func (s *PlayerState) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("player state: %w", err)
	}
	ps, err := ParsePlayerState(raw)
	if err != nil {
		return err
	}
	*s = ps
	return nil
}
