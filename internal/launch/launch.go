// Package launch decides how a session starts: which video, which room and
// in which role.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/corvino/cinema/internal/party"
)

// ErrEmptyLink is returned for a link with neither video nor room.
var ErrEmptyLink = errors.New("link names no video and no room")

const defaultRoomCheckTimeout = 5 * time.Second

// Link is what a shared link carries.
type Link struct {
	Video string
	Room  string
}

// ParseLink reads a share link. It understands
//
//	<server>/cinema?video=<source>&room=<code>
//	<path>?cinema=1&room=<code>   (the video is the path)
//	<server>/wwf/<code>
//
// and a bare room code.
func ParseLink(raw string) (Link, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Link{}, ErrEmptyLink
	}
	if !strings.ContainsAny(raw, "/?=:.") {
		return Link{Room: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("parse link: %w", err)
	}
	q := u.Query()

	if rest, ok := strings.CutPrefix(u.Path, "/wwf/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return Link{Room: rest}, nil
	}

	link := Link{Video: q.Get("video"), Room: q.Get("room")}
	if link.Video == "" && q.Get("cinema") == "1" {
		link.Video = u.Path
	}
	if link.Video == "" && link.Room == "" {
		return Link{}, ErrEmptyLink
	}
	return link, nil
}

// ShareLink builds the link a director hands to guests.
func ShareLink(server, video, room string) string {
	q := url.Values{}
	if video != "" {
		q.Set("video", video)
	}
	q.Set("room", room)
	return strings.TrimRight(server, "/") + "/cinema?" + q.Encode()
}

// Plan is the resolved starting point of a session.
type Plan struct {
	Role    party.Role
	Video   string
	Room    string
	StartAt float64
}

type RoomValidator interface {
	ValidateRoom(ctx context.Context, code string, timeout time.Duration) error
}

type Credentials interface {
	IsDirector(room string) (bool, error)
}

type Positions interface {
	Position(source string) (float64, bool, error)
}

// Resolver turns a link into a Plan.
type Resolver struct {
	Rooms       RoomValidator
	Credentials Credentials
	Positions   Positions
	Timeout     time.Duration
}

// Resolve decides the starting role. Without a room the session is solo.
// With one, the room must pass the bounded validity check; failure means the
// party is never entered. A stored director credential for exactly this room
// makes the client its director, otherwise it joins as a guest. The stored
// position for the video is used unless the client is a guest, who follows
// the director instead.
func (r Resolver) Resolve(ctx context.Context, link Link) (Plan, error) {
	plan := Plan{Role: party.Solo, Video: link.Video, Room: link.Room}

	if link.Room != "" {
		timeout := r.Timeout
		if timeout <= 0 {
			timeout = defaultRoomCheckTimeout
		}
		if err := r.Rooms.ValidateRoom(ctx, link.Room, timeout); err != nil {
			return Plan{}, fmt.Errorf("join room %s: %w", link.Room, err)
		}

		plan.Role = party.Guest
		if r.Credentials != nil {
			director, err := r.Credentials.IsDirector(link.Room)
			if err != nil {
				log.Printf("launch: credential lookup: %v", err)
			}
			if director {
				plan.Role = party.Director
			}
		}
	}

	if plan.Role != party.Guest && link.Video != "" && r.Positions != nil {
		pos, ok, err := r.Positions.Position(link.Video)
		if err != nil {
			log.Printf("launch: position lookup: %v", err)
		} else if ok {
			plan.StartAt = pos
		}
	}
	return plan, nil
}
