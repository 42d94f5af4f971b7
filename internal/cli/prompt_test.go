package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/corvino/cinema/internal/launch"
	"github.com/corvino/cinema/internal/media"
	"github.com/corvino/cinema/internal/party"
	"github.com/corvino/cinema/internal/protocol"
)

type recordingConn struct {
	mu   sync.Mutex
	sent []protocol.Message
}

func (c *recordingConn) Send(m protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
}

func (c *recordingConn) Close() {}

func (c *recordingConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.sent {
		out = append(out, m.Type())
	}
	return out
}

type promptHarness struct {
	pr    *prompt
	clock *media.Clock
	out   *bytes.Buffer
	rooms []string
	conn  *recordingConn
}

func newPromptHarness(t *testing.T) *promptHarness {
	t.Helper()

	h := &promptHarness{
		clock: media.NewClock(3600),
		out:   &bytes.Buffer{},
		conn:  &recordingConn{},
	}
	start := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	h.clock.SetNow(func() time.Time { return start })

	p := party.New(party.Config{
		Name:          "alice",
		Video:         "heat.mp4",
		StatsInterval: time.Hour,
		Dial:          func(room string, _ party.ConnHandlers) party.Conn {
			h.rooms = append(h.rooms, room)
			return h.conn
		},
	}, h.clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h.pr = &prompt{
		party: p,
		out:   h.out,
		create: func(_ context.Context, video string) (string, error) {
			if video != "heat.mp4" {
				return "", errors.New("unexpected video " + video)
			}
			return "ABCD", nil
		},
		resolve: func(_ context.Context, link launch.Link) (launch.Plan, error) {
			if link.Room == "GONE" {
				return launch.Plan{}, errors.New("room GONE does not exist")
			}
			return launch.Plan{Role: party.Guest, Room: link.Room}, nil
		},
		share: func(video, room string) string { return "http://localhost:5000/cinema?room=" + room },
	}
	return h
}

func (h *promptHarness) run(t *testing.T, line string) string {
	t.Helper()
	h.out.Reset()
	quit, err := h.pr.exec(context.Background(), line)
	if err != nil {
		t.Fatalf("exec(%q): %v", line, err)
	}
	if quit {
		t.Fatalf("exec(%q) quit unexpectedly", line)
	}
	return h.out.String()
}

func TestPromptSoloControls(t *testing.T) {
	h := newPromptHarness(t)

	h.run(t, "play")
	if h.clock.State() != protocol.Playing {
		t.Fatalf("state after play = %s", h.clock.State())
	}

	h.run(t, "seek 1:30")
	if got := h.clock.CurrentTime(); got != 90 {
		t.Fatalf("time after seek = %v, want 90", got)
	}

	h.run(t, "pause")
	if h.clock.State() != protocol.Paused {
		t.Fatalf("state after pause = %s", h.clock.State())
	}

	out := h.run(t, "status")
	if !strings.Contains(out, "Role: solo") || !strings.Contains(out, "00:01:30") {
		t.Fatalf("status output:\n%s", out)
	}
	if len(h.conn.types()) != 0 {
		t.Fatalf("solo commands sent %v", h.conn.types())
	}
}

func TestPromptCreateRoomMakesDirector(t *testing.T) {
	h := newPromptHarness(t)

	out := h.run(t, "create")
	if !strings.Contains(out, "Room ABCD created") || !strings.Contains(out, "room=ABCD") {
		t.Fatalf("create output:\n%s", out)
	}
	if len(h.rooms) != 1 || h.rooms[0] != "ABCD" {
		t.Fatalf("dialed %v", h.rooms)
	}

	h.run(t, "seek 10")
	got := h.conn.types()
	want := []string{protocol.TypePause, protocol.TypeSeeked}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("director seek sent %v, want %v", got, want)
	}

	if out := h.run(t, "create"); !strings.Contains(out, "Already in a party") {
		t.Fatalf("second create output:\n%s", out)
	}
}

func TestPromptGuestIsRefused(t *testing.T) {
	h := newPromptHarness(t)

	out := h.run(t, "join WXYZ")
	if !strings.Contains(out, "Joined room WXYZ as guest") {
		t.Fatalf("join output:\n%s", out)
	}

	for _, cmd := range []string{"play", "pause", "seek 42"} {
		if out := h.run(t, cmd); !strings.Contains(out, "Only the director") {
			t.Errorf("%s output: %q", cmd, out)
		}
	}
	if h.clock.State() != protocol.Paused || h.clock.CurrentTime() != 0 {
		t.Fatal("guest command reached the player")
	}

	h.run(t, "leave")
	if out := h.run(t, "users"); !strings.Contains(out, "Not in a party") {
		t.Fatalf("users after leave:\n%s", out)
	}
}

func TestPromptJoinFailureStaysSolo(t *testing.T) {
	h := newPromptHarness(t)

	out := h.run(t, "join GONE")
	if !strings.Contains(out, "Still watching alone") {
		t.Fatalf("join output:\n%s", out)
	}
	if len(h.rooms) != 0 {
		t.Fatalf("dialed %v after failed check", h.rooms)
	}
}

func TestPromptBadInput(t *testing.T) {
	h := newPromptHarness(t)

	tests := []struct {
		line string
		want string
	}{
		{"seek", "usage: seek"},
		{"seek soon", "invalid time"},
		{"join", "usage: join"},
		{"rewind", "unknown command"},
		{"", ""},
	}
	for _, tt := range tests {
		if out := h.run(t, tt.line); !strings.Contains(out, tt.want) {
			t.Errorf("exec(%q) = %q, want it to contain %q", tt.line, out, tt.want)
		}
	}
}

func TestPromptLoopQuits(t *testing.T) {
	h := newPromptHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := strings.NewReader("play\nquit\npause\n")
	if err := h.pr.loop(ctx, in); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if h.clock.State() != protocol.Playing {
		t.Fatal("commands after quit should not run")
	}
}
