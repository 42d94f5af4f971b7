package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/corvino/cinema/internal/launch"
	"github.com/corvino/cinema/internal/party"
)

const promptHelp = `Commands:
  play               start playback
  pause              pause playback
  seek <time>        jump to seconds or hh:mm:ss
  create             start a party for this video as its director
  join <link|code>   join an existing party
  leave              leave the party and keep watching alone
  users              list party participants
  status             show player and party state
  quit               exit`

// prompt drives a party from typed commands.
type prompt struct {
	party *party.Party
	out   io.Writer
	color bool

	// create mints a room for video and records this client as its director.
	create  func(ctx context.Context, video string) (string, error)
	resolve func(ctx context.Context, link launch.Link) (launch.Plan, error)
	share   func(video, room string) string
}

// loop reads commands until quit, EOF, or ctx is cancelled.
func (pr *prompt) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(pr.out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := pr.exec(ctx, line)
			if err != nil {
				if errors.Is(err, party.ErrStopped) || ctx.Err() != nil {
					return nil
				}
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

// exec runs one command line. User mistakes are printed; only a stopped
// party or cancelled context is returned as an error.
func (pr *prompt) exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	p := pr.party

	switch strings.ToLower(fields[0]) {
	case "quit", "exit", "q":
		return true, nil

	case "help", "?":
		fmt.Fprintln(pr.out, promptHelp)

	case "play":
		return false, pr.control(ctx, p.LocalPlay)

	case "pause":
		return false, pr.control(ctx, p.LocalPause)

	case "seek":
		if len(fields) != 2 {
			fmt.Fprintln(pr.out, "usage: seek <seconds|hh:mm:ss>")
			return false, nil
		}
		t, err := parseMovieTime(fields[1])
		if err != nil {
			fmt.Fprintln(pr.out, err)
			return false, nil
		}
		return false, pr.control(ctx, func() bool { return p.LocalSeek(t) })

	case "create":
		return false, pr.createRoom(ctx)

	case "join":
		if len(fields) != 2 {
			fmt.Fprintln(pr.out, "usage: join <link|code>")
			return false, nil
		}
		return false, pr.join(ctx, fields[1])

	case "leave":
		if err := p.Do(ctx, p.Leave); err != nil {
			return false, err
		}
		fmt.Fprintln(pr.out, "Watching alone.")

	case "users":
		st, err := pr.status(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(pr.out, formatRoster(st, pr.color))

	case "status":
		st, err := pr.status(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(pr.out, formatStatus(st))

	default:
		fmt.Fprintf(pr.out, "unknown command %q (try 'help')\n", fields[0])
	}
	return false, nil
}

func (pr *prompt) status(ctx context.Context) (party.Status, error) {
	var st party.Status
	err := pr.party.Do(ctx, func() { st = pr.party.Status() })
	return st, err
}

func (pr *prompt) control(ctx context.Context, fn func() bool) error {
	var ok bool
	if err := pr.party.Do(ctx, func() { ok = fn() }); err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(pr.out, "Only the director controls playback.")
	}
	return nil
}

func (pr *prompt) createRoom(ctx context.Context) error {
	st, err := pr.status(ctx)
	if err != nil {
		return err
	}
	if st.Role != party.Solo {
		fmt.Fprintln(pr.out, "Already in a party. Type 'leave' first.")
		return nil
	}
	if pr.create == nil {
		fmt.Fprintln(pr.out, "No room service configured.")
		return nil
	}

	room, err := pr.create(ctx, st.Video)
	if err != nil {
		fmt.Fprintf(pr.out, "Could not create a room: %v\n", err)
		return nil
	}

	var enterErr error
	if err := pr.party.Do(ctx, func() { enterErr = pr.party.CreateRoom(room) }); err != nil {
		return err
	}
	if enterErr != nil {
		fmt.Fprintf(pr.out, "Could not enter room %s: %v\n", room, enterErr)
		return nil
	}

	fmt.Fprintf(pr.out, "Room %s created. You are the director.\n", room)
	if pr.share != nil {
		fmt.Fprintf(pr.out, "Share: %s\n", pr.share(st.Video, room))
	}
	return nil
}

func (pr *prompt) join(ctx context.Context, raw string) error {
	link, err := launch.ParseLink(raw)
	if err != nil {
		fmt.Fprintln(pr.out, err)
		return nil
	}
	if link.Room == "" {
		fmt.Fprintln(pr.out, "That link has no room in it.")
		return nil
	}
	if pr.resolve == nil {
		fmt.Fprintln(pr.out, "No room service configured.")
		return nil
	}

	plan, err := pr.resolve(ctx, link)
	if err != nil {
		fmt.Fprintf(pr.out, "Could not join: %v\nStill watching alone.\n", err)
		return nil
	}

	var enterErr error
	err = pr.party.Do(ctx, func() {
		enterErr = pr.party.JoinRoom(plan.Room, plan.Role == party.Director)
	})
	if err != nil {
		return err
	}
	if enterErr != nil {
		fmt.Fprintf(pr.out, "Could not join room %s: %v\n", plan.Room, enterErr)
		return nil
	}
	fmt.Fprintf(pr.out, "Joined room %s as %s.\n", plan.Room, plan.Role)
	return nil
}
