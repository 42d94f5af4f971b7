package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corvino/cinema/internal/launch"
	"github.com/corvino/cinema/internal/media"
	"github.com/corvino/cinema/internal/party"
	"github.com/corvino/cinema/internal/roomsvc"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		video   string
		room    string
		length  time.Duration
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "watch [link]",
		Short: "Watch a video alone or together with a party",
		Long: `Starts a player for a video and reads commands from stdin.

Without a room the video plays solo. With a room (from a share link, a bare
room code or --room) the room is checked first; you join as its director if
you created it from this machine, otherwise as a guest following the director.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var link launch.Link
			if len(args) == 1 {
				parsed, err := launch.ParseLink(args[0])
				if err != nil {
					return err
				}
				link = parsed
			}
			if video != "" {
				link.Video = video
			}
			if room != "" {
				link.Room = room
			}

			s, err := openSession(appConfig)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			plan, err := s.resolver().Resolve(ctx, link)
			if err != nil {
				return joinFailure(err, link)
			}

			clock := media.NewClock(length.Seconds())
			if plan.StartAt > 0 {
				clock.Seek(plan.StartAt)
				fmt.Fprintf(os.Stderr, "resuming %s at %s\n", plan.Video, MovieTime(plan.StartAt))
			}

			out := cmd.OutOrStdout()
			color := !noColor
			p, err := s.newParty(plan.Video, clock, func(e party.Event) {
				if line := formatEvent(e, color); line != "" {
					fmt.Fprintln(out, line)
				}
			})
			if err != nil {
				return err
			}

			if plan.Role != party.Solo {
				if err := p.JoinRoom(plan.Room, plan.Role == party.Director); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "joining room %q as %s\n", plan.Room, plan.Role)
			}

			s.serveMetrics(ctx)

			runErr := make(chan error, 1)
			go func() { runErr <- p.Run(ctx) }()

			pr := &prompt{
				party:   p,
				out:     out,
				color:   color,
				create:  s.createRoom,
				resolve: s.resolver().Resolve,
				share:   s.shareLink,
			}
			fmt.Fprintln(os.Stderr, "type 'help' for commands")
			err = pr.loop(ctx, cmd.InOrStdin())

			cancel()
			if rerr := <-runErr; err == nil {
				err = rerr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&video, "video", "", "video source to play")
	cmd.Flags().StringVar(&room, "room", "", "room code to join")
	cmd.Flags().DurationVar(&length, "length", 2*time.Hour, "video length (0 for unknown)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

// joinFailure explains a failed room check and how to carry on alone.
func joinFailure(err error, link launch.Link) error {
	hint := "cinema watch"
	if link.Video != "" {
		hint += " --video " + link.Video
	}

	switch {
	case errors.Is(err, roomsvc.ErrRoomNotFound):
		return fmt.Errorf("room %s does not exist (it may have expired)\nto watch alone: %s", link.Room, hint)
	case errors.Is(err, roomsvc.ErrRoomCheckTimeout):
		return fmt.Errorf("room service did not answer in time\nto watch alone: %s", hint)
	}
	return fmt.Errorf("%w\nto watch alone: %s", err, hint)
}
