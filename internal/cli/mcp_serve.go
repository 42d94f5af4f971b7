package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corvino/cinema/internal/launch"
	"github.com/corvino/cinema/internal/mcp"
	"github.com/corvino/cinema/internal/media"
	"github.com/corvino/cinema/internal/party"
	"github.com/spf13/cobra"
)

func newMCPServeCmd() *cobra.Command {
	var (
		video  string
		room   string
		length time.Duration
	)

	cmd := &cobra.Command{
		Use:    "mcp-serve",
		Short:  "Start the MCP stdio server controlling a player",
		Long:   `Runs a Model Context Protocol (MCP) server over stdio. An assistant connects to it as a subprocess to drive the player and party (party_status, play, pause, seek, create_room, leave, list_participants).`,
		Hidden: true, // Not typically called by users directly
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(appConfig)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			plan, err := s.resolver().Resolve(ctx, launch.Link{Video: video, Room: room})
			if err != nil {
				return joinFailure(err, launch.Link{Video: video, Room: room})
			}

			clock := media.NewClock(length.Seconds())
			if plan.StartAt > 0 {
				clock.Seek(plan.StartAt)
			}

			// stdout carries the MCP stream, so events go to the log.
			p, err := s.newParty(plan.Video, clock, func(e party.Event) {
				if line := formatEvent(e, false); line != "" {
					log.Printf("party: %s", line)
				}
			})
			if err != nil {
				return err
			}
			if plan.Role != party.Solo {
				if err := p.JoinRoom(plan.Room, plan.Role == party.Director); err != nil {
					return err
				}
			}

			s.serveMetrics(ctx)

			runErr := make(chan error, 1)
			go func() { runErr <- p.Run(ctx) }()

			err = mcp.Serve(ctx, &mcp.Controller{
				Party:      p,
				CreateRoom: s.createRoom,
				ShareLink:  s.shareLink,
			})

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

	return cmd
}
