package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/corvino/cinema/internal/roomsvc"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var video string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a party room and print its share link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if video == "" {
				return fmt.Errorf("video is required (use --video)")
			}

			s, err := openSession(appConfig)
			if err != nil {
				return err
			}
			defer s.Close()

			room, err := s.createRoom(cmd.Context(), video)
			if err != nil {
				return err
			}

			fmt.Println("==============================================")
			fmt.Println("  Party room created")
			fmt.Println("==============================================")
			fmt.Printf("  Room:  %s\n", room)
			fmt.Printf("  Video: %s\n", video)
			fmt.Printf("  Share: %s\n", s.shareLink(video, room))
			fmt.Println()
			fmt.Printf("  Start directing with: cinema watch --video %s --room %s\n", video, room)
			return nil
		},
	}

	cmd.Flags().StringVar(&video, "video", "", "video source the room plays")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <room>",
		Short: "Check that a room exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms := roomsvc.NewClient(appConfig.Server, appConfig.Username, appConfig.Password)
			err := rooms.ValidateRoom(context.Background(), args[0], appConfig.RoomCheckTimeout)
			switch {
			case err == nil:
				fmt.Printf("Room %s exists.\n", args[0])
				return nil
			case errors.Is(err, roomsvc.ErrRoomNotFound):
				return fmt.Errorf("room %s does not exist", args[0])
			}
			return err
		},
	}
}

func newNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name [new-name]",
		Short: "Show or change the stored display name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(appConfig)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 0 {
				fmt.Println(s.name())
				return nil
			}

			name := strings.TrimSpace(args[0])
			if err := s.store.SetUsername(name); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "display name set to %q\n", name)
			return nil
		},
	}
}
