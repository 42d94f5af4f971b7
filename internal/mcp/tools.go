// Package mcp exposes a running party as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/corvino/cinema/internal/party"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Controller is what the tools act on.
type Controller struct {
	Party *party.Party

	// CreateRoom mints a room for video and records this client as its
	// director. Nil disables create_room.
	CreateRoom func(ctx context.Context, video string) (string, error)
	// ShareLink builds the link guests open. Optional.
	ShareLink  func(video, room string) string
}

// prop is a shorthand for building a JSON Schema property.
func prop(typ, desc string) any {
	return map[string]any{
		"type":        typ,
		"description": desc,
	}
}

func emptySchema() mcplib.ToolInputSchema {
	return mcplib.ToolInputSchema{Type: "object", Properties: map[string]any{}}
}

// RegisterTools adds the party tools to the MCP server.
func RegisterTools(srv *mcpserver.MCPServer, c *Controller) {
	srv.AddTool(mcplib.Tool{
		Name:        "party_status",
		Description: "Show the player position, the party role and the room.",
		InputSchema: emptySchema(),
	}, makeStatusHandler(c))

	srv.AddTool(mcplib.Tool{
		Name:        "play",
		Description: "Start playback. In a party only the director can do this; it is relayed to everyone.",
		InputSchema: emptySchema(),
	}, makePlayHandler(c))

	srv.AddTool(mcplib.Tool{
		Name:        "pause",
		Description: "Pause playback. In a party only the director can do this.",
		InputSchema: emptySchema(),
	}, makePauseHandler(c))

	srv.AddTool(mcplib.Tool{
		Name:        "seek",
		Description: "Jump to a position. In a party only the director can do this.",
		InputSchema: mcplib.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"time": prop("number", "Target position in seconds"),
			},
			Required: []string{"time"},
		},
	}, makeSeekHandler(c))

	srv.AddTool(mcplib.Tool{
		Name:        "create_room",
		Description: "Create a party room for the current video and enter it as director. Returns the share link.",
		InputSchema: emptySchema(),
	}, makeCreateRoomHandler(c))

	srv.AddTool(mcplib.Tool{
		Name:        "leave",
		Description: "Leave the party and keep watching alone.",
		InputSchema: emptySchema(),
	}, makeLeaveHandler(c))

	srv.AddTool(mcplib.Tool{
		Name:        "list_participants",
		Description: "List party participants with their player state and position.",
		InputSchema: emptySchema(),
	}, makeListParticipantsHandler(c))
}

func (c *Controller) status(ctx context.Context) (party.Status, error) {
	var st party.Status
	err := c.Party.Do(ctx, func() { st = c.Party.Status() })
	return st, err
}

func formatTime(seconds float64) string {
	s := int64(seconds)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

func makeStatusHandler(c *Controller) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		st, err := c.status(ctx)
		if err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("party unavailable: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Role: %s\n", st.Role)
		if st.Room != "" {
			fmt.Fprintf(&sb, "Room: %s\n", st.Room)
		}
		if st.Video != "" {
			fmt.Fprintf(&sb, "Video: %s\n", st.Video)
		}
		fmt.Fprintf(&sb, "Player: %s at %s", st.State, formatTime(st.TimeSeconds))
		if st.DirectorName != "" {
			fmt.Fprintf(&sb, "\nDirector: %s", st.DirectorName)
		}
		return mcplib.NewToolResultText(sb.String()), nil
	}
}

// control runs a local playback command. A guest's command is refused.
func control(ctx context.Context, c *Controller, done string, fn func() bool) (*mcplib.CallToolResult, error) {
	var ok bool
	if err := c.Party.Do(ctx, func() { ok = fn() }); err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("party unavailable: %v", err)), nil
	}
	if !ok {
		return mcplib.NewToolResultError("only the director controls playback"), nil
	}
	return mcplib.NewToolResultText(done), nil
}

func makePlayHandler(c *Controller) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return control(ctx, c, "Playing.", c.Party.LocalPlay)
	}
}

func makePauseHandler(c *Controller) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return control(ctx, c, "Paused.", c.Party.LocalPause)
	}
}

func makeSeekHandler(c *Controller) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		t := request.GetFloat("time", -1)
		if t < 0 {
			return mcplib.NewToolResultError("time must be a non-negative number of seconds"), nil
		}
		return control(ctx, c, "Jumped to "+formatTime(t)+".", func() bool { return c.Party.LocalSeek(t) })
	}
}

func makeCreateRoomHandler(c *Controller) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		if c.CreateRoom == nil {
			return mcplib.NewToolResultError("no room service configured"), nil
		}
		st, err := c.status(ctx)
		if err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("party unavailable: %v", err)), nil
		}
		if st.Role != party.Solo {
			return mcplib.NewToolResultError(fmt.Sprintf("already in room %s; leave first", st.Room)), nil
		}

		room, err := c.CreateRoom(ctx, st.Video)
		if err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("failed to create room: %v", err)), nil
		}

		var enterErr error
		if err := c.Party.Do(ctx, func() { enterErr = c.Party.CreateRoom(room) }); err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("party unavailable: %v", err)), nil
		}
		if enterErr != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("failed to enter room %s: %v", room, enterErr)), nil
		}

		text := fmt.Sprintf("Room %s created; you are the director.", room)
		if c.ShareLink != nil {
			text += "\nShare: " + c.ShareLink(st.Video, room)
		}
		return mcplib.NewToolResultText(text), nil
	}
}

func makeLeaveHandler(c *Controller) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		if err := c.Party.Do(ctx, c.Party.Leave); err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("party unavailable: %v", err)), nil
		}
		return mcplib.NewToolResultText("Left the party; watching alone."), nil
	}
}

func makeListParticipantsHandler(c *Controller) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		st, err := c.status(ctx)
		if err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("party unavailable: %v", err)), nil
		}
		if st.Role == party.Solo {
			return mcplib.NewToolResultText("Not in a party."), nil
		}
		if len(st.Participants) == 0 {
			return mcplib.NewToolResultText("No participants reported yet."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Participants in %s:\n", st.Room)
		for _, p := range st.Participants {
			role := ""
			if p.IsDirector {
				role = " (director)"
			}
			fmt.Fprintf(&sb, "  [%s] %s%s %s\n", p.State, p.Name, role, formatTime(p.TimeSeconds))
		}
		return mcplib.NewToolResultText(sb.String()), nil
	}
}
