// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/orkestra/internal/domain/session/model"
	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

const serverName = "Orkestra Session Manager"

var ErrMissingService = errors.New("mcp: session service is required")

// Server hosts the MCP tools.
type Server struct {
	svc       ports.SessionService
	mcpServer *server.MCPServer
	http      *server.StreamableHTTPServer
	logger    zerolog.Logger
}

// SessionView is the tool output for a single session.
type SessionView struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	GameMap    string    `json:"game_map"`
	Code       string    `json:"code"`
	Connection string    `json:"connection"`
	MaxPlayers int       `json:"max_players"`
	Players    []string  `json:"players"`
	CreatedAt  time.Time `json:"created_at"`
}

func viewOf(s model.Session) SessionView {
	return SessionView{
		ID:         s.ID,
		Title:      s.Title,
		GameMap:    s.GameMap,
		Code:       s.Code,
		Connection: s.Endpoint(),
		MaxPlayers: s.MaxPlayers,
		Players:    s.Players(),
		CreatedAt:  s.CreatedAt,
	}
}

func New(svc ports.SessionService, version string) (*Server, error) {
	if svc == nil {
		return nil, ErrMissingService
	}
	s := &Server{svc: svc, logger: xglog.WithComponent("mcp")}
	s.mcpServer = server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(`Orkestra manages game server sessions.

Each session runs its own game server process. Create a session to get a
connection endpoint and a six digit join code; other players join by session
id. A session disappears when its game server exits.`),
	)
	s.registerTools()
	s.http = server.NewStreamableHTTPServer(s.mcpServer, server.WithStateLess(true))
	return s, nil
}

// Handler serves MCP over streamable HTTP.
func (s *Server) Handler() http.Handler { return s.http }

// ServeStdio runs the tools over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List all active game sessions"),
	), s.handleListSessions)

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get details of a session including its players"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), s.handleGetSession)

	s.mcpServer.AddTool(mcp.NewTool("find_session_by_code",
		mcp.WithDescription("Find the session carrying a six digit join code"),
		mcp.WithString("code", mcp.Required(), mcp.Description("Join code, e.g. 000042")),
	), s.handleFindByCode)

	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Start a game server and register a new session"),
		mcp.WithString("creator_id", mcp.Required(), mcp.Description("Player creating the session; joins automatically")),
		mcp.WithNumber("max_players", mcp.Required(), mcp.Min(1), mcp.Description("Capacity including the creator")),
		mcp.WithString("game_map", mcp.Description("Map name passed through to clients")),
		mcp.WithString("title", mcp.Description("Display title")),
	), s.handleCreateSession)

	s.mcpServer.AddTool(mcp.NewTool("join_session",
		mcp.WithDescription("Add a player to a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("player_id", mcp.Required(), mcp.Description("Player ID")),
	), s.handleJoinSession)

	s.mcpServer.AddTool(mcp.NewTool("leave_session",
		mcp.WithDescription("Remove a player from a session; absent players are ignored"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("player_id", mcp.Required(), mcp.Description("Player ID")),
	), s.handleLeaveSession)
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type playerArgs struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
}

type createArgs struct {
	CreatorID  string `json:"creator_id"`
	MaxPlayers int    `json:"max_players"`
	GameMap    string `json:"game_map"`
	Title      string `json:"title"`
}

func (s *Server) handleListSessions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := s.svc.ListAll(ctx)
	views := make([]SessionView, 0, len(all))
	for _, sess := range all {
		views = append(views, viewOf(sess))
	}
	return jsonResult(map[string]any{"count": len(views), "sessions": views})
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args sessionArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	sess, err := s.svc.GetByID(ctx, args.SessionID)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(viewOf(sess))
}

func (s *Server) handleFindByCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	found := s.svc.FilterByCode(ctx, code)
	if len(found) == 0 {
		return mcp.NewToolResultError("no session with code " + code), nil
	}
	return jsonResult(viewOf(found[0]))
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	sess, err := s.svc.CreateSession(ctx, args.CreatorID, model.Config{
		Title:      args.Title,
		GameMap:    args.GameMap,
		MaxPlayers: args.MaxPlayers,
	})
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(viewOf(sess))
}

func (s *Server) handleJoinSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args playerArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	sess, err := s.svc.AddPlayer(ctx, args.SessionID, args.PlayerID)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(map[string]string{"connection": sess.Endpoint()})
}

func (s *Server) handleLeaveSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args playerArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	sess, err := s.svc.RemovePlayer(ctx, args.SessionID, args.PlayerID)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(viewOf(sess))
}

// toolError reports domain failures with the HTTP API's wording.
func (s *Server) toolError(err error) *mcp.CallToolResult {
	if msg, ok := model.ClientMessage(err); ok {
		return mcp.NewToolResultError(msg)
	}
	s.logger.Error().Err(err).Str(xglog.FieldEvent, "mcp.tool_failed").Msg("tool call failed")
	return mcp.NewToolResultError("internal error")
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
