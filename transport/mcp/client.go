package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/connectfour/game/archive"
	"github.com/wricardo/connectfour/game/engine"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
)

const instructions = `Connect Four - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Two players take turns dropping pieces into a 7-column, 6-row board. A piece
falls to the lowest empty cell of its column. The first player to line up four
pieces horizontally, vertically or diagonally wins. A full board with no line
is a draw.

HOW TO PLAY:
1. create_room with your player name. Share the 6-character room code.
2. The opponent calls join_room with the code. The host always moves first.
3. Call play with your column (0-6) when it is your turn.
4. After a win or a draw, either player may call play_again.
5. leave_room forfeits a match in progress.

BOARD:
Row 0 is the top. X is the host (player_a), O is the guest (player_b).

AVAILABLE TOOLS:
- create_room, join_room, get_room, list_rooms
- play, leave_room, play_again
- recent_matches`

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Connect Four",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)

	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Rooms
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_room",
		Description: "Create a new room and wait for an opponent",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player": stringProp("Your player name"),
			},
			Required: []string{"player"},
		},
	}, c.handleCreateRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_room",
		Description: "Join an existing room as the guest",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code":   stringProp("Room code"),
				"player": stringProp("Your player name"),
			},
			Required: []string{"code", "player"},
		},
	}, c.handleJoinRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get the board and status of a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": stringProp("Room code"),
			},
			Required: []string{"code"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List rooms, most recently active first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Only rooms in this status",
					"enum":        []string{"waiting_for_opponent", "in_progress", "won", "drawn"},
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of rooms",
				},
			},
		},
	}, c.handleListRooms)

	// Match operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "play",
		Description: "Drop your piece into a column",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code":   stringProp("Room code"),
				"player": stringProp("Your player name"),
				"column": map[string]interface{}{
					"type":        "number",
					"description": "Column from 0 (left) to 6 (right)",
					"minimum":     0,
					"maximum":     engine.Cols - 1,
				},
			},
			Required: []string{"code", "player", "column"},
		},
	}, c.handlePlay)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leave_room",
		Description: "Leave a room. Leaving a match in progress forfeits it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code":   stringProp("Room code"),
				"player": stringProp("Your player name"),
				"destroy": map[string]interface{}{
					"type":        "boolean",
					"description": "Close the room for both players",
				},
			},
			Required: []string{"code", "player"},
		},
	}, c.handleLeaveRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "play_again",
		Description: "Start a rematch in the same room after a win or a draw",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code":   stringProp("Room code"),
				"player": stringProp("Your player name"),
			},
			Required: []string{"code", "player"},
		},
	}, c.handlePlayAgain)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "recent_matches",
		Description: "List recently finished matches",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of matches (default 10)",
				},
			},
		},
	}, c.handleRecentMatches)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			if code := errResp["code"]; code != "" {
				return fmt.Errorf("%s (%s)", msg, code)
			}
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func roomPath(code string, suffix string) string {
	return "/api/rooms/" + url.PathEscape(session.NormalizeCode(code)) + suffix
}

// Tool handlers

func (c *Client) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	player, _ := args["player"].(string)

	var snap session.Snapshot
	if err := c.apiCall(ctx, "POST", "/api/rooms", map[string]string{"player": player}, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created room %s. Share the code with your opponent.\n\n%s", snap.Code, formatSnapshot(&snap, player))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	code, _ := args["code"].(string)
	player, _ := args["player"].(string)

	var snap session.Snapshot
	if err := c.apiCall(ctx, "POST", roomPath(code, "/join"), map[string]string{"player": player}, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Joined room.\n\n" + formatSnapshot(&snap, player)), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	code, _ := args["code"].(string)
	player, _ := args["player"].(string)

	var snap session.Snapshot
	if err := c.apiCall(ctx, "GET", roomPath(code, ""), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap, player)), nil
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	query := url.Values{}
	if status, _ := args["status"].(string); status != "" {
		query.Set("status", status)
	}
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", int(limit)))
	}
	path := "/api/rooms"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response struct {
		Count int                `json:"count"`
		Rooms []session.Snapshot `json:"rooms"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rooms (%d):\n\n", response.Count)
	for _, r := range response.Rooms {
		guest := r.Guest
		if guest == "" {
			guest = "-"
		}
		fmt.Fprintf(&sb, "- %s %s vs %s (%s, %d moves)\n", r.Code, r.Host, guest, r.Status, r.MoveCount)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handlePlay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	code, _ := args["code"].(string)
	player, _ := args["player"].(string)
	column, ok := args["column"].(float64)
	if !ok {
		return mcp.NewToolResultError("column is required"), nil
	}

	body := map[string]interface{}{
		"player": player,
		"column": int(column),
	}
	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", roomPath(code, "/play"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result, player)), nil
}

func (c *Client) handleLeaveRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	code, _ := args["code"].(string)
	player, _ := args["player"].(string)
	destroy, _ := args["destroy"].(bool)

	body := map[string]interface{}{
		"player":  player,
		"destroy": destroy,
	}
	var result service.LeaveResult
	if err := c.apiCall(ctx, "POST", roomPath(code, "/leave"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s left room %s.\n", result.Player, session.NormalizeCode(code))
	if result.Forfeit {
		fmt.Fprintf(&sb, "The match was forfeited. %s wins.\n", result.Remaining)
	}
	if result.Closed {
		sb.WriteString("The room is closed.\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handlePlayAgain(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	code, _ := args["code"].(string)
	player, _ := args["player"].(string)

	var snap session.Snapshot
	if err := c.apiCall(ctx, "POST", roomPath(code, "/play-again"), map[string]string{"player": player}, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Rematch started.\n\n" + formatSnapshot(&snap, player)), nil
}

func (c *Client) handleRecentMatches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	limit := 10
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	var response struct {
		Count   int                   `json:"count"`
		Matches []archive.MatchRecord `json:"matches"`
	}
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/matches?limit=%d", limit), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent matches (%d):\n\n", response.Count)
	for _, m := range response.Matches {
		switch m.Outcome {
		case archive.OutcomeDrawn:
			fmt.Fprintf(&sb, "- %s %s vs %s: draw after %d moves\n", m.RoomCode, m.Host, m.Guest, m.Moves)
		default:
			fmt.Fprintf(&sb, "- %s %s vs %s: %s won (%s) after %d moves\n", m.RoomCode, m.Host, m.Guest, m.Winner, m.Outcome, m.Moves)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// formatSnapshot renders a room for a reader who is player (may be empty).
func formatSnapshot(snap *session.Snapshot, player string) string {
	var sb strings.Builder
	guest := snap.Guest
	if guest == "" {
		guest = "(waiting)"
	}
	fmt.Fprintf(&sb, "Room: %s\n", snap.Code)
	fmt.Fprintf(&sb, "Players: %s (X) vs %s (O)\n", snap.Host, guest)
	fmt.Fprintf(&sb, "Status: %s\n", snap.Status)

	switch snap.Status {
	case session.StatusInProgress:
		turn := snap.Turn
		if player != "" && turn == player {
			turn += " (you)"
		}
		fmt.Fprintf(&sb, "Turn: %s\n", turn)
	case session.StatusWon:
		fmt.Fprintf(&sb, "Winner: %s\n", snap.Winner)
	}

	sb.WriteString("\n")
	sb.WriteString(formatBoard(snap.Board))
	return sb.String()
}

// formatBoard renders the board with column numbers underneath.
func formatBoard(b engine.Board) string {
	var sb strings.Builder
	for _, line := range strings.Split(b.String(), "\n") {
		sb.WriteString(strings.Join(strings.Split(line, ""), " "))
		sb.WriteString("\n")
	}
	for col := 0; col < engine.Cols; col++ {
		if col > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%d", col)
	}
	sb.WriteString("\n")
	return sb.String()
}

func formatMoveResult(result *service.MoveResult, player string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Placed at row %d, column %d.\n", result.Placed.Row, result.Placed.Col)
	switch {
	case result.Draw:
		sb.WriteString("The board is full. Draw!\n")
	case result.GameOver:
		fmt.Fprintf(&sb, "%s wins!\n", result.Winner)
	}
	if result.Snapshot != nil {
		sb.WriteString("\n")
		sb.WriteString(formatSnapshot(result.Snapshot, player))
	}
	return sb.String()
}
