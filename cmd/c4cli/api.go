package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wricardo/connectfour/game/archive"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
)

// APIError is a non-2xx reply from the REST API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", http.StatusText(e.Status), e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// APIClient calls the REST API.
type APIClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewAPIClient returns a client for the server at baseURL.
func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil {
			apiErr.Code = errBody.Code
			apiErr.Message = errBody.Error
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("parse %s response: %w", path, err)
		}
	}
	return nil
}

func roomPath(code, suffix string) string {
	return "/api/rooms/" + url.PathEscape(session.NormalizeCode(code)) + suffix
}

func (c *APIClient) CreateRoom(ctx context.Context, player string) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.do(ctx, "POST", "/api/rooms", map[string]string{"player": player}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *APIClient) JoinRoom(ctx context.Context, code, player string) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.do(ctx, "POST", roomPath(code, "/join"), map[string]string{"player": player}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *APIClient) GetRoom(ctx context.Context, code string) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.do(ctx, "GET", roomPath(code, ""), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *APIClient) Play(ctx context.Context, code, player string, column int) (*service.MoveResult, error) {
	body := map[string]interface{}{"player": player, "column": column}
	var result service.MoveResult
	if err := c.do(ctx, "POST", roomPath(code, "/play"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) PlayAgain(ctx context.Context, code, player string) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.do(ctx, "POST", roomPath(code, "/play-again"), map[string]string{"player": player}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *APIClient) Leave(ctx context.Context, code, player string) error {
	return c.do(ctx, "POST", roomPath(code, "/leave"), map[string]string{"player": player}, nil)
}

func (c *APIClient) RecentMatches(ctx context.Context, limit int) ([]archive.MatchRecord, error) {
	var response struct {
		Matches []archive.MatchRecord `json:"matches"`
	}
	if err := c.do(ctx, "GET", fmt.Sprintf("/api/matches?limit=%d", limit), nil, &response); err != nil {
		return nil, err
	}
	return response.Matches, nil
}
