// Package roomsvc talks to the room service that mints room codes and hosts
// the party channels.
package roomsvc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrRoomNotFound     = errors.New("room does not exist")
	ErrRoomCheckTimeout = errors.New("room check timed out")
	ErrUnauthorized     = errors.New("room service rejected the credentials")
)

// Client talks to the room service HTTP API.
type Client struct {
	BaseURL  string
	Username string
	Password string
	client   *http.Client
}

// NewClient creates a room service client. Empty credentials send no
// Authorization header.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthHeader returns the headers every request to the service carries. The
// channel dial uses it too.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if c.Username == "" && c.Password == "" {
		return h
	}
	creds := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
	h.Set("Authorization", "Basic "+creds)
	return h
}

type createRoomResponse struct {
	Room string `json:"room"`
}

type checkRoomResponse struct {
	Exists *bool `json:"exists"`
}

// CreateRoom asks the service for a new room watching path and returns its
// code.
func (c *Client) CreateRoom(ctx context.Context, path string) (string, error) {
	q := url.Values{}
	q.Set("url", base64.StdEncoding.EncodeToString([]byte(path)))

	var resp createRoomResponse
	if err := c.getJSON(ctx, "/createroom?"+q.Encode(), &resp); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	if resp.Room == "" {
		return "", fmt.Errorf("create room: empty room code in response")
	}
	return resp.Room, nil
}

// CheckRoom reports whether a room with the given code exists.
func (c *Client) CheckRoom(ctx context.Context, code string) (bool, error) {
	q := url.Values{}
	q.Set("room", code)

	var resp checkRoomResponse
	if err := c.getJSON(ctx, "/checkroom?"+q.Encode(), &resp); err != nil {
		return false, fmt.Errorf("check room: %w", err)
	}
	if resp.Exists == nil {
		return false, fmt.Errorf("check room: response has no exists field")
	}
	return *resp.Exists, nil
}

// ValidateRoom is the bounded startup check. It fails with
// ErrRoomCheckTimeout when no answer arrives within timeout and with
// ErrRoomNotFound when the service does not know the room.
func (c *Client) ValidateRoom(ctx context.Context, code string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exists, err := c.CheckRoom(ctx, code)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: room %s", ErrRoomCheckTimeout, timeout, code)
		}
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vals := range c.AuthHeader() {
		req.Header[k] = vals
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// RoomsURL derives the websocket base for party channels from the service
// URL: http(s)://host becomes ws(s)://host/rooms.
func RoomsURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("parse server URL: no host in %q", server)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/rooms"
	u.RawQuery = ""
	return u.String(), nil
}

// ChannelURL joins a websocket base and a room code.
func ChannelURL(base, room string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(room)
}
