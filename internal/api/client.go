// Package api wraps the chat backend's REST endpoints: profile lookup,
// history retrieval and whisper inbox pagination. These are plain HTTP
// GET contracts consumed by the chat engine; they carry no concurrency
// or retry semantics of their own.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://www.destiny.gg/api"

// Error describes a non-200 response from the backend.
type Error struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api call %s failed: %d %q", e.Endpoint, e.Status, e.Body)
}

// Client calls the chat backend's REST API with the connection's
// credentials attached as cookies.
type Client struct {
	baseURL   string
	authToken string
	sessionID string
	http      *http.Client
	log       *zerolog.Logger

	profileNick string
}

// NewClient builds a client. baseURL falls back to DefaultBaseURL.
func NewClient(baseURL, authToken, sessionID string, logger *zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		sessionID: sessionID,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       logger,
	}
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	url := c.baseURL + endpoint
	c.log.Debug().Str("endpoint", endpoint).Msg("calling api")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.authToken != "" {
		req.AddCookie(&http.Cookie{Name: "authtoken", Value: c.authToken})
	}
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: c.sessionID})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &Error{Endpoint: endpoint, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// UserInfo returns the profile for the client's auth token.
func (c *Client) UserInfo(ctx context.Context) (*Profile, error) {
	if c.authToken == "" {
		return nil, &Error{Endpoint: "/userinfo", Status: http.StatusUnauthorized, Body: "no auth token"}
	}
	var profile Profile
	if err := c.get(ctx, "/userinfo?token="+c.authToken, &profile); err != nil {
		return nil, err
	}
	c.profileNick = profile.Nick
	return &profile, nil
}

// ChatMe returns the profile for the client's session id.
func (c *Client) ChatMe(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.get(ctx, "/chat/me", &profile); err != nil {
		return nil, err
	}
	c.profileNick = profile.Nick
	return &profile, nil
}

// ChatHistory returns the most recent chat messages from before the
// connection, as raw frames in the websocket format.
func (c *Client) ChatHistory(ctx context.Context) ([]string, error) {
	var history []string
	if err := c.get(ctx, "/chat/history", &history); err != nil {
		return nil, err
	}
	return history, nil
}

// MessagesUnread returns the unread whisper count per user.
func (c *Client) MessagesUnread(ctx context.Context) (map[string]int, error) {
	var entries []struct {
		Username string      `json:"username"`
		Unread   json.Number `json:"unread"`
	}
	if err := c.get(ctx, "/messages/unread", &entries); err != nil {
		return nil, err
	}
	unread := make(map[string]int, len(entries))
	for _, e := range entries {
		n, err := e.Unread.Int64()
		if err != nil {
			continue
		}
		unread[e.Username] = int(n)
	}
	return unread, nil
}

// MessagesInbox returns up to count unread private messages exchanged
// with user, oldest page first. Fetching a page marks it as read in the
// backend. Messages the client sent are filtered out.
func (c *Client) MessagesInbox(ctx context.Context, user string, count int) ([]PrivateMessage, error) {
	var messages []PrivateMessage
	offset := 0
	for count > 0 {
		page, err := c.inboxPage(ctx, user, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		offset += len(page)

		for _, m := range page {
			if m.Read() {
				continue
			}
			// received only: skip messages this account sent
			if c.profileNick != "" && m.TargetUser != c.profileNick {
				continue
			}
			messages = append(messages, m)
			if len(messages) >= count {
				return messages[:count], nil
			}
		}
	}
	return messages, nil
}

func (c *Client) inboxPage(ctx context.Context, user string, offset int) ([]PrivateMessage, error) {
	var page []PrivateMessage
	endpoint := fmt.Sprintf("/messages/usr/%s/inbox?s=%d", user, offset)
	if err := c.get(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// StreamInfo returns info about the current stream if live, or the last
// one.
func (c *Client) StreamInfo(ctx context.Context) (*StreamInfo, error) {
	var info StreamInfo
	if err := c.get(ctx, "/info/stream", &info); err != nil {
		return nil, err
	}
	return &info, nil
}
