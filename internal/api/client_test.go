package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vovakirdan/dggchat/internal/log"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "token123", "sid456", log.Nop())
}

func TestUserInfoSendsCredentials(t *testing.T) {
	var gotRequestID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if cookie, err := r.Cookie("authtoken"); err != nil || cookie.Value != "token123" {
			t.Error("authtoken cookie missing")
		}
		if cookie, err := r.Cookie("sid"); err != nil || cookie.Value != "sid456" {
			t.Error("sid cookie missing")
		}
		gotRequestID = r.Header.Get("X-Request-Id")
		w.Write([]byte(`{"userId":1234,"nick":"alice","features":["subscriber"]}`))
	})

	profile, err := c.UserInfo(context.Background())
	if err != nil {
		t.Fatalf("user info: %v", err)
	}
	if profile.Nick != "alice" || !profile.IsSubscriber() {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if gotRequestID == "" {
		t.Error("request id header missing")
	}
	if c.profileNick != "alice" {
		t.Errorf("profile nick not cached: %q", c.profileNick)
	}
}

func TestUserInfoRequiresAuthToken(t *testing.T) {
	c := NewClient("http://example.invalid", "", "", log.Nop())
	var apiErr *Error
	if _, err := c.UserInfo(context.Background()); !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", apiErr.Status)
	}
}

func TestNonOKStatusIsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	var apiErr *Error
	if _, err := c.ChatHistory(context.Background()); !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Endpoint != "/chat/history" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestMessagesUnreadParsesCounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"username":"bob","unread":"3"},{"username":"carol","unread":1}]`))
	})

	unread, err := c.MessagesUnread(context.Background())
	if err != nil {
		t.Fatalf("messages unread: %v", err)
	}
	if unread["bob"] != 3 || unread["carol"] != 1 {
		t.Fatalf("unexpected counts: %v", unread)
	}
}

func TestMessagesInboxFiltersAndPaginates(t *testing.T) {
	pages := map[string]string{
		"0": `[
			{"id":1,"from":"bob","to":"alice","timestamp":"2024-01-02T03:04:05+0000","isread":"1","message":"old"},
			{"id":2,"from":"alice","to":"bob","timestamp":"2024-01-02T03:05:05+0000","isread":"0","message":"mine"},
			{"id":3,"from":"bob","to":"alice","timestamp":"2024-01-02T03:06:05+0000","isread":"0","message":"first"}
		]`,
		"3": `[
			{"id":4,"from":"bob","to":"alice","timestamp":"2024-01-02T03:07:05+0000","isread":"0","message":"second"},
			{"id":5,"from":"bob","to":"alice","timestamp":"2024-01-02T03:08:05+0000","isread":"0","message":"extra"}
		]`,
		"5": `[]`,
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages/usr/bob/inbox" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(pages[r.URL.Query().Get("s")]))
	})
	c.profileNick = "alice"

	messages, err := c.MessagesInbox(context.Background(), "bob", 2)
	if err != nil {
		t.Fatalf("messages inbox: %v", err)
	}
	if len(messages) != 2 || messages[0].Content != "first" || messages[1].Content != "second" {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestPrivateMessageAsWireFrame(t *testing.T) {
	m := PrivateMessage{
		ID:        42,
		FromUser:  "bob",
		Timestamp: "2024-01-02T03:04:05+0000",
		Content:   "psst",
	}
	frame, err := m.AsWireFrame()
	if err != nil {
		t.Fatalf("as wire frame: %v", err)
	}
	want := `PRIVMSG {"messageid":42,"nick":"bob","timestamp":1704164645000,"data":"psst"}`
	if frame != want {
		t.Fatalf("frame = %q, want %q", frame, want)
	}

	if _, err := (PrivateMessage{Timestamp: "garbage"}).AsWireFrame(); err == nil {
		t.Fatal("malformed timestamp accepted")
	}
}
