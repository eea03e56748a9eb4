package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vovakirdan/dggchat/internal/proto"
)

// Profile describes the account behind the connection's credentials.
type Profile struct {
	ID           json.Number    `json:"userId"`
	Nick         string         `json:"nick"`
	Username     string         `json:"username"`
	Status       string         `json:"userStatus"`
	CreatedDate  string         `json:"createdDate"`
	Features     []string       `json:"features"`
	Roles        []string       `json:"roles"`
	Subscription map[string]any `json:"subscription"`
}

// IsSubscriber reports whether the profile carries the subscriber flair.
func (p *Profile) IsSubscriber() bool {
	for _, f := range p.Features {
		if f == "subscriber" {
			return true
		}
	}
	return false
}

// PrivateMessage is one entry of a user's whisper inbox.
type PrivateMessage struct {
	ID                int64       `json:"id"`
	FromUser          string      `json:"from"`
	TargetUser        string      `json:"to"`
	FromUserID        json.Number `json:"userid"`
	TargetUserID      json.Number `json:"targetuserid"`
	Timestamp         string      `json:"timestamp"`
	IsRead            json.Number `json:"isread"`
	DeletedBySender   json.Number `json:"deletedbysender"`
	DeletedByReceiver json.Number `json:"deletedbyreceiver"`
	Content           string      `json:"message"`
}

// inboxTimeLayout matches the backend's timestamp rendering.
const inboxTimeLayout = "2006-01-02T15:04:05-0700"

// Read reports whether the message was already read.
func (m PrivateMessage) Read() bool {
	n, err := m.IsRead.Int64()
	return err == nil && n != 0
}

// SentAt parses the message timestamp.
func (m PrivateMessage) SentAt() (time.Time, error) {
	return time.Parse(inboxTimeLayout, m.Timestamp)
}

// AsWireFrame renders the message in the websocket whisper format so it
// can be replayed through the dispatcher.
func (m PrivateMessage) AsWireFrame() (string, error) {
	sentAt, err := m.SentAt()
	if err != nil {
		return "", fmt.Errorf("parse timestamp %q: %w", m.Timestamp, err)
	}
	return proto.FormatFrame(proto.KindWhisper, struct {
		MessageID int64  `json:"messageid"`
		Nick      string `json:"nick"`
		Timestamp int64  `json:"timestamp"`
		Data      string `json:"data"`
	}{
		MessageID: m.ID,
		Nick:      m.FromUser,
		Timestamp: sentAt.UnixMilli(),
		Data:      m.Content,
	})
}

// StreamInfo describes the current stream if live, or the last one.
type StreamInfo struct {
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at"`
	Duration   int64  `json:"duration"`
	Viewers    int    `json:"viewers"`
	Game       string `json:"game"`
	Host       string `json:"host"`
	Live       bool   `json:"live"`
	Preview    string `json:"preview"`
	StatusText string `json:"status_text"`
}
