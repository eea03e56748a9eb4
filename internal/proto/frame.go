package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrEmptyFrame is returned when a frame contains no kind token.
var ErrEmptyFrame = errors.New("empty frame")

// framePayload is the superset of fields known wire payloads may carry.
// Decoding is defensive: absent fields stay zero, never fatal.
type framePayload struct {
	Nick            string     `json:"nick"`
	Features        []string   `json:"features"`
	Timestamp       int64      `json:"timestamp"` // milliseconds
	Data            string     `json:"data"`
	MessageID       int64      `json:"messageid"`
	ConnectionCount int        `json:"connectioncount"`
	Users           []ChatUser `json:"users"`
}

// ParseFrame converts a raw text frame ("<KIND> <json-payload>") into an
// Event. Unknown kinds produce a generic event retaining the raw payload.
// Pure and deterministic; the only failure is an empty frame.
func ParseFrame(line string) (*Event, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrEmptyFrame
	}

	kindTok, rest := splitFirstToken(line)
	ev := &Event{Kind: Kind(kindTok)}

	switch ev.Kind {
	case KindWhisperSent:
		// confirmation only, no payload fields
		return ev, nil
	case KindErrorMessage:
		// error payloads are bare JSON strings, e.g. ERR "throttled"
		var s string
		if json.Unmarshal([]byte(rest), &s) == nil {
			ev.Content = s
		} else {
			ev.Content = rest
		}
		return ev, nil
	}

	var p framePayload
	if err := json.Unmarshal([]byte(rest), &p); err != nil {
		// non-JSON control frame: keep the raw text so nothing is lost
		ev.Raw = rest
		return ev, nil
	}

	switch ev.Kind {
	case KindServedConnections:
		ev.Count = p.ConnectionCount
		ev.Users = p.Users
	case KindUserJoined, KindUserQuit:
		ev.User = &ChatUser{Nick: p.Nick, Features: p.Features}
		ev.Timestamp = toSeconds(p.Timestamp)
	case KindBroadcast:
		ev.Timestamp = toSeconds(p.Timestamp)
		ev.Content = p.Data
	case KindChatMessage:
		ev.User = &ChatUser{Nick: p.Nick, Features: p.Features}
		ev.Timestamp = toSeconds(p.Timestamp)
		ev.Content = p.Data
	case KindWhisper:
		ev.User = &ChatUser{Nick: p.Nick, Features: p.Features}
		ev.Timestamp = toSeconds(p.Timestamp)
		ev.MessageID = p.MessageID
		ev.Content = p.Data
	case KindMute, KindUnmute, KindBan, KindUnban:
		ev.User = &ChatUser{Nick: p.Nick, Features: p.Features}
		ev.Timestamp = toSeconds(p.Timestamp)
		ev.AffectedUser, ev.Sentence = splitFirstToken(p.Data)
	case KindSubOnly:
		ev.User = &ChatUser{Nick: p.Nick, Features: p.Features}
		ev.Timestamp = toSeconds(p.Timestamp)
		ev.Mode = p.Data
	default:
		ev.Raw = rest
	}

	return ev, nil
}

// FormatFrame renders an outbound payload in the wire format.
func FormatFrame(kind Kind, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return fmt.Sprintf("%s %s", kind, data), nil
}

// ChatMessagePayload is the outbound body for MSG frames.
type ChatMessagePayload struct {
	Data string `json:"data"`
}

// WhisperPayload is the outbound body for PRIVMSG frames.
type WhisperPayload struct {
	Nick string `json:"nick"`
	Data string `json:"data"`
}

// splitFirstToken cuts s on the first whitespace run into a leading
// token and the trimmed remainder.
func splitFirstToken(s string) (string, string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimLeftFunc(s[idx:], unicode.IsSpace)
}

func toSeconds(millis int64) float64 {
	return float64(millis) / 1000
}
