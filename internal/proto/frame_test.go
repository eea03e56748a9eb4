package proto

import (
	"errors"
	"testing"
)

func TestParseFrameChatMessage(t *testing.T) {
	ev, err := ParseFrame(`MSG {"nick":"alice","features":["subscriber"],"timestamp":1587000000500,"data":"hello chat"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Kind != KindChatMessage {
		t.Fatalf("kind = %s, want MSG", ev.Kind)
	}
	if ev.User == nil || ev.User.Nick != "alice" {
		t.Fatalf("unexpected user: %+v", ev.User)
	}
	if !ev.User.HasFeature("subscriber") {
		t.Fatalf("expected subscriber feature, got %v", ev.User.Features)
	}
	if ev.Timestamp != 1587000000.5 {
		t.Fatalf("timestamp = %v, want 1587000000.5", ev.Timestamp)
	}
	if ev.Content != "hello chat" {
		t.Fatalf("content = %q", ev.Content)
	}
}

func TestParseFrameServedConnections(t *testing.T) {
	ev, err := ParseFrame(`NAMES {"connectioncount":312,"users":[{"nick":"alice","features":[]},{"nick":"bob","features":["bot"]}]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Kind != KindServedConnections {
		t.Fatalf("kind = %s", ev.Kind)
	}
	if ev.Count != 312 {
		t.Fatalf("count = %d, want 312", ev.Count)
	}
	if len(ev.Users) != 2 || ev.Users[1].Nick != "bob" {
		t.Fatalf("unexpected users: %+v", ev.Users)
	}
}

func TestParseFrameWhisper(t *testing.T) {
	ev, err := ParseFrame(`PRIVMSG {"messageid":441,"nick":"bob","timestamp":1587000001000,"data":"psst"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Kind != KindWhisper || ev.MessageID != 441 || ev.Content != "psst" {
		t.Fatalf("unexpected whisper: %+v", ev)
	}
	if ev.Sender() != "bob" {
		t.Fatalf("sender = %q", ev.Sender())
	}
}

func TestParseFrameModerationSplitsData(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		kind  Kind
	}{
		{"mute", `MUTE {"nick":"mod","timestamp":1587000000000,"data":"troll 10 minutes for spam"}`, KindMute},
		{"ban", `BAN {"nick":"mod","timestamp":1587000000000,"data":"troll 10 minutes for spam"}`, KindBan},
		{"unmute", `UNMUTE {"nick":"mod","timestamp":1587000000000,"data":"troll 10 minutes for spam"}`, KindUnmute},
		{"unban", `UNBAN {"nick":"mod","timestamp":1587000000000,"data":"troll 10 minutes for spam"}`, KindUnban},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseFrame(tt.frame)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if ev.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", ev.Kind, tt.kind)
			}
			if ev.Sender() != "mod" {
				t.Fatalf("moderator = %q", ev.Sender())
			}
			if ev.AffectedUser != "troll" {
				t.Fatalf("affected = %q", ev.AffectedUser)
			}
			if ev.Sentence != "10 minutes for spam" {
				t.Fatalf("sentence = %q", ev.Sentence)
			}
		})
	}
}

func TestParseFrameModerationWithoutSentence(t *testing.T) {
	ev, err := ParseFrame(`UNBAN {"nick":"mod","data":"troll"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.AffectedUser != "troll" || ev.Sentence != "" {
		t.Fatalf("affected = %q, sentence = %q", ev.AffectedUser, ev.Sentence)
	}
}

func TestParseFrameSubOnly(t *testing.T) {
	ev, err := ParseFrame(`SUBONLY {"nick":"mod","timestamp":1587000000000,"data":"on"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Mode != "on" {
		t.Fatalf("mode = %q", ev.Mode)
	}
}

func TestParseFrameErrorPayload(t *testing.T) {
	ev, err := ParseFrame(`ERR "throttled"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Kind != KindErrorMessage || ev.Content != "throttled" {
		t.Fatalf("unexpected error event: %+v", ev)
	}
}

func TestParseFrameWhisperSent(t *testing.T) {
	ev, err := ParseFrame(`PRIVMSGSENT`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Kind != KindWhisperSent {
		t.Fatalf("kind = %s", ev.Kind)
	}
}

func TestParseFrameUnknownKindKeepsRaw(t *testing.T) {
	ev, err := ParseFrame(`PING {"data":"ok"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Kind != Kind("PING") {
		t.Fatalf("kind = %s", ev.Kind)
	}
	if ev.Raw != `{"data":"ok"}` {
		t.Fatalf("raw = %q", ev.Raw)
	}
}

func TestParseFrameNonJSONPayload(t *testing.T) {
	ev, err := ParseFrame(`MSG not-json-at-all`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Raw != "not-json-at-all" {
		t.Fatalf("raw = %q", ev.Raw)
	}
}

func TestParseFrameEmpty(t *testing.T) {
	if _, err := ParseFrame("   "); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("err = %v, want ErrEmptyFrame", err)
	}
}

func TestParseFrameMissingFieldsDefault(t *testing.T) {
	ev, err := ParseFrame(`JOIN {}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.User == nil || ev.User.Nick != "" || ev.Timestamp != 0 {
		t.Fatalf("unexpected defaults: %+v", ev)
	}
}

// Round trip: frames rendered by FormatFrame parse back into the fields
// each kind defines.
func TestFormatFrameRoundTrip(t *testing.T) {
	frame, err := FormatFrame(KindWhisper, WhisperPayload{Nick: "bob", Data: "hi there"})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	ev, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Kind != KindWhisper || ev.Sender() != "bob" || ev.Content != "hi there" {
		t.Fatalf("round trip mismatch: %+v", ev)
	}

	frame, err = FormatFrame(KindChatMessage, ChatMessagePayload{Data: "two  spaces"})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	ev, err = ParseFrame(frame)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Kind != KindChatMessage || ev.Content != "two  spaces" {
		t.Fatalf("round trip mismatch: %+v", ev)
	}
}

func TestKindPredicates(t *testing.T) {
	if !KindErrorMessage.IsAckRelevant() || !KindWhisperSent.IsAckRelevant() {
		t.Fatal("ERR and PRIVMSGSENT must be ack-relevant")
	}
	if KindChatMessage.IsAckRelevant() {
		t.Fatal("MSG must not be ack-relevant")
	}
	if !KindBan.IsModeration() || KindSubOnly.IsModeration() {
		t.Fatal("moderation predicate mismatch")
	}
	if !KindMention.IsSynthetic() || KindChatMessage.IsSynthetic() {
		t.Fatal("synthetic predicate mismatch")
	}
}
