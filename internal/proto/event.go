package proto

// ChatUser is a chat participant as carried by wire frames.
type ChatUser struct {
	Nick     string   `json:"nick"`
	Features []string `json:"features"`
}

// HasFeature reports whether the user carries the given role/flair tag.
func (u ChatUser) HasFeature(feature string) bool {
	for _, f := range u.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Event is a parsed inbound frame or a synthetic lifecycle signal.
// Only the fields defined by the event's kind are populated; an Event is
// never mutated after parsing.
type Event struct {
	Kind Kind

	// Raw holds the undecoded payload text. It is retained only for
	// unknown kinds, where no typed fields apply.
	Raw string

	// User is the sender for chat and whisper events, the moderator for
	// moderation events, and the joining/quitting user for presence
	// events.
	User *ChatUser

	// Users and Count are populated for NAMES.
	Users []ChatUser
	Count int

	// Timestamp is normalized to fractional seconds since the epoch.
	Timestamp float64

	// MessageID is populated for whispers.
	MessageID int64

	// Content carries the data field for chat, whisper and broadcast
	// events, and the bare string payload for error events.
	Content string

	// AffectedUser and Sentence are the two halves of a moderation
	// event's data field.
	AffectedUser string
	Sentence     string

	// Mode is "on" or "off" for SUBONLY.
	Mode string

	// Err is populated for SOCKET_ERROR.
	Err error

	// HandlerErrs is the collected failure batch for HANDLER_ERROR.
	HandlerErrs []error
}

// Sender returns the nick of the event's user, or "" when absent.
func (e *Event) Sender() string {
	if e.User == nil {
		return ""
	}
	return e.User.Nick
}
