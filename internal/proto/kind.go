package proto

// Kind identifies an event. Wire kinds match the server's frame tokens;
// synthetic kinds are generated locally and never appear on the wire.
type Kind string

const (
	KindServedConnections Kind = "NAMES"
	KindUserJoined        Kind = "JOIN"
	KindUserQuit          Kind = "QUIT"
	KindBroadcast         Kind = "BROADCAST"
	KindChatMessage       Kind = "MSG"
	KindWhisper           Kind = "PRIVMSG"
	KindWhisperSent       Kind = "PRIVMSGSENT"
	KindMute              Kind = "MUTE"
	KindUnmute            Kind = "UNMUTE"
	KindBan               Kind = "BAN"
	KindUnban             Kind = "UNBAN"
	KindSubOnly           Kind = "SUBONLY"
	KindErrorMessage      Kind = "ERR"
)

// Synthetic kinds, dispatched by the connection supervisor for lifecycle
// and cross-cutting signals.
const (
	KindBeforeEveryMessage Kind = "BEFORE_EVERY_MESSAGE"
	KindAfterEveryMessage  Kind = "AFTER_EVERY_MESSAGE"
	KindMention            Kind = "MENTION"
	KindSocketError        Kind = "SOCKET_ERROR"
	KindSocketClosed       Kind = "SOCKET_CLOSED"
	KindHandlerError       Kind = "HANDLER_ERROR"
)

// IsModeration reports whether k is a moderation kind whose data field
// carries an affected user followed by a free-text sentence.
func (k Kind) IsModeration() bool {
	switch k {
	case KindMute, KindUnmute, KindBan, KindUnban:
		return true
	}
	return false
}

// IsAckRelevant reports whether an inbound event of this kind resolves
// the fate of the most recently sent outbound message.
func (k Kind) IsAckRelevant() bool {
	return k == KindErrorMessage || k == KindWhisperSent
}

// IsSynthetic reports whether k is generated locally rather than parsed
// from a wire frame.
func (k Kind) IsSynthetic() bool {
	switch k {
	case KindBeforeEveryMessage, KindAfterEveryMessage, KindMention,
		KindSocketError, KindSocketClosed, KindHandlerError:
		return true
	}
	return false
}
