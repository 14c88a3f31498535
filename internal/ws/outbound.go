package ws

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pliu/chatvideo/internal/models"
)

// Outbound pairs an envelope with the users it is delivered to.
type Outbound struct {
	Envelope any
	Targets  []int64
}

// Outbound type tags not shared with inbound ones.
const (
	TypeConnected           = "connected"
	TypeReactionUpdate      = "reaction_update"
	TypeMessageEdited       = "message_edited"
	TypeMessageDeleted      = "message_deleted"
	TypeMessagesRead        = "messages_read"
	TypeGroupReactionUpdate = "group_reaction_update"
	TypeGroupMessageEdited  = "group_message_edited"
	TypeGroupMessageDeleted = "group_message_deleted"
)

type Connected struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
}

type MessageEnvelope struct {
	Type             string               `json:"type"`
	ID               int64                `json:"id"`
	From             int64                `json:"from"`
	SenderID         int64                `json:"sender_id"`
	ReceiverID       int64                `json:"receiver_id"`
	Content          *string              `json:"content"`
	Attachment       *string              `json:"attachment"`
	MessageType      string               `json:"message_type"`
	LocationLat      *float64             `json:"location_lat"`
	LocationLng      *float64             `json:"location_lng"`
	ReplyToMessageID *int64               `json:"reply_to_message_id"`
	ReplyTo          *models.ReplySnippet `json:"reply_to,omitempty"`
	Sender           models.UserSummary   `json:"sender"`
	CreatedAt        time.Time            `json:"created_at"`
	Timestamp        time.Time            `json:"timestamp"`
	TempID           jsoniter.RawMessage  `json:"temp_id,omitempty"`
}

// CallEnvelope carries call_request and incoming_call, which introduce the caller.
type CallEnvelope struct {
	Type     string              `json:"type"`
	From     int64               `json:"from"`
	CallType string              `json:"call_type"`
	Caller   models.UserSummary  `json:"caller"`
	SDP      jsoniter.RawMessage `json:"sdp,omitempty"`
}

// SignalEnvelope relays call_accept, call_reject, call_answer, ice_candidate,
// call_end and typing. Payload fields are passed through untouched.
type SignalEnvelope struct {
	Type      string              `json:"type"`
	From      int64               `json:"from"`
	SDP       jsoniter.RawMessage `json:"sdp,omitempty"`
	Candidate jsoniter.RawMessage `json:"candidate,omitempty"`
}

// ReactionUpdate always carries the complete reaction list of the message.
type ReactionUpdate struct {
	Type       string            `json:"type"`
	MessageID  int64             `json:"message_id"`
	Reactions  []models.Reaction `json:"reactions"`
	From       int64             `json:"from"`
	SenderID   int64             `json:"sender_id"`
	ReceiverID int64             `json:"receiver_id"`
}

type MessageEdited struct {
	Type       string             `json:"type"`
	MessageID  int64              `json:"message_id"`
	Content    *string            `json:"content"`
	EditedAt   *time.Time         `json:"edited_at"`
	SenderID   int64              `json:"sender_id"`
	ReceiverID int64              `json:"receiver_id"`
	From       int64              `json:"from"`
	Sender     models.UserSummary `json:"sender"`
}

type MessageDeleted struct {
	Type       string             `json:"type"`
	MessageID  int64              `json:"message_id"`
	SenderID   int64              `json:"sender_id"`
	ReceiverID int64              `json:"receiver_id"`
	From       int64              `json:"from"`
	Sender     models.UserSummary `json:"sender"`
}

type MessagesRead struct {
	Type       string    `json:"type"`
	MessageIDs []int64   `json:"message_ids"`
	ReadAt     time.Time `json:"read_at"`
	ReaderID   int64     `json:"reader_id"`
	From       int64     `json:"from"`
}

type GroupMessageEnvelope struct {
	Type             string               `json:"type"`
	ID               int64                `json:"id"`
	GroupID          int64                `json:"group_id"`
	From             int64                `json:"from"`
	SenderID         int64                `json:"sender_id"`
	Content          *string              `json:"content"`
	Attachment       *string              `json:"attachment"`
	MessageType      string               `json:"message_type"`
	LocationLat      *float64             `json:"location_lat"`
	LocationLng      *float64             `json:"location_lng"`
	ReplyToMessageID *int64               `json:"reply_to_message_id"`
	ReplyTo          *models.ReplySnippet `json:"reply_to,omitempty"`
	Sender           models.UserSummary   `json:"sender"`
	CreatedAt        time.Time            `json:"created_at"`
	Timestamp        time.Time            `json:"timestamp"`
	TempID           jsoniter.RawMessage  `json:"temp_id,omitempty"`
}

type GroupReactionUpdate struct {
	Type      string            `json:"type"`
	GroupID   int64             `json:"group_id"`
	MessageID int64             `json:"message_id"`
	Reactions []models.Reaction `json:"reactions"`
	From      int64             `json:"from"`
}

type GroupMessageEdited struct {
	Type      string             `json:"type"`
	GroupID   int64              `json:"group_id"`
	MessageID int64              `json:"message_id"`
	Content   *string            `json:"content"`
	EditedAt  *time.Time         `json:"edited_at"`
	From      int64              `json:"from"`
	Sender    models.UserSummary `json:"sender"`
}

type GroupMessageDeleted struct {
	Type      string             `json:"type"`
	GroupID   int64              `json:"group_id"`
	MessageID int64              `json:"message_id"`
	From      int64              `json:"from"`
	Sender    models.UserSummary `json:"sender"`
}

type GroupTypingEnvelope struct {
	Type    string `json:"type"`
	GroupID int64  `json:"group_id"`
	From    int64  `json:"from"`
}
