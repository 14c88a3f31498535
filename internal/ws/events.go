package ws

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

// Event is one decoded inbound envelope. The set of implementations is
// closed; Unrecognized stands in for any type tag outside it.
type Event interface {
	kind() string
}

// Kind returns the type tag of ev.
func Kind(ev Event) string { return ev.kind() }

// ErrMalformed is returned by Decode for frames that are not valid JSON or
// that lack a required field.
var ErrMalformed = errors.New("malformed envelope")

// Inbound type tags.
const (
	TypeMessage            = "message"
	TypeCallRequest        = "call_request"
	TypeCallAccept         = "call_accept"
	TypeCallReject         = "call_reject"
	TypeIncomingCall       = "incoming_call"
	TypeCallAnswer         = "call_answer"
	TypeICECandidate       = "ice_candidate"
	TypeCallEnd            = "call_end"
	TypeTyping             = "typing"
	TypeAddReaction        = "add_reaction"
	TypeRemoveReaction     = "remove_reaction"
	TypeEditMessage        = "edit_message"
	TypeDeleteMessage      = "delete_message"
	TypeMarkRead           = "mark_read"
	TypeGroupMessage       = "group_message"
	TypeGroupAddReaction   = "group_add_reaction"
	TypeGroupEditMessage   = "group_edit_message"
	TypeGroupDeleteMessage = "group_delete_message"
	TypeGroupTyping        = "group_typing"
)

type ChatMessage struct {
	To               int64               `json:"to" validate:"required"`
	Content          *string             `json:"content"`
	Attachment       *string             `json:"attachment"`
	MessageType      string              `json:"message_type" validate:"omitempty,oneof=text image video location circular_video audio"`
	LocationLat      *float64            `json:"location_lat"`
	LocationLng      *float64            `json:"location_lng"`
	ReplyToMessageID *int64              `json:"reply_to_message_id"`
	TempID           jsoniter.RawMessage `json:"temp_id"`
}

type CallRequest struct {
	To       int64  `json:"to" validate:"required"`
	CallType string `json:"call_type"`
}

type CallAccept struct {
	To int64 `json:"to" validate:"required"`
}

type CallReject struct {
	To int64 `json:"to" validate:"required"`
}

// IncomingCall carries the SDP offer, relayed without interpretation.
type IncomingCall struct {
	To       int64               `json:"to" validate:"required"`
	SDP      jsoniter.RawMessage `json:"sdp" validate:"opaque"`
	CallType string              `json:"call_type"`
}

type CallAnswer struct {
	To  int64               `json:"to" validate:"required"`
	SDP jsoniter.RawMessage `json:"sdp" validate:"opaque"`
}

type ICECandidate struct {
	To        int64               `json:"to" validate:"required"`
	Candidate jsoniter.RawMessage `json:"candidate" validate:"opaque"`
}

type CallEnd struct {
	To int64 `json:"to" validate:"required"`
}

type Typing struct {
	To int64 `json:"to" validate:"required"`
}

type AddReaction struct {
	MessageID    int64  `json:"message_id" validate:"required"`
	ReactionType string `json:"reaction_type" validate:"required"`
}

// RemoveReaction drops the acting user's reaction; a direct message holds at
// most one per user, so ReactionType is accepted but not consulted.
type RemoveReaction struct {
	MessageID    int64  `json:"message_id" validate:"required"`
	ReactionType string `json:"reaction_type"`
}

type EditMessage struct {
	MessageID int64  `json:"message_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

type DeleteMessage struct {
	MessageID int64 `json:"message_id" validate:"required"`
}

// MarkRead names the counterparty whose messages were read in UserID.
type MarkRead struct {
	MessageIDs []int64 `json:"message_ids" validate:"required"`
	UserID     int64   `json:"user_id" validate:"required"`
}

type GroupChatMessage struct {
	GroupID          int64               `json:"group_id" validate:"required"`
	Content          *string             `json:"content"`
	Attachment       *string             `json:"attachment"`
	MessageType      string              `json:"message_type" validate:"omitempty,oneof=text image video location circular_video audio"`
	LocationLat      *float64            `json:"location_lat"`
	LocationLng      *float64            `json:"location_lng"`
	ReplyToMessageID *int64              `json:"reply_to_message_id"`
	TempID           jsoniter.RawMessage `json:"temp_id"`
}

type GroupAddReaction struct {
	MessageID    int64  `json:"message_id" validate:"required"`
	ReactionType string `json:"reaction_type" validate:"required"`
}

type GroupEditMessage struct {
	MessageID int64  `json:"message_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

type GroupDeleteMessage struct {
	MessageID int64 `json:"message_id" validate:"required"`
}

type GroupTyping struct {
	GroupID int64 `json:"group_id" validate:"required"`
}

// Unrecognized is any envelope whose type tag has no handler.
type Unrecognized struct {
	Type string
}

func (ChatMessage) kind() string        { return TypeMessage }
func (CallRequest) kind() string        { return TypeCallRequest }
func (CallAccept) kind() string         { return TypeCallAccept }
func (CallReject) kind() string         { return TypeCallReject }
func (IncomingCall) kind() string       { return TypeIncomingCall }
func (CallAnswer) kind() string         { return TypeCallAnswer }
func (ICECandidate) kind() string       { return TypeICECandidate }
func (CallEnd) kind() string            { return TypeCallEnd }
func (Typing) kind() string             { return TypeTyping }
func (AddReaction) kind() string        { return TypeAddReaction }
func (RemoveReaction) kind() string     { return TypeRemoveReaction }
func (EditMessage) kind() string        { return TypeEditMessage }
func (DeleteMessage) kind() string      { return TypeDeleteMessage }
func (MarkRead) kind() string           { return TypeMarkRead }
func (GroupChatMessage) kind() string   { return TypeGroupMessage }
func (GroupAddReaction) kind() string   { return TypeGroupAddReaction }
func (GroupEditMessage) kind() string   { return TypeGroupEditMessage }
func (GroupDeleteMessage) kind() string { return TypeGroupDeleteMessage }
func (GroupTyping) kind() string        { return TypeGroupTyping }
func (u Unrecognized) kind() string     { return u.Type }

var events = map[string]func() Event{
	TypeMessage:            func() Event { return &ChatMessage{} },
	TypeCallRequest:        func() Event { return &CallRequest{} },
	TypeCallAccept:         func() Event { return &CallAccept{} },
	TypeCallReject:         func() Event { return &CallReject{} },
	TypeIncomingCall:       func() Event { return &IncomingCall{} },
	TypeCallAnswer:         func() Event { return &CallAnswer{} },
	TypeICECandidate:       func() Event { return &ICECandidate{} },
	TypeCallEnd:            func() Event { return &CallEnd{} },
	TypeTyping:             func() Event { return &Typing{} },
	TypeAddReaction:        func() Event { return &AddReaction{} },
	TypeRemoveReaction:     func() Event { return &RemoveReaction{} },
	TypeEditMessage:        func() Event { return &EditMessage{} },
	TypeDeleteMessage:      func() Event { return &DeleteMessage{} },
	TypeMarkRead:           func() Event { return &MarkRead{} },
	TypeGroupMessage:       func() Event { return &GroupChatMessage{} },
	TypeGroupAddReaction:   func() Event { return &GroupAddReaction{} },
	TypeGroupEditMessage:   func() Event { return &GroupEditMessage{} },
	TypeGroupDeleteMessage: func() Event { return &GroupDeleteMessage{} },
	TypeGroupTyping:        func() Event { return &GroupTyping{} },
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// opaque accepts any JSON value except null or absent.
	_ = v.RegisterValidation("opaque", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.Slice {
			return false
		}
		raw := bytes.TrimSpace(f.Bytes())
		return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
	})
	return v
}

// Decode classifies a raw frame by its type tag and decodes the matching
// event. Unknown tags yield Unrecognized with a nil error.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	newEvent, ok := events[head.Type]
	if !ok {
		return Unrecognized{Type: head.Type}, nil
	}

	ev := newEvent()
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, head.Type, err)
	}
	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, head.Type, err)
	}
	return ev, nil
}
