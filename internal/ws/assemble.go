package ws

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pliu/chatvideo/internal/models"
	"github.com/samber/lo"
)

// The functions below turn the result of a store mutation into the
// envelopes it broadcasts. They touch neither the store nor the registry.

// brief strips a summary down to id, username and avatar.
func brief(u models.UserSummary) models.UserSummary {
	return models.UserSummary{ID: u.ID, Username: u.Username, ProfilePic: u.ProfilePic}
}

func single(env any, targets ...int64) []Outbound {
	return []Outbound{{Envelope: env, Targets: targets}}
}

// assembleMessage echoes a new direct message to the receiver, then the sender.
func assembleMessage(m *models.Message, sender models.UserSummary, reply *models.ReplySnippet, tempID jsoniter.RawMessage) []Outbound {
	env := MessageEnvelope{
		Type:             TypeMessage,
		ID:               m.ID,
		From:             m.SenderID,
		SenderID:         m.SenderID,
		ReceiverID:       m.ReceiverID,
		Content:          m.Content,
		Attachment:       m.Attachment,
		MessageType:      m.MessageType,
		LocationLat:      m.LocationLat,
		LocationLng:      m.LocationLng,
		ReplyToMessageID: m.ReplyToMessageID,
		ReplyTo:          reply,
		Sender:           sender,
		CreatedAt:        m.CreatedAt,
		Timestamp:        m.CreatedAt,
		TempID:           tempID,
	}
	return single(env, m.ReceiverID, m.SenderID)
}

// replySnippet copies the fields of a referenced message a client renders
// inline, so it never needs a follow-up fetch.
func replySnippet(id int64, content, attachment *string, messageType string, sender models.UserSummary) *models.ReplySnippet {
	return &models.ReplySnippet{
		ID:          id,
		Content:     content,
		Attachment:  attachment,
		MessageType: messageType,
		Sender:      sender,
	}
}

func assembleCall(kind string, from int64, to int64, callType string, caller models.UserSummary, sdp jsoniter.RawMessage) []Outbound {
	if callType == "" {
		callType = "video"
	}
	return single(CallEnvelope{Type: kind, From: from, CallType: callType, Caller: caller, SDP: sdp}, to)
}

func assembleSignal(env SignalEnvelope, to int64) []Outbound {
	return single(env, to)
}

// assembleReactionUpdate notifies the counterpart of actor, then actor.
func assembleReactionUpdate(m *models.Message, actor int64, reactions []models.Reaction) []Outbound {
	env := ReactionUpdate{
		Type:       TypeReactionUpdate,
		MessageID:  m.ID,
		Reactions:  orNone(reactions),
		From:       actor,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
	}
	return single(env, counterpart(m, actor), actor)
}

func assembleEdited(m *models.Message, sender models.UserSummary) []Outbound {
	env := MessageEdited{
		Type:       TypeMessageEdited,
		MessageID:  m.ID,
		Content:    m.Content,
		EditedAt:   m.EditedAt,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		From:       m.SenderID,
		Sender:     brief(sender),
	}
	return single(env, m.ReceiverID, m.SenderID)
}

func assembleDeleted(m *models.Message, sender models.UserSummary) []Outbound {
	env := MessageDeleted{
		Type:       TypeMessageDeleted,
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		From:       m.SenderID,
		Sender:     brief(sender),
	}
	return single(env, m.ReceiverID, m.SenderID)
}

// assembleMessagesRead batches the ids that transitioned into one envelope
// for their sender. No transitions means no envelope.
func assembleMessagesRead(reader, sender int64, ids []int64, at time.Time) []Outbound {
	if len(ids) == 0 {
		return nil
	}
	env := MessagesRead{
		Type:       TypeMessagesRead,
		MessageIDs: ids,
		ReadAt:     at,
		ReaderID:   reader,
		From:       reader,
	}
	return single(env, sender)
}

func assembleGroupMessage(m *models.GroupMessage, sender models.UserSummary, reply *models.ReplySnippet, tempID jsoniter.RawMessage, members []int64) []Outbound {
	env := GroupMessageEnvelope{
		Type:             TypeGroupMessage,
		ID:               m.ID,
		GroupID:          m.GroupID,
		From:             m.SenderID,
		SenderID:         m.SenderID,
		Content:          m.Content,
		Attachment:       m.Attachment,
		MessageType:      m.MessageType,
		LocationLat:      m.LocationLat,
		LocationLng:      m.LocationLng,
		ReplyToMessageID: m.ReplyToMessageID,
		ReplyTo:          reply,
		Sender:           sender,
		CreatedAt:        m.CreatedAt,
		Timestamp:        m.CreatedAt,
		TempID:           tempID,
	}
	return single(env, members...)
}

func assembleGroupReactionUpdate(m *models.GroupMessage, actor int64, reactions []models.Reaction, members []int64) []Outbound {
	env := GroupReactionUpdate{
		Type:      TypeGroupReactionUpdate,
		GroupID:   m.GroupID,
		MessageID: m.ID,
		Reactions: orNone(reactions),
		From:      actor,
	}
	return single(env, members...)
}

func assembleGroupEdited(m *models.GroupMessage, sender models.UserSummary, members []int64) []Outbound {
	env := GroupMessageEdited{
		Type:      TypeGroupMessageEdited,
		GroupID:   m.GroupID,
		MessageID: m.ID,
		Content:   m.Content,
		EditedAt:  m.EditedAt,
		From:      m.SenderID,
		Sender:    brief(sender),
	}
	return single(env, members...)
}

func assembleGroupDeleted(m *models.GroupMessage, sender models.UserSummary, members []int64) []Outbound {
	env := GroupMessageDeleted{
		Type:      TypeGroupMessageDeleted,
		GroupID:   m.GroupID,
		MessageID: m.ID,
		From:      m.SenderID,
		Sender:    brief(sender),
	}
	return single(env, members...)
}

// assembleGroupTyping tells every other member that from is typing.
func assembleGroupTyping(groupID, from int64, members []int64) []Outbound {
	others := lo.Without(members, from)
	if len(others) == 0 {
		return nil
	}
	return single(GroupTypingEnvelope{Type: TypeGroupTyping, GroupID: groupID, From: from}, others...)
}

func counterpart(m *models.Message, userID int64) int64 {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

func orNone(reactions []models.Reaction) []models.Reaction {
	if reactions == nil {
		return []models.Reaction{}
	}
	return reactions
}
