package ws

import (
	"context"
	"errors"

	"github.com/pliu/chatvideo/internal/models"
	"github.com/pliu/chatvideo/internal/store"
)

// members returns the member ids of groupID once userID is known to be one.
func (d *Dispatcher) members(ctx context.Context, groupID, userID int64) ([]int64, error) {
	if _, err := d.store.GetGroupMember(ctx, groupID, userID); err != nil {
		return nil, lookup(err, DropNotMember)
	}
	return d.store.GetGroupMemberIDs(ctx, groupID)
}

func (d *Dispatcher) handleGroupMessage(ctx context.Context, userID int64, ev *GroupChatMessage) ([]Outbound, error) {
	members, err := d.members(ctx, ev.GroupID, userID)
	if err != nil {
		return nil, err
	}

	var reply *models.GroupMessage
	if ev.ReplyToMessageID != nil {
		m, err := d.store.GetGroupMessage(ctx, *ev.ReplyToMessageID)
		switch {
		case err == nil:
			if !m.IsDeleted && m.GroupID == ev.GroupID {
				reply = m
			}
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	msg := &models.GroupMessage{
		GroupID:     ev.GroupID,
		SenderID:    userID,
		Content:     ev.Content,
		Attachment:  ev.Attachment,
		MessageType: ev.MessageType,
		LocationLat: ev.LocationLat,
		LocationLng: ev.LocationLng,
	}
	if reply != nil {
		msg.ReplyToMessageID = &reply.ID
	}
	if err := d.store.CreateGroupMessage(ctx, msg); err != nil {
		return nil, err
	}

	sender, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, lookup(err, DropUnknownUser)
	}
	var snippet *models.ReplySnippet
	if reply != nil {
		author := sender
		if reply.SenderID != userID {
			if author, err = d.store.GetUserByID(ctx, reply.SenderID); err != nil {
				return nil, lookup(err, DropUnknownUser)
			}
		}
		snippet = replySnippet(reply.ID, reply.Content, reply.Attachment, reply.MessageType, author.Summary())
	}
	return assembleGroupMessage(msg, sender.Summary(), snippet, ev.TempID, members), nil
}

// groupMessage loads a live group message and the members of its group,
// provided userID is one of them.
func (d *Dispatcher) groupMessage(ctx context.Context, userID, messageID int64) (*models.GroupMessage, []int64, error) {
	m, err := d.store.GetGroupMessage(ctx, messageID)
	if err != nil {
		return nil, nil, lookup(err, DropUnknownMessage)
	}
	members, err := d.members(ctx, m.GroupID, userID)
	if err != nil {
		return nil, nil, err
	}
	if m.IsDeleted {
		return nil, nil, drop(DropDeleted)
	}
	return m, members, nil
}

func (d *Dispatcher) handleGroupReaction(ctx context.Context, userID int64, ev *GroupAddReaction) ([]Outbound, error) {
	m, members, err := d.groupMessage(ctx, userID, ev.MessageID)
	if err != nil {
		return nil, err
	}
	if _, err := d.store.ToggleGroupReaction(ctx, m.ID, userID, ev.ReactionType); err != nil {
		return nil, err
	}
	reactions, err := d.store.GetGroupReactions(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return assembleGroupReactionUpdate(m, userID, reactions, members), nil
}

func (d *Dispatcher) handleGroupEdit(ctx context.Context, userID int64, ev *GroupEditMessage) ([]Outbound, error) {
	m, members, err := d.groupMessage(ctx, userID, ev.MessageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != userID {
		return nil, drop(DropNotSender)
	}
	edited, err := d.store.EditGroupMessage(ctx, m.ID, userID, ev.Content, d.now())
	if err != nil {
		return nil, lookup(err, DropDeleted)
	}
	sender, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, lookup(err, DropUnknownUser)
	}
	return assembleGroupEdited(edited, sender.Summary(), members), nil
}

func (d *Dispatcher) handleGroupDelete(ctx context.Context, userID int64, ev *GroupDeleteMessage) ([]Outbound, error) {
	m, members, err := d.groupMessage(ctx, userID, ev.MessageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != userID {
		return nil, drop(DropNotSender)
	}
	deleted, err := d.store.DeleteGroupMessage(ctx, m.ID, userID)
	if err != nil {
		return nil, lookup(err, DropDeleted)
	}
	sender, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, lookup(err, DropUnknownUser)
	}
	return assembleGroupDeleted(deleted, sender.Summary(), members), nil
}

func (d *Dispatcher) handleGroupTyping(ctx context.Context, userID int64, ev *GroupTyping) ([]Outbound, error) {
	members, err := d.members(ctx, ev.GroupID, userID)
	if err != nil {
		return nil, err
	}
	return assembleGroupTyping(ev.GroupID, userID, members), nil
}
