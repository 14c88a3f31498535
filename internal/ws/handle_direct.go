package ws

import (
	"context"
	"errors"

	"github.com/pliu/chatvideo/internal/models"
	"github.com/pliu/chatvideo/internal/store"
)

func (d *Dispatcher) handleMessage(ctx context.Context, userID int64, ev *ChatMessage) ([]Outbound, error) {
	receiver, err := d.store.GetUserByID(ctx, ev.To)
	if err != nil {
		return nil, lookup(err, DropUnknownUser)
	}
	sender, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, lookup(err, DropUnknownUser)
	}

	// A reply only keeps its reference when the target is a live message of
	// the same conversation.
	var reply *models.Message
	if ev.ReplyToMessageID != nil {
		m, err := d.store.GetMessage(ctx, *ev.ReplyToMessageID)
		switch {
		case err == nil:
			if !m.IsDeleted && m.Between(userID, receiver.ID) {
				reply = m
			}
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	msg := &models.Message{
		SenderID:    userID,
		ReceiverID:  receiver.ID,
		Content:     ev.Content,
		Attachment:  ev.Attachment,
		MessageType: ev.MessageType,
		LocationLat: ev.LocationLat,
		LocationLng: ev.LocationLng,
	}
	if reply != nil {
		msg.ReplyToMessageID = &reply.ID
	}
	if err := d.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	var snippet *models.ReplySnippet
	if reply != nil {
		author := receiver
		if reply.SenderID == sender.ID {
			author = sender
		}
		snippet = replySnippet(reply.ID, reply.Content, reply.Attachment, reply.MessageType, author.Summary())
	}
	return assembleMessage(msg, sender.Summary(), snippet, ev.TempID), nil
}

// ownMessage loads a live message written by userID.
func (d *Dispatcher) ownMessage(ctx context.Context, userID, messageID int64) (*models.Message, error) {
	m, err := d.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, lookup(err, DropUnknownMessage)
	}
	if m.SenderID != userID {
		return nil, drop(DropNotSender)
	}
	if m.IsDeleted {
		return nil, drop(DropDeleted)
	}
	return m, nil
}

func (d *Dispatcher) handleEdit(ctx context.Context, userID int64, ev *EditMessage) ([]Outbound, error) {
	if _, err := d.ownMessage(ctx, userID, ev.MessageID); err != nil {
		return nil, err
	}
	// The store re-checks sender and deletion in the same statement, so a
	// concurrent delete wins.
	edited, err := d.store.EditMessage(ctx, ev.MessageID, userID, ev.Content, d.now())
	if err != nil {
		return nil, lookup(err, DropDeleted)
	}
	sender, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, lookup(err, DropUnknownUser)
	}
	return assembleEdited(edited, sender.Summary()), nil
}

func (d *Dispatcher) handleDelete(ctx context.Context, userID int64, ev *DeleteMessage) ([]Outbound, error) {
	if _, err := d.ownMessage(ctx, userID, ev.MessageID); err != nil {
		return nil, err
	}
	deleted, err := d.store.DeleteMessage(ctx, ev.MessageID, userID)
	if err != nil {
		return nil, lookup(err, DropDeleted)
	}
	sender, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, lookup(err, DropUnknownUser)
	}
	return assembleDeleted(deleted, sender.Summary()), nil
}

// handleMarkRead marks the messages ev.UserID sent to userID. Ids that are
// not such messages are skipped rather than failing the batch.
func (d *Dispatcher) handleMarkRead(ctx context.Context, userID int64, ev *MarkRead) ([]Outbound, error) {
	at := d.now().UTC()
	changed, err := d.store.MarkRead(ctx, userID, ev.UserID, ev.MessageIDs, at)
	if err != nil {
		return nil, err
	}
	return assembleMessagesRead(userID, ev.UserID, changed, at), nil
}
