package ws

import (
	"context"

	"github.com/pliu/chatvideo/internal/models"
)

// reactable loads a live message userID takes part in.
func (d *Dispatcher) reactable(ctx context.Context, userID, messageID int64) (*models.Message, error) {
	m, err := d.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, lookup(err, DropUnknownMessage)
	}
	if !m.Involves(userID) {
		return nil, drop(DropNotParticipant)
	}
	if m.IsDeleted {
		return nil, drop(DropDeleted)
	}
	return m, nil
}

func (d *Dispatcher) handleAddReaction(ctx context.Context, userID int64, ev *AddReaction) ([]Outbound, error) {
	m, err := d.reactable(ctx, userID, ev.MessageID)
	if err != nil {
		return nil, err
	}
	if _, err := d.store.ToggleReaction(ctx, m.ID, userID, ev.ReactionType); err != nil {
		return nil, err
	}
	reactions, err := d.store.GetReactions(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return assembleReactionUpdate(m, userID, reactions), nil
}

func (d *Dispatcher) handleRemoveReaction(ctx context.Context, userID int64, ev *RemoveReaction) ([]Outbound, error) {
	m, err := d.reactable(ctx, userID, ev.MessageID)
	if err != nil {
		return nil, err
	}
	removed, err := d.store.RemoveReaction(ctx, m.ID, userID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, drop(DropNoReaction)
	}
	reactions, err := d.store.GetReactions(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return assembleReactionUpdate(m, userID, reactions), nil
}
