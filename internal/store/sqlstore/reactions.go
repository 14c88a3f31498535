package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pliu/chatvideo/internal/models"
	"github.com/pliu/chatvideo/internal/store"
	"github.com/samber/lo"
)

// errReactionGone marks a row that a concurrent toggle deleted between the
// insert attempt and the follow-up statement.
var errReactionGone = errors.New("reaction removed concurrently")

const reactionAttempts = 3

// ToggleReaction keeps one reaction row per (message, user). Reacting with
// the current type removes it; any other type replaces it in place.
func (s *SQLStore) ToggleReaction(ctx context.Context, messageID, userID int64, reactionType string) (store.ReactionChange, error) {
	return s.retryReaction(func() (store.ReactionChange, error) {
		var change store.ReactionChange
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			inserted, err := insertIfAbsent(tx.ExecContext(ctx, s.rebind(`INSERT INTO message_reactions (message_id, user_id, reaction_type, created_at)
				VALUES (?, ?, ?, ?) ON CONFLICT (message_id, user_id) DO NOTHING`), messageID, userID, reactionType, time.Now().UTC()))
			if err != nil {
				return err
			} else if inserted {
				change = store.ReactionAdded
				return nil
			}

			var id int64
			var current string
			query := s.forUpdate(s.rebind("SELECT id, reaction_type FROM message_reactions WHERE message_id = ? AND user_id = ?"))
			err = tx.QueryRowContext(ctx, query, messageID, userID).Scan(&id, &current)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return errReactionGone
			case err != nil:
				return err
			case current == reactionType:
				change = store.ReactionRemoved
				_, err = tx.ExecContext(ctx, s.rebind("DELETE FROM message_reactions WHERE id = ?"), id)
			default:
				change = store.ReactionReplaced
				_, err = tx.ExecContext(ctx, s.rebind("UPDATE message_reactions SET reaction_type = ? WHERE id = ?"), reactionType, id)
			}
			return err
		})
		return change, err
	})
}

func (s *SQLStore) RemoveReaction(ctx context.Context, messageID, userID int64) (bool, error) {
	query := s.rebind("DELETE FROM message_reactions WHERE message_id = ? AND user_id = ?")
	err := expectOne(s.db.ExecContext(ctx, query, messageID, userID))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLStore) GetReactions(ctx context.Context, messageID int64) ([]models.Reaction, error) {
	byMessage, err := s.reactionsFor(ctx, "message_reactions", []int64{messageID})
	if err != nil {
		return nil, err
	}
	return orEmpty(byMessage[messageID]), nil
}

// ToggleGroupReaction keeps one row per (message, user, type). Reacting with
// a type already present removes that row; a new type adds another row.
func (s *SQLStore) ToggleGroupReaction(ctx context.Context, messageID, userID int64, reactionType string) (store.ReactionChange, error) {
	return s.retryReaction(func() (store.ReactionChange, error) {
		var change store.ReactionChange
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			inserted, err := insertIfAbsent(tx.ExecContext(ctx, s.rebind(`INSERT INTO group_message_reactions (message_id, user_id, reaction_type, created_at)
				VALUES (?, ?, ?, ?) ON CONFLICT (message_id, user_id, reaction_type) DO NOTHING`), messageID, userID, reactionType, time.Now().UTC()))
			if err != nil {
				return err
			} else if inserted {
				change = store.ReactionAdded
				return nil
			}

			change = store.ReactionRemoved
			query := s.rebind("DELETE FROM group_message_reactions WHERE message_id = ? AND user_id = ? AND reaction_type = ?")
			err = expectOne(tx.ExecContext(ctx, query, messageID, userID, reactionType))
			if errors.Is(err, store.ErrNotFound) {
				return errReactionGone
			}
			return err
		})
		return change, err
	})
}

// retryReaction reruns a toggle whose target row was deleted by a concurrent writer.
func (s *SQLStore) retryReaction(toggle func() (store.ReactionChange, error)) (store.ReactionChange, error) {
	var err error
	for range reactionAttempts {
		var change store.ReactionChange
		change, err = toggle()
		if !errors.Is(err, errReactionGone) {
			if err != nil {
				return 0, err
			}
			return change, nil
		}
	}
	return 0, err
}

func insertIfAbsent(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// forUpdate locks the selected rows until the transaction ends. SQLite runs
// on a single connection and has no row locks.
func (s *SQLStore) forUpdate(query string) string {
	if s.driverName == "postgres" {
		return query + " FOR UPDATE"
	}
	return query
}

func (s *SQLStore) GetGroupReactions(ctx context.Context, messageID int64) ([]models.Reaction, error) {
	byMessage, err := s.reactionsFor(ctx, "group_message_reactions", []int64{messageID})
	if err != nil {
		return nil, err
	}
	return orEmpty(byMessage[messageID]), nil
}

// reactionsFor loads the reactions of the given messages from table, with
// the reacting user attached, ordered by creation.
func (s *SQLStore) reactionsFor(ctx context.Context, table string, messageIDs []int64) (map[int64][]models.Reaction, error) {
	out := make(map[int64][]models.Reaction, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}
	args := lo.Map(messageIDs, func(id int64, _ int) any { return id })
	query := s.rebind(`SELECT r.id, r.message_id, r.user_id, r.reaction_type, r.created_at, u.username, u.profile_pic
		FROM ` + table + ` r
		JOIN users u ON u.id = r.user_id
		WHERE r.message_id IN (` + inClause(len(messageIDs)) + `)
		ORDER BY r.id ASC`)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r models.Reaction
		u := &models.UserSummary{}
		if err := rows.Scan(&r.ID, &r.MessageID, &r.UserID, &r.ReactionType, &r.CreatedAt, &u.Username, &u.ProfilePic); err != nil {
			return nil, err
		}
		u.ID = r.UserID
		r.User = u
		out[r.MessageID] = append(out[r.MessageID], r)
	}
	return out, rows.Err()
}

func orEmpty(reactions []models.Reaction) []models.Reaction {
	if reactions == nil {
		return []models.Reaction{}
	}
	return reactions
}
