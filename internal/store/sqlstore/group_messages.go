package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pliu/chatvideo/internal/models"
	"github.com/samber/lo"
)

const groupMessageColumns = "id, group_id, sender_id, content, attachment, message_type, location_lat, location_lng, reply_to_message_id, is_deleted, edited_at, created_at"

func scanGroupMessage(row scanner) (*models.GroupMessage, error) {
	var m models.GroupMessage
	err := row.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.Content, &m.Attachment, &m.MessageType, &m.LocationLat, &m.LocationLng,
		&m.ReplyToMessageID, &m.IsDeleted, &m.EditedAt, &m.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *SQLStore) CreateGroupMessage(ctx context.Context, msg *models.GroupMessage) error {
	if msg.MessageType == "" {
		msg.MessageType = models.MessageTypeText
	}
	msg.CreatedAt = time.Now().UTC()
	msg.IsDeleted, msg.EditedAt = false, nil

	query := s.rebind(`INSERT INTO group_messages (group_id, sender_id, content, attachment, message_type, location_lat, location_lng, reply_to_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	return s.db.QueryRowContext(ctx, query, msg.GroupID, msg.SenderID, msg.Content, msg.Attachment, msg.MessageType,
		msg.LocationLat, msg.LocationLng, msg.ReplyToMessageID, msg.CreatedAt).Scan(&msg.ID)
}

func (s *SQLStore) GetGroupMessage(ctx context.Context, id int64) (*models.GroupMessage, error) {
	query := s.rebind("SELECT " + groupMessageColumns + " FROM group_messages WHERE id = ?")
	return scanGroupMessage(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) EditGroupMessage(ctx context.Context, id, senderID int64, content string, at time.Time) (*models.GroupMessage, error) {
	var msg *models.GroupMessage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := s.rebind("UPDATE group_messages SET content = ?, edited_at = ? WHERE id = ? AND sender_id = ? AND is_deleted = FALSE")
		if err := expectOne(tx.ExecContext(ctx, query, content, at.UTC(), id, senderID)); err != nil {
			return err
		}
		var err error
		msg, err = scanGroupMessage(tx.QueryRowContext(ctx, s.rebind("SELECT "+groupMessageColumns+" FROM group_messages WHERE id = ?"), id))
		return err
	})
	return msg, err
}

func (s *SQLStore) DeleteGroupMessage(ctx context.Context, id, senderID int64) (*models.GroupMessage, error) {
	var msg *models.GroupMessage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := s.rebind("UPDATE group_messages SET is_deleted = TRUE WHERE id = ? AND sender_id = ? AND is_deleted = FALSE")
		if err := expectOne(tx.ExecContext(ctx, query, id, senderID)); err != nil {
			return err
		}
		var err error
		msg, err = scanGroupMessage(tx.QueryRowContext(ctx, s.rebind("SELECT "+groupMessageColumns+" FROM group_messages WHERE id = ?"), id))
		return err
	})
	return msg, err
}

func (s *SQLStore) GetGroupMessages(ctx context.Context, groupID int64, limit, offset int) ([]models.GroupMessageView, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query := s.rebind(`SELECT ` + groupMessageColumns + ` FROM group_messages
		WHERE group_id = ? AND is_deleted = FALSE
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	msgs, err := s.queryGroupMessages(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.groupMessageViews(ctx, lo.Reverse(msgs))
}

func (s *SQLStore) queryGroupMessages(ctx context.Context, query string, args ...any) ([]models.GroupMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.GroupMessage
	for rows.Next() {
		m, err := scanGroupMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (s *SQLStore) groupMessageViews(ctx context.Context, msgs []models.GroupMessage) ([]models.GroupMessageView, error) {
	if len(msgs) == 0 {
		return []models.GroupMessageView{}, nil
	}
	ids := lo.Map(msgs, func(m models.GroupMessage, _ int) int64 { return m.ID })
	replyIDs := lo.Uniq(lo.FilterMap(msgs, func(m models.GroupMessage, _ int) (int64, bool) {
		if m.ReplyToMessageID == nil {
			return 0, false
		}
		return *m.ReplyToMessageID, true
	}))

	var replies []models.GroupMessage
	if len(replyIDs) > 0 {
		args := lo.Map(replyIDs, func(id int64, _ int) any { return id })
		query := s.rebind("SELECT " + groupMessageColumns + " FROM group_messages WHERE is_deleted = FALSE AND id IN (" + inClause(len(replyIDs)) + ")")
		var err error
		if replies, err = s.queryGroupMessages(ctx, query, args...); err != nil {
			return nil, err
		}
	}
	replyByID := lo.KeyBy(replies, func(m models.GroupMessage) int64 { return m.ID })

	reactions, err := s.reactionsFor(ctx, "group_message_reactions", ids)
	if err != nil {
		return nil, err
	}

	userIDs := lo.Map(msgs, func(m models.GroupMessage, _ int) int64 { return m.SenderID })
	userIDs = append(userIDs, lo.Map(replies, func(m models.GroupMessage, _ int) int64 { return m.SenderID })...)
	users, err := s.getUserSummaries(ctx, lo.Uniq(userIDs))
	if err != nil {
		return nil, err
	}

	views := make([]models.GroupMessageView, 0, len(msgs))
	for _, m := range msgs {
		v := models.GroupMessageView{
			GroupMessage: m,
			Sender:       users[m.SenderID],
			Reactions:    orEmpty(reactions[m.ID]),
		}
		if m.ReplyToMessageID != nil {
			if r, ok := replyByID[*m.ReplyToMessageID]; ok {
				v.ReplyTo = &models.ReplySnippet{
					ID:          r.ID,
					Content:     r.Content,
					Attachment:  r.Attachment,
					MessageType: r.MessageType,
					Sender:      users[r.SenderID],
				}
			}
		}
		views = append(views, v)
	}
	return views, nil
}
