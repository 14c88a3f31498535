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

const messageColumns = "id, sender_id, receiver_id, content, attachment, message_type, location_lat, location_lng, reply_to_message_id, is_read, read_at, is_deleted, edited_at, created_at"

func scanMessage(row scanner) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Attachment, &m.MessageType, &m.LocationLat, &m.LocationLng,
		&m.ReplyToMessageID, &m.IsRead, &m.ReadAt, &m.IsDeleted, &m.EditedAt, &m.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *SQLStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.MessageType == "" {
		msg.MessageType = models.MessageTypeText
	}
	msg.CreatedAt = time.Now().UTC()
	msg.IsRead, msg.ReadAt, msg.IsDeleted, msg.EditedAt = false, nil, false, nil

	query := s.rebind(`INSERT INTO messages (sender_id, receiver_id, content, attachment, message_type, location_lat, location_lng, reply_to_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	return s.db.QueryRowContext(ctx, query, msg.SenderID, msg.ReceiverID, msg.Content, msg.Attachment, msg.MessageType,
		msg.LocationLat, msg.LocationLng, msg.ReplyToMessageID, msg.CreatedAt).Scan(&msg.ID)
}

func (s *SQLStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	query := s.rebind("SELECT " + messageColumns + " FROM messages WHERE id = ?")
	return scanMessage(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) EditMessage(ctx context.Context, id, senderID int64, content string, at time.Time) (*models.Message, error) {
	var msg *models.Message
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := s.rebind("UPDATE messages SET content = ?, edited_at = ? WHERE id = ? AND sender_id = ? AND is_deleted = FALSE")
		if err := expectOne(tx.ExecContext(ctx, query, content, at.UTC(), id, senderID)); err != nil {
			return err
		}
		var err error
		msg, err = scanMessage(tx.QueryRowContext(ctx, s.rebind("SELECT "+messageColumns+" FROM messages WHERE id = ?"), id))
		return err
	})
	return msg, err
}

func (s *SQLStore) DeleteMessage(ctx context.Context, id, senderID int64) (*models.Message, error) {
	var msg *models.Message
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := s.rebind("UPDATE messages SET is_deleted = TRUE WHERE id = ? AND sender_id = ? AND is_deleted = FALSE")
		if err := expectOne(tx.ExecContext(ctx, query, id, senderID)); err != nil {
			return err
		}
		var err error
		msg, err = scanMessage(tx.QueryRowContext(ctx, s.rebind("SELECT "+messageColumns+" FROM messages WHERE id = ?"), id))
		return err
	})
	return msg, err
}

func (s *SQLStore) MarkRead(ctx context.Context, readerID, senderID int64, ids []int64, at time.Time) ([]int64, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	at = at.UTC()

	var changed []int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		type readState struct {
			isRead bool
			readAt *time.Time
		}
		args := []any{readerID, senderID}
		for _, id := range ids {
			args = append(args, id)
		}
		query := s.rebind(`SELECT id, is_read, read_at FROM messages
			WHERE receiver_id = ? AND sender_id = ? AND is_deleted = FALSE AND id IN (` + inClause(len(ids)) + ")")
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		states := make(map[int64]readState, len(ids))
		for rows.Next() {
			var id int64
			var st readState
			if err := rows.Scan(&id, &st.isRead, &st.readAt); err != nil {
				rows.Close()
				return err
			}
			states[id] = st
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		markQuery := s.rebind("UPDATE messages SET is_read = TRUE, read_at = ? WHERE id = ? AND is_read = FALSE")
		backfillQuery := s.rebind("UPDATE messages SET read_at = ? WHERE id = ? AND is_read = TRUE AND read_at IS NULL")
		for _, id := range ids {
			st, ok := states[id]
			switch {
			case !ok:
				continue
			case !st.isRead:
				err = expectOne(tx.ExecContext(ctx, markQuery, at, id))
			case st.readAt == nil:
				err = expectOne(tx.ExecContext(ctx, backfillQuery, at, id))
			default:
				continue
			}
			if errors.Is(err, store.ErrNotFound) {
				continue
			} else if err != nil {
				return err
			}
			changed = append(changed, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (s *SQLStore) GetConversation(ctx context.Context, userID, otherID int64, limit, offset int) ([]models.MessageView, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query := s.rebind(`SELECT ` + messageColumns + ` FROM messages
		WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND is_deleted = FALSE
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	msgs, err := s.queryMessages(ctx, query, userID, otherID, otherID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	// Return in chronological order
	msgs = lo.Reverse(msgs)
	return s.messageViews(ctx, msgs)
}

func (s *SQLStore) GetConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	query := s.rebind(`SELECT ` + messageColumns + ` FROM messages
		WHERE (sender_id = ? OR receiver_id = ?) AND is_deleted = FALSE
		ORDER BY created_at DESC, id DESC`)
	msgs, err := s.queryMessages(ctx, query, userID, userID)
	if err != nil {
		return nil, err
	}

	var latest []*models.Message
	seen := make(map[int64]bool)
	for i := range msgs {
		other := msgs[i].SenderID
		if other == userID {
			other = msgs[i].ReceiverID
		}
		if seen[other] {
			continue
		}
		seen[other] = true
		latest = append(latest, &msgs[i])
	}

	unread, err := s.unreadCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	others := lo.Keys(seen)
	users, err := s.getUserSummaries(ctx, others)
	if err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(latest))
	for _, m := range latest {
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}
		u, ok := users[other]
		if !ok {
			continue
		}
		conversations = append(conversations, models.Conversation{
			UserID:          u.ID,
			Username:        u.Username,
			ProfilePic:      u.ProfilePic,
			FirstName:       u.FirstName,
			LastName:        u.LastName,
			LastMessage:     lastMessagePreview(m),
			LastMessageTime: m.CreatedAt,
			UnreadCount:     unread[other],
		})
	}
	return conversations, nil
}

func lastMessagePreview(m *models.Message) string {
	if m.Content != nil && *m.Content != "" {
		return *m.Content
	}
	if m.Attachment != nil {
		return "📎 Media"
	}
	return ""
}

func (s *SQLStore) unreadCounts(ctx context.Context, userID int64) (map[int64]int, error) {
	query := s.rebind(`SELECT sender_id, COUNT(*) FROM messages
		WHERE receiver_id = ? AND is_read = FALSE AND is_deleted = FALSE GROUP BY sender_id`)
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var sender int64
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, err
		}
		out[sender] = n
	}
	return out, rows.Err()
}

func (s *SQLStore) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// messageViews attaches sender, receiver, reply snapshot and reactions.
func (s *SQLStore) messageViews(ctx context.Context, msgs []models.Message) ([]models.MessageView, error) {
	if len(msgs) == 0 {
		return []models.MessageView{}, nil
	}
	ids := lo.Map(msgs, func(m models.Message, _ int) int64 { return m.ID })
	replyIDs := lo.Uniq(lo.FilterMap(msgs, func(m models.Message, _ int) (int64, bool) {
		if m.ReplyToMessageID == nil {
			return 0, false
		}
		return *m.ReplyToMessageID, true
	}))

	var replies []models.Message
	if len(replyIDs) > 0 {
		args := lo.Map(replyIDs, func(id int64, _ int) any { return id })
		query := s.rebind("SELECT " + messageColumns + " FROM messages WHERE is_deleted = FALSE AND id IN (" + inClause(len(replyIDs)) + ")")
		var err error
		if replies, err = s.queryMessages(ctx, query, args...); err != nil {
			return nil, err
		}
	}
	replyByID := lo.KeyBy(replies, func(m models.Message) int64 { return m.ID })

	reactions, err := s.reactionsFor(ctx, "message_reactions", ids)
	if err != nil {
		return nil, err
	}

	userIDs := make([]int64, 0, len(msgs)*2+len(replies))
	for _, m := range msgs {
		userIDs = append(userIDs, m.SenderID, m.ReceiverID)
	}
	for _, r := range replies {
		userIDs = append(userIDs, r.SenderID)
	}
	users, err := s.getUserSummaries(ctx, lo.Uniq(userIDs))
	if err != nil {
		return nil, err
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := models.MessageView{
			Message:   m,
			Sender:    users[m.SenderID],
			Reactions: reactions[m.ID],
		}
		if rcv, ok := users[m.ReceiverID]; ok {
			v.Receiver = &rcv
		}
		if v.Reactions == nil {
			v.Reactions = []models.Reaction{}
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

// expectOne turns an update that touched no rows into store.ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
