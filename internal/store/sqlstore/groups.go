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

// CreateGroup inserts the group with its creator as admin and memberIDs as members.
func (s *SQLStore) CreateGroup(ctx context.Context, group *models.Group, memberIDs []int64) error {
	now := time.Now().UTC()
	group.CreatedAt, group.UpdatedAt = now, now
	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := s.rebind(`INSERT INTO chat_groups (name, description, avatar, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
		err := tx.QueryRowContext(ctx, query, group.Name, group.Description, group.Avatar, group.CreatedBy, now, now).Scan(&group.ID)
		if err != nil {
			return err
		}

		insert := s.rebind("INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)")
		if _, err := tx.ExecContext(ctx, insert, group.ID, group.CreatedBy, models.GroupRoleAdmin, now); err != nil {
			return err
		}
		members := lo.Without(lo.Uniq(memberIDs), group.CreatedBy)
		for _, uid := range members {
			if _, err := tx.ExecContext(ctx, insert, group.ID, uid, models.GroupRoleMember, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	var g models.Group
	query := s.rebind("SELECT id, name, description, avatar, created_by, created_at, updated_at FROM chat_groups WHERE id = ?")
	err := s.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.Description, &g.Avatar, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// AddGroupMember is idempotent; an existing member keeps its role.
func (s *SQLStore) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return err
	}
	query := s.rebind(`INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (group_id, user_id) DO NOTHING`)
	_, err := s.db.ExecContext(ctx, query, groupID, userID, models.GroupRoleMember, time.Now().UTC())
	return err
}

// RemoveGroupMember lets a member leave, or a group admin remove a member.
// Only the creator may remove another admin, and the creator can never be removed.
func (s *SQLStore) RemoveGroupMember(ctx context.Context, groupID, actorID, userID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		owner, err := s.groupOwner(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if userID == owner {
			return store.ErrForbidden
		}
		if actorID != userID {
			role, err := s.memberRole(ctx, tx, groupID, actorID)
			if err != nil {
				return err
			}
			if role != models.GroupRoleAdmin {
				return store.ErrForbidden
			}
			if actorID != owner {
				target, err := s.memberRole(ctx, tx, groupID, userID)
				if errors.Is(err, store.ErrForbidden) {
					return store.ErrNotFound
				} else if err != nil {
					return err
				}
				if target == models.GroupRoleAdmin {
					return store.ErrForbidden
				}
			}
		}
		query := s.rebind("DELETE FROM group_members WHERE group_id = ? AND user_id = ?")
		return expectOne(tx.ExecContext(ctx, query, groupID, userID))
	})
}

// SetGroupMemberRole is reserved to the group creator, whose own role is fixed.
func (s *SQLStore) SetGroupMemberRole(ctx context.Context, groupID, actorID, userID int64, role string) error {
	if role != models.GroupRoleAdmin && role != models.GroupRoleMember {
		return store.ErrConflict
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		owner, err := s.groupOwner(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if actorID != owner || userID == owner {
			return store.ErrForbidden
		}
		query := s.rebind("UPDATE group_members SET role = ? WHERE group_id = ? AND user_id = ?")
		return expectOne(tx.ExecContext(ctx, query, role, groupID, userID))
	})
}

func (s *SQLStore) GetGroupMember(ctx context.Context, groupID, userID int64) (*models.GroupMember, error) {
	var m models.GroupMember
	query := s.rebind("SELECT group_id, user_id, role, joined_at FROM group_members WHERE group_id = ? AND user_id = ?")
	err := s.db.QueryRowContext(ctx, query, groupID, userID).Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *SQLStore) GetGroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	query := s.rebind("SELECT user_id FROM group_members WHERE group_id = ? ORDER BY joined_at ASC, user_id ASC")
	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) groupOwner(ctx context.Context, tx *sql.Tx, groupID int64) (int64, error) {
	var owner int64
	err := tx.QueryRowContext(ctx, s.rebind("SELECT created_by FROM chat_groups WHERE id = ?"), groupID).Scan(&owner)
	return owner, notFound(err)
}

func (s *SQLStore) memberRole(ctx context.Context, tx *sql.Tx, groupID, userID int64) (string, error) {
	var role string
	query := s.rebind("SELECT role FROM group_members WHERE group_id = ? AND user_id = ?")
	err := tx.QueryRowContext(ctx, query, groupID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrForbidden
	}
	return role, err
}
