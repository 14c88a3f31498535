package sqlstore

import (
	"context"
	"time"

	"github.com/pliu/chatvideo/internal/models"
)

const userColumns = "id, username, password_hash, first_name, last_name, profile_pic, bio, role, is_active, created_at, updated_at"

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName, &u.ProfilePic, &u.Bio, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt, user.UpdatedAt = now, now
	query := s.rebind(`INSERT INTO users (username, password_hash, first_name, last_name, profile_pic, bio, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	return s.db.QueryRowContext(ctx, query, user.Username, user.PasswordHash, user.FirstName, user.LastName, user.ProfilePic,
		user.Bio, user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt).Scan(&user.ID)
}

func (s *SQLStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE username = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

// getUserSummaries loads the summaries of the given user ids, keyed by id.
func (s *SQLStore) getUserSummaries(ctx context.Context, ids []int64) (map[int64]models.UserSummary, error) {
	out := make(map[int64]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := s.rebind("SELECT id, username, profile_pic, first_name, last_name FROM users WHERE id IN (" + inClause(len(ids)) + ")")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.ProfilePic, &u.FirstName, &u.LastName); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}
