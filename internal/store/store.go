package store

import (
	"context"
	"errors"
	"time"

	"github.com/pliu/chatvideo/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

// ReactionChange describes what a toggle did to the reaction rows of a user.
type ReactionChange int

const (
	ReactionAdded ReactionChange = iota + 1
	ReactionReplaced
	ReactionRemoved
)

func (c ReactionChange) String() string {
	switch c {
	case ReactionAdded:
		return "added"
	case ReactionReplaced:
		return "replaced"
	case ReactionRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// Direct message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	// EditMessage updates content only when senderID wrote the message and it is not deleted.
	EditMessage(ctx context.Context, id, senderID int64, content string, at time.Time) (*models.Message, error)
	// DeleteMessage soft-deletes; it returns ErrNotFound when nothing transitioned.
	DeleteMessage(ctx context.Context, id, senderID int64) (*models.Message, error)
	// MarkRead marks the given messages sent by senderID to readerID as read.
	MarkRead(ctx context.Context, readerID, senderID int64, ids []int64, at time.Time) ([]int64, error)
	GetConversation(ctx context.Context, userID, otherID int64, limit, offset int) ([]models.MessageView, error)
	GetConversations(ctx context.Context, userID int64) ([]models.Conversation, error)

	// Direct reaction operations: at most one row per (message, user).
	ToggleReaction(ctx context.Context, messageID, userID int64, reactionType string) (ReactionChange, error)
	RemoveReaction(ctx context.Context, messageID, userID int64) (bool, error)
	GetReactions(ctx context.Context, messageID int64) ([]models.Reaction, error)

	// Group operations
	CreateGroup(ctx context.Context, group *models.Group, memberIDs []int64) error
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	AddGroupMember(ctx context.Context, groupID, userID int64) error
	RemoveGroupMember(ctx context.Context, groupID, actorID, userID int64) error
	SetGroupMemberRole(ctx context.Context, groupID, actorID, userID int64, role string) error
	GetGroupMember(ctx context.Context, groupID, userID int64) (*models.GroupMember, error)
	GetGroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error)

	// Group message operations
	CreateGroupMessage(ctx context.Context, msg *models.GroupMessage) error
	GetGroupMessage(ctx context.Context, id int64) (*models.GroupMessage, error)
	EditGroupMessage(ctx context.Context, id, senderID int64, content string, at time.Time) (*models.GroupMessage, error)
	DeleteGroupMessage(ctx context.Context, id, senderID int64) (*models.GroupMessage, error)
	GetGroupMessages(ctx context.Context, groupID int64, limit, offset int) ([]models.GroupMessageView, error)

	// Group reaction operations: at most one row per (message, user, type).
	ToggleGroupReaction(ctx context.Context, messageID, userID int64, reactionType string) (ReactionChange, error)
	GetGroupReactions(ctx context.Context, messageID int64) ([]models.Reaction, error)

	Close() error
}
