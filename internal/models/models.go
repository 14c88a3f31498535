package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	GroupRoleMember = "member"
	GroupRoleAdmin  = "admin"
)

// Message type tags accepted on direct and group messages.
const (
	MessageTypeText          = "text"
	MessageTypeImage         = "image"
	MessageTypeVideo         = "video"
	MessageTypeLocation      = "location"
	MessageTypeCircularVideo = "circular_video"
	MessageTypeAudio         = "audio"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    *string   `json:"first_name"`
	LastName     *string   `json:"last_name"`
	ProfilePic   *string   `json:"profile_pic"`
	Bio          *string   `json:"bio"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary is the denormalized view of a user embedded in outbound events.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Username:   u.Username,
		ProfilePic: u.ProfilePic,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}
}

type UserSummary struct {
	ID         int64   `json:"id"`
	Username   string  `json:"username"`
	ProfilePic *string `json:"profile_pic"`
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
}

// Message is a direct message between two users.
type Message struct {
	ID               int64      `json:"id"`
	SenderID         int64      `json:"sender_id"`
	ReceiverID       int64      `json:"receiver_id"`
	Content          *string    `json:"content"`
	Attachment       *string    `json:"attachment"`
	MessageType      string     `json:"message_type"`
	LocationLat      *float64   `json:"location_lat"`
	LocationLng      *float64   `json:"location_lng"`
	ReplyToMessageID *int64     `json:"reply_to_message_id"`
	IsRead           bool       `json:"is_read"`
	ReadAt           *time.Time `json:"read_at"`
	IsDeleted        bool       `json:"is_deleted"`
	EditedAt         *time.Time `json:"edited_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Involves reports whether userID is the sender or the receiver.
func (m *Message) Involves(userID int64) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Between reports whether the message belongs to the conversation of a and b.
func (m *Message) Between(a, b int64) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

type Reaction struct {
	ID           int64        `json:"id"`
	MessageID    int64        `json:"message_id"`
	UserID       int64        `json:"user_id"`
	ReactionType string       `json:"reaction_type"`
	CreatedAt    time.Time    `json:"created_at"`
	User         *UserSummary `json:"user,omitempty"`
}

// MessageView is a message with its sender, reactions and reply snapshot attached.
type MessageView struct {
	Message
	Sender    UserSummary   `json:"sender"`
	Receiver  *UserSummary  `json:"receiver,omitempty"`
	ReplyTo   *ReplySnippet `json:"reply_to,omitempty"`
	Reactions []Reaction    `json:"reactions"`
}

// ReplySnippet is the copy of a referenced message attached to a reply.
type ReplySnippet struct {
	ID          int64       `json:"id"`
	Content     *string     `json:"content"`
	Attachment  *string     `json:"attachment"`
	MessageType string      `json:"message_type"`
	Sender      UserSummary `json:"sender"`
}

type Conversation struct {
	UserID          int64     `json:"user_id"`
	Username        string    `json:"username"`
	ProfilePic      *string   `json:"profile_pic"`
	FirstName       *string   `json:"first_name"`
	LastName        *string   `json:"last_name"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
}

type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Avatar      *string   `json:"avatar"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type GroupMember struct {
	GroupID  int64     `json:"group_id"`
	UserID   int64     `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type GroupMessage struct {
	ID               int64      `json:"id"`
	GroupID          int64      `json:"group_id"`
	SenderID         int64      `json:"sender_id"`
	Content          *string    `json:"content"`
	Attachment       *string    `json:"attachment"`
	MessageType      string     `json:"message_type"`
	LocationLat      *float64   `json:"location_lat"`
	LocationLng      *float64   `json:"location_lng"`
	ReplyToMessageID *int64     `json:"reply_to_message_id"`
	IsDeleted        bool       `json:"is_deleted"`
	EditedAt         *time.Time `json:"edited_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

type GroupMessageView struct {
	GroupMessage
	Sender    UserSummary   `json:"sender"`
	ReplyTo   *ReplySnippet `json:"reply_to,omitempty"`
	Reactions []Reaction    `json:"reactions"`
}
