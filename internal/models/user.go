package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Role tags a chat message with its author
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is one of the two known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// ErrInvalidRole is returned when a stored message has an unknown role
var ErrInvalidRole = errors.New("invalid chat message role")

// ChatMessage is one turn in a conversation. Messages have no identity of
// their own and are addressed by position in the owning user's history.
type ChatMessage struct {
	Role    Role   `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// User is the stored user record together with its chat history
type User struct {
	ID        string                           `gorm:"primaryKey;type:varchar(64)" json:"id" bson:"_id"`
	Name      string                           `json:"name" bson:"name"`
	Email     string                           `gorm:"index" json:"email" bson:"email"`
	Chats     datatypes.JSONSlice[ChatMessage] `gorm:"type:jsonb" json:"chats" bson:"chats"`
	CreatedAt time.Time                        `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time                        `json:"updatedAt" bson:"updatedAt"`
}

// AppendMessage adds a turn to the end of the history
func (u *User) AppendMessage(role Role, content string) {
	u.Chats = append(u.Chats, ChatMessage{Role: role, Content: content})
}

// History returns a copy of the chat history, never nil
func (u *User) History() []ChatMessage {
	out := make([]ChatMessage, len(u.Chats))
	copy(out, u.Chats)
	return out
}

// Transcript returns the message contents in conversation order.
// Roles are dropped.
func (u *User) Transcript() []string {
	out := make([]string, 0, len(u.Chats))
	for _, m := range u.Chats {
		out = append(out, m.Content)
	}
	return out
}

// ValidateChats checks that every message has a known role. Stores call it
// before writing.
func (u *User) ValidateChats() error {
	for i, m := range u.Chats {
		if !m.Role.Valid() {
			return fmt.Errorf("chats[%d]: %w %q", i, ErrInvalidRole, m.Role)
		}
	}
	return nil
}

// ClearChats empties the history
func (u *User) ClearChats() {
	u.Chats = datatypes.JSONSlice[ChatMessage]{}
}
