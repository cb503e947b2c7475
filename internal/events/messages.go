package events

import (
	"time"

	"github.com/oessenger/oessenger/internal/types"
)

// Notification is a server-to-client push. Exactly one of the payload
// fields is set.
type Notification struct {
	Timestamp   time.Time            `json:"timestamp"`
	Message     *MessageNotification `json:"message,omitempty"`
	Membership  *MembershipChange    `json:"membership,omitempty"`
	RoleChange  *RoleChange          `json:"role_change,omitempty"`
	RoomDeleted *RoomDeleted         `json:"room_deleted,omitempty"`
}

// MessageNotification tells a member that a new message landed in one
// of their rooms.
type MessageNotification struct {
	RoomId    string `json:"room_id"`
	MessageId int    `json:"message_id"`
	UserId    int    `json:"user_id,omitempty"`
}

type MembershipChange struct {
	RoomId string     `json:"room_id"`
	User   types.User `json:"user"`
	Joined bool       `json:"joined"`
}

type RoleChange struct {
	RoomId string     `json:"room_id"`
	UserId int        `json:"user_id"`
	Role   types.Role `json:"role"`
}

type RoomDeleted struct {
	RoomId string `json:"room_id"`
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
