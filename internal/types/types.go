package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	Bio          string    `json:"bio,omitempty"`
	PicturePath  string    `json:"picture_path,omitempty"`
	LastActivity time.Time `json:"last_activity,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type RoomKind string

const (
	RoomKindDm    RoomKind = "dm"
	RoomKindGroup RoomKind = "group"
)

// Room is the base room record. Group rooms additionally carry a name,
// description and picture; DM rooms have no metadata beyond the base.
type Room struct {
	Id           int          `json:"id"`
	ExternalId   string       `json:"external_id"`
	Kind         RoomKind     `json:"kind"`
	Name         string       `json:"name,omitempty"`
	Description  string       `json:"description,omitempty"`
	PicturePath  string       `json:"picture_path,omitempty"`
	Members      []Membership `json:"members,omitempty"`
	LastActivity time.Time    `json:"last_activity,omitempty"`
	CreatedAt    time.Time    `json:"created_at,omitempty"`
}

// Membership links a user to a room. Role is only set for group room
// members, DM rooms have no role concept.
type Membership struct {
	Id                int       `json:"id"`
	User              User      `json:"user"`
	Room              Room      `json:"room"`
	Nickname          string    `json:"nickname"`
	Role              Role      `json:"role,omitempty"`
	LastSeenMessageId int       `json:"last_seen_message_id,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id        int       `json:"id"`
	RoomId    int       `json:"room_id"`
	UserId    int       `json:"user_id,omitempty"`
	Content   string    `json:"content"`
	IsEdited  bool      `json:"is_edited"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
