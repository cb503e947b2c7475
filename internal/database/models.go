package database

import (
	"database/sql"
	"time"
)

const (
	RoomKindDm    = "dm"
	RoomKindGroup = "group"
)

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	Bio          string
	PicturePath  string
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id           int
	ExternalId   string
	Kind         string
	Name         string
	Description  string
	PicturePath  string
	LastActivity time.Time
	CreatedAt    time.Time
	Members      []Membership
}

// Membership is one (account, room) row. Role is NULL for DM room
// members, LastSeenMessageId is NULL until the member first reads.
type Membership struct {
	Id                int
	AccountId         int
	RoomId            int
	Username          string
	Nickname          string
	Role              sql.NullString
	LastSeenMessageId sql.NullInt64
	Room              Room
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Message's AccountId is NULL once the author account is deleted.
type Message struct {
	Id        int
	RoomId    int
	AccountId sql.NullInt64
	Content   string
	IsEdited  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
	Bio          string
	PicturePath  string
}

type UpdateAccountParams struct {
	AccountId    int
	Username     string
	PasswordHash string
	Bio          string
	PicturePath  string
}

type CreateGroupRoomParams struct {
	ExternalId    string
	Name          string
	Description   string
	OwnerId       int
	OwnerNickname string
}

type UpdateGroupRoomParams struct {
	RoomId      int
	Name        string
	Description string
}

type CreateDmRoomParams struct {
	ExternalId string
	AccountA   int
	NicknameA  string
	AccountB   int
	NicknameB  string
}

type CreateMembershipParams struct {
	AccountId int
	RoomId    int
	Nickname  string
	// Role is left NULL for DM room members
	Role sql.NullString
}

type CreateMessageParams struct {
	RoomId    int
	AccountId int
	Content   string
}
