package database

import "context"

// RoleChangeCheck decides whether a role change may proceed. It is
// invoked with the actor's and target's current memberships inside the
// same transaction as the write, so the roles it sees cannot go stale
// before the update lands.
type RoleChangeCheck func(actor, target Membership) error

type Repository interface {
	Ping() error

	CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error)
	UpdateAccount(ctx context.Context, params UpdateAccountParams) (Account, error)
	DeleteAccount(ctx context.Context, accountId int) error
	GetAccountById(ctx context.Context, accountId int) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)

	GetRoomByExternalId(ctx context.Context, externalId string) (Room, error)
	GetRoomWithMembers(ctx context.Context, roomId int) (*Room, error)
	CreateGroupRoom(ctx context.Context, params CreateGroupRoomParams) (Room, error)
	CreateDmRoom(ctx context.Context, params CreateDmRoomParams) (Room, error)
	UpdateGroupRoom(ctx context.Context, params UpdateGroupRoomParams) (Room, error)
	DeleteRoom(ctx context.Context, roomId int) error

	CreateMembership(ctx context.Context, params CreateMembershipParams) (Membership, error)
	GetMembership(ctx context.Context, accountId, roomId int) (Membership, error)
	ListMemberships(ctx context.Context, accountId int) ([]Membership, error)
	DeleteMembership(ctx context.Context, accountId, roomId int) error
	UpdateLastSeenMessage(ctx context.Context, accountId, roomId, messageId int) (Membership, error)
	ChangeMemberRole(ctx context.Context, roomId, actorId, targetId int, newRole string, allowed RoleChangeCheck) (Membership, error)
	GetMemberAccountIds(ctx context.Context, roomId int) ([]int, error)

	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessage(ctx context.Context, messageId int) (Message, error)
	UpdateMessageContent(ctx context.Context, messageId, accountId int, content string) (Message, error)
	GetMessages(ctx context.Context, roomId, since, before, limit int) ([]Message, error)
}
