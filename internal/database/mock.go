package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) UpdateAccount(ctx context.Context, params UpdateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) DeleteAccount(ctx context.Context, accountId int) error {
	args := m.Called(accountId)
	return args.Error(0)
}
func (m *MockRepository) GetAccountById(ctx context.Context, accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) GetRoomByExternalId(ctx context.Context, externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) GetRoomWithMembers(ctx context.Context, roomId int) (*Room, error) {
	args := m.Called(roomId)
	if room, ok := args.Get(0).(*Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) CreateGroupRoom(ctx context.Context, params CreateGroupRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) CreateDmRoom(ctx context.Context, params CreateDmRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) UpdateGroupRoom(ctx context.Context, params UpdateGroupRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) DeleteRoom(ctx context.Context, roomId int) error {
	args := m.Called(roomId)
	return args.Error(0)
}
func (m *MockRepository) CreateMembership(ctx context.Context, params CreateMembershipParams) (Membership, error) {
	args := m.Called(params)
	return args.Get(0).(Membership), args.Error(1)
}
func (m *MockRepository) GetMembership(ctx context.Context, accountId, roomId int) (Membership, error) {
	args := m.Called(accountId, roomId)
	return args.Get(0).(Membership), args.Error(1)
}
func (m *MockRepository) ListMemberships(ctx context.Context, accountId int) ([]Membership, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Membership), args.Error(1)
}
func (m *MockRepository) DeleteMembership(ctx context.Context, accountId, roomId int) error {
	args := m.Called(accountId, roomId)
	return args.Error(0)
}
func (m *MockRepository) UpdateLastSeenMessage(ctx context.Context, accountId, roomId, messageId int) (Membership, error) {
	args := m.Called(accountId, roomId, messageId)
	return args.Get(0).(Membership), args.Error(1)
}

// ChangeMemberRole runs the allowed check against the memberships the
// test configured via the "actor" and "target" return values, mirroring
// the real implementation's in-transaction re-read.
func (m *MockRepository) ChangeMemberRole(ctx context.Context, roomId, actorId, targetId int, newRole string, allowed RoleChangeCheck) (Membership, error) {
	args := m.Called(roomId, actorId, targetId, newRole)
	if err := args.Error(2); err != nil {
		return Membership{}, err
	}

	actor := args.Get(0).(Membership)
	target := args.Get(1).(Membership)
	if err := allowed(actor, target); err != nil {
		return Membership{}, err
	}

	target.Role.String = newRole
	target.Role.Valid = true
	return target, nil
}
func (m *MockRepository) GetMemberAccountIds(ctx context.Context, roomId int) ([]int, error) {
	args := m.Called(roomId)
	return args.Get(0).([]int), args.Error(1)
}
func (m *MockRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessage(ctx context.Context, messageId int) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) UpdateMessageContent(ctx context.Context, messageId, accountId int, content string) (Message, error) {
	args := m.Called(messageId, accountId, content)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessages(ctx context.Context, roomId, since, before, limit int) ([]Message, error) {
	args := m.Called(roomId, since, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
