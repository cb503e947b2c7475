package chat

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/oessenger/oessenger/internal/database"
	"github.com/oessenger/oessenger/internal/events"
	"github.com/oessenger/oessenger/internal/stats"
	"github.com/oessenger/oessenger/internal/testutil"
	"github.com/oessenger/oessenger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// captureNotifier records notifications instead of delivering them.
type captureNotifier struct {
	mu    sync.Mutex
	sent  []*events.Notification
	calls [][]int
}

func (c *captureNotifier) Notify(accountIds []int, n *events.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	c.calls = append(c.calls, accountIds)
}

func (c *captureNotifier) last() *events.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

func newTestService(t *testing.T, db database.Repository, su *stats.MockStatsUpdater) (*Service, *captureNotifier) {
	t.Helper()

	su.On("RegisterMetric", mock.Anything).Times(3)

	notifier := &captureNotifier{}
	svc := NewService(testutil.TestLogger(t), db, notifier, su)
	return svc, notifier
}

func uniqueViolation(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint}
}

func groupMember(accountId, roomId int, role types.Role) database.Membership {
	return database.Membership{
		Id:        accountId,
		AccountId: accountId,
		RoomId:    roomId,
		Role:      sql.NullString{String: role.String(), Valid: true},
	}
}

func TestCreateGroupRoom(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		svc, _ := newTestService(t, db, su)

		db.On("GetAccountById", 1).Return(database.Account{Id: 1, Username: "alice"}, nil)
		db.On("CreateGroupRoom", mock.MatchedBy(func(p database.CreateGroupRoomParams) bool {
			return p.ExternalId != "" && p.Name == "general" &&
				p.OwnerId == 1 && p.OwnerNickname == "alice"
		})).Return(database.Room{
			Id:         1,
			ExternalId: "abc123",
			Kind:       database.RoomKindGroup,
			Name:       "general",
			Members: []database.Membership{
				groupMember(1, 1, types.RoleOwner),
			},
		}, nil)
		su.On("Incr", stats.RoomsCreated).Once()
		su.On("Incr", stats.MembershipsTotal).Once()

		room, err := svc.CreateGroupRoom(context.Background(), 1, "general", "")
		assert.NoError(t, err)
		assert.Equal(t, types.RoomKindGroup, room.Kind)
		assert.Equal(t, "general", room.Name)
		if assert.Len(t, room.Members, 1) {
			assert.Equal(t, types.RoleOwner, room.Members[0].Role)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		db := &database.MockRepository{}
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		_, err := svc.CreateGroupRoom(context.Background(), 1, "", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown owner", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetAccountById", 99).Return(database.Account{}, sql.ErrNoRows)

		_, err := svc.CreateGroupRoom(context.Background(), 99, "general", "")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestCreateDmRoom(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		svc, notifier := newTestService(t, db, su)

		db.On("GetAccountById", 1).Return(database.Account{Id: 1, Username: "alice"}, nil)
		db.On("GetAccountById", 2).Return(database.Account{Id: 2, Username: "bob"}, nil)
		db.On("CreateDmRoom", mock.MatchedBy(func(p database.CreateDmRoomParams) bool {
			return p.AccountA == 1 && p.AccountB == 2 && p.ExternalId != ""
		})).Return(database.Room{Id: 7, ExternalId: "dm1", Kind: database.RoomKindDm}, nil)
		su.On("Incr", stats.RoomsCreated).Once()
		su.On("Incr", stats.MembershipsTotal).Times(2)

		room, err := svc.CreateDmRoom(context.Background(), 1, 2)
		assert.NoError(t, err)
		assert.Equal(t, types.RoomKindDm, room.Kind)

		n := notifier.last()
		if assert.NotNil(t, n) && assert.NotNil(t, n.Membership) {
			assert.Equal(t, "dm1", n.Membership.RoomId)
		}
	})

	t.Run("self dm", func(t *testing.T) {
		db := &database.MockRepository{}
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		_, err := svc.CreateDmRoom(context.Background(), 1, 1)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("duplicate pair", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetAccountById", 1).Return(database.Account{Id: 1, Username: "alice"}, nil)
		db.On("GetAccountById", 2).Return(database.Account{Id: 2, Username: "bob"}, nil)
		db.On("CreateDmRoom", mock.Anything).
			Return(database.Room{}, uniqueViolation(database.ConstraintUniqueDmPair))

		_, err := svc.CreateDmRoom(context.Background(), 1, 2)
		assert.ErrorIs(t, err, ErrDuplicateDm)
	})

	t.Run("unknown peer", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetAccountById", 1).Return(database.Account{Id: 1, Username: "alice"}, nil)
		db.On("GetAccountById", 99).Return(database.Account{}, sql.ErrNoRows)

		_, err := svc.CreateDmRoom(context.Background(), 1, 99)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestJoin(t *testing.T) {
	groupRoom := database.Room{Id: 1, ExternalId: "abc123", Kind: database.RoomKindGroup, Name: "general"}

	t.Run("success with default nickname", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		svc, notifier := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("GetAccountById", 2).Return(database.Account{Id: 2, Username: "bob"}, nil)
		db.On("CreateMembership", database.CreateMembershipParams{
			AccountId: 2,
			RoomId:    1,
			Nickname:  "bob",
			Role:      sql.NullString{String: types.RoleMember.String(), Valid: true},
		}).Return(groupMember(2, 1, types.RoleMember), nil)
		db.On("GetMemberAccountIds", 1).Return([]int{1, 2}, nil)
		su.On("Incr", stats.MembershipsTotal).Once()

		member, err := svc.Join(context.Background(), 2, "abc123", "")
		assert.NoError(t, err)
		assert.Equal(t, types.RoleMember, member.Role)
		assert.Equal(t, "abc123", member.Room.ExternalId)

		n := notifier.last()
		if assert.NotNil(t, n) && assert.NotNil(t, n.Membership) {
			assert.True(t, n.Membership.Joined)
			assert.Equal(t, 2, n.Membership.User.Id)
		}
	})

	t.Run("room not found", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "missing").Return(database.Room{}, sql.ErrNoRows)

		_, err := svc.Join(context.Background(), 2, "missing", "")
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("dm room", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "dm1").
			Return(database.Room{Id: 7, ExternalId: "dm1", Kind: database.RoomKindDm}, nil)

		_, err := svc.Join(context.Background(), 3, "dm1", "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("already a member", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("GetAccountById", 2).Return(database.Account{Id: 2, Username: "bob"}, nil)
		db.On("CreateMembership", mock.Anything).
			Return(database.Membership{}, uniqueViolation(database.ConstraintUniqueMembership))

		_, err := svc.Join(context.Background(), 2, "abc123", "")
		assert.ErrorIs(t, err, ErrDuplicateMembership)
	})
}

func TestLeave(t *testing.T) {
	groupRoom := database.Room{Id: 1, ExternalId: "abc123", Kind: database.RoomKindGroup}

	t.Run("success", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		svc, notifier := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("DeleteMembership", 2, 1).Return(nil)
		db.On("GetMemberAccountIds", 1).Return([]int{1}, nil)
		su.On("Decr", stats.MembershipsTotal).Once()

		err := svc.Leave(context.Background(), 2, "abc123")
		assert.NoError(t, err)

		n := notifier.last()
		if assert.NotNil(t, n) && assert.NotNil(t, n.Membership) {
			assert.False(t, n.Membership.Joined)
		}
	})

	t.Run("not a member", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("DeleteMembership", 3, 1).Return(sql.ErrNoRows)

		err := svc.Leave(context.Background(), 3, "abc123")
		assert.ErrorIs(t, err, ErrNotAMember)
	})

	t.Run("room not found", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "missing").Return(database.Room{}, sql.ErrNoRows)

		err := svc.Leave(context.Background(), 2, "missing")
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestUpdateLastSeen(t *testing.T) {
	groupRoom := database.Room{Id: 1, ExternalId: "abc123", Kind: database.RoomKindGroup}

	tests := []struct {
		name    string
		repoErr error
		wantErr error
	}{
		{"success", nil, nil},
		{"not a member", sql.ErrNoRows, ErrNotAMember},
		{"message not found", database.ErrMessageNotFound, ErrMessageNotFound},
		{"message in another room", database.ErrMessageNotInRoom, ErrMessageNotInRoom},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockRepository{}
			defer db.AssertExpectations(t)
			su := &stats.MockStatsUpdater{}
			svc, _ := newTestService(t, db, su)

			db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)

			member := groupMember(2, 1, types.RoleMember)
			member.LastSeenMessageId = sql.NullInt64{Int64: 42, Valid: true}
			db.On("UpdateLastSeenMessage", 2, 1, 42).Return(member, tc.repoErr)

			got, err := svc.UpdateLastSeen(context.Background(), 2, "abc123", 42)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, 42, got.LastSeenMessageId)
		})
	}
}

func TestChangeRole(t *testing.T) {
	groupRoom := database.Room{Id: 1, ExternalId: "abc123", Kind: database.RoomKindGroup}

	tests := []struct {
		name       string
		actorRole  types.Role
		targetRole types.Role
		newRole    types.Role
		wantErr    error
	}{
		{"owner promotes member to manager", types.RoleOwner, types.RoleMember, types.RoleManager, nil},
		{"owner demotes manager to member", types.RoleOwner, types.RoleManager, types.RoleMember, nil},
		{"owner transfers ownership", types.RoleOwner, types.RoleMember, types.RoleOwner, nil},
		{"manager demotes nobody above", types.RoleManager, types.RoleMember, types.RoleMember, nil},
		{"manager cannot promote to manager", types.RoleManager, types.RoleMember, types.RoleManager, ErrForbidden},
		{"manager cannot touch manager", types.RoleManager, types.RoleManager, types.RoleMember, ErrForbidden},
		{"manager cannot touch owner", types.RoleManager, types.RoleOwner, types.RoleMember, ErrForbidden},
		{"member cannot change roles", types.RoleMember, types.RoleMember, types.RoleManager, ErrForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockRepository{}
			defer db.AssertExpectations(t)
			su := &stats.MockStatsUpdater{}
			svc, _ := newTestService(t, db, su)

			db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
			db.On("ChangeMemberRole", 1, 10, 20, tc.newRole.String()).
				Return(groupMember(10, 1, tc.actorRole), groupMember(20, 1, tc.targetRole), nil)
			if tc.wantErr == nil {
				db.On("GetMemberAccountIds", 1).Return([]int{10, 20}, nil)
			}

			got, err := svc.ChangeRole(context.Background(), 10, "abc123", 20, tc.newRole)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.newRole, got.Role)
		})
	}

	t.Run("invalid role", func(t *testing.T) {
		db := &database.MockRepository{}
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		_, err := svc.ChangeRole(context.Background(), 10, "abc123", 20, types.RoleNone)
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("dm room", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "dm1").
			Return(database.Room{Id: 7, ExternalId: "dm1", Kind: database.RoomKindDm}, nil)

		_, err := svc.ChangeRole(context.Background(), 10, "dm1", 20, types.RoleManager)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("actor not a member", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("ChangeMemberRole", 1, 10, 20, "manager").
			Return(database.Membership{}, database.Membership{}, database.ErrActorNotMember)

		_, err := svc.ChangeRole(context.Background(), 10, "abc123", 20, types.RoleManager)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("target not a member", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("ChangeMemberRole", 1, 10, 20, "manager").
			Return(database.Membership{}, database.Membership{}, database.ErrTargetNotMember)

		_, err := svc.ChangeRole(context.Background(), 10, "abc123", 20, types.RoleManager)
		assert.ErrorIs(t, err, ErrNotAMember)
	})
}

func TestPostMessage(t *testing.T) {
	groupRoom := database.Room{Id: 1, ExternalId: "abc123", Kind: database.RoomKindGroup}

	t.Run("success", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		svc, notifier := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("GetMembership", 2, 1).Return(groupMember(2, 1, types.RoleMember), nil)
		db.On("CreateMessage", database.CreateMessageParams{
			RoomId:    1,
			AccountId: 2,
			Content:   "hello",
		}).Return(database.Message{
			Id:        5,
			RoomId:    1,
			AccountId: sql.NullInt64{Int64: 2, Valid: true},
			Content:   "hello",
		}, nil)
		db.On("GetMemberAccountIds", 1).Return([]int{1, 2}, nil)
		su.On("Incr", stats.MessagesPosted).Once()

		msg, err := svc.PostMessage(context.Background(), 2, "abc123", "hello")
		assert.NoError(t, err)
		assert.Equal(t, 5, msg.Id)
		assert.Equal(t, 2, msg.UserId)

		n := notifier.last()
		if assert.NotNil(t, n) && assert.NotNil(t, n.Message) {
			assert.Equal(t, 5, n.Message.MessageId)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		db := &database.MockRepository{}
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		_, err := svc.PostMessage(context.Background(), 2, "abc123", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("content too long", func(t *testing.T) {
		db := &database.MockRepository{}
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		long := make([]byte, MaxMessageLength+1)
		for i := range long {
			long[i] = 'a'
		}

		_, err := svc.PostMessage(context.Background(), 2, "abc123", string(long))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("not a member", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("GetMembership", 3, 1).Return(database.Membership{}, sql.ErrNoRows)

		_, err := svc.PostMessage(context.Background(), 3, "abc123", "hello")
		assert.ErrorIs(t, err, ErrNotAMember)
	})
}

func TestEditMessage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetMessage", 5).Return(database.Message{
			Id:        5,
			RoomId:    1,
			AccountId: sql.NullInt64{Int64: 2, Valid: true},
			Content:   "hello",
		}, nil)
		db.On("UpdateMessageContent", 5, 2, "hello again").Return(database.Message{
			Id:        5,
			RoomId:    1,
			AccountId: sql.NullInt64{Int64: 2, Valid: true},
			Content:   "hello again",
			IsEdited:  true,
		}, nil)

		msg, err := svc.EditMessage(context.Background(), 2, 5, "hello again")
		assert.NoError(t, err)
		assert.True(t, msg.IsEdited)
		assert.Equal(t, "hello again", msg.Content)
	})

	t.Run("not the author", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetMessage", 5).Return(database.Message{
			Id:        5,
			RoomId:    1,
			AccountId: sql.NullInt64{Int64: 2, Valid: true},
		}, nil)

		_, err := svc.EditMessage(context.Background(), 3, 5, "hijacked")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("author deleted", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetMessage", 5).Return(database.Message{Id: 5, RoomId: 1}, nil)

		_, err := svc.EditMessage(context.Background(), 2, 5, "edit")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("message not found", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetMessage", 99).Return(database.Message{}, sql.ErrNoRows)

		_, err := svc.EditMessage(context.Background(), 2, 99, "edit")
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})
}

func TestMessages(t *testing.T) {
	groupRoom := database.Room{Id: 1, ExternalId: "abc123", Kind: database.RoomKindGroup}

	t.Run("success", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("GetMembership", 2, 1).Return(groupMember(2, 1, types.RoleMember), nil)
		db.On("GetMessages", 1, 0, 0, 10).Return([]database.Message{
			{Id: 2, RoomId: 1, Content: "second"},
			{Id: 1, RoomId: 1, Content: "first"},
		}, nil)

		msgs, err := svc.Messages(context.Background(), 2, "abc123", 0, 0, 10)
		assert.NoError(t, err)
		if assert.Len(t, msgs, 2) {
			assert.Equal(t, "second", msgs[0].Content)
		}
	})

	t.Run("not a member", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("GetMembership", 3, 1).Return(database.Membership{}, sql.ErrNoRows)

		_, err := svc.Messages(context.Background(), 3, "abc123", 0, 0, 10)
		assert.ErrorIs(t, err, ErrNotAMember)
	})
}

func TestUpdateGroupRoom(t *testing.T) {
	groupRoom := database.Room{Id: 1, ExternalId: "abc123", Kind: database.RoomKindGroup, Name: "general"}

	t.Run("manager may update", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("GetMembership", 2, 1).Return(groupMember(2, 1, types.RoleManager), nil)
		db.On("UpdateGroupRoom", database.UpdateGroupRoomParams{
			RoomId:      1,
			Name:        "renamed",
			Description: "new desc",
		}).Return(database.Room{Id: 1, ExternalId: "abc123", Kind: database.RoomKindGroup, Name: "renamed", Description: "new desc"}, nil)

		room, err := svc.UpdateGroupRoom(context.Background(), 2, "abc123", "renamed", "new desc")
		assert.NoError(t, err)
		assert.Equal(t, "renamed", room.Name)
	})

	t.Run("member may not update", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("GetMembership", 3, 1).Return(groupMember(3, 1, types.RoleMember), nil)

		_, err := svc.UpdateGroupRoom(context.Background(), 3, "abc123", "renamed", "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("empty name", func(t *testing.T) {
		db := &database.MockRepository{}
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		_, err := svc.UpdateGroupRoom(context.Background(), 2, "abc123", "", "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestDeleteRoom(t *testing.T) {
	groupRoom := database.Room{Id: 1, ExternalId: "abc123", Kind: database.RoomKindGroup}

	t.Run("owner deletes", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, notifier := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("GetMembership", 1, 1).Return(groupMember(1, 1, types.RoleOwner), nil)
		db.On("GetMemberAccountIds", 1).Return([]int{1, 2, 3}, nil)
		db.On("DeleteRoom", 1).Return(nil)

		err := svc.DeleteRoom(context.Background(), 1, "abc123")
		assert.NoError(t, err)

		n := notifier.last()
		if assert.NotNil(t, n) && assert.NotNil(t, n.RoomDeleted) {
			assert.Equal(t, "abc123", n.RoomDeleted.RoomId)
		}
	})

	t.Run("manager may not delete", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		svc, _ := newTestService(t, db, su)

		db.On("GetRoomByExternalId", "abc123").Return(groupRoom, nil)
		db.On("GetMembership", 2, 1).Return(groupMember(2, 1, types.RoleManager), nil)

		err := svc.DeleteRoom(context.Background(), 2, "abc123")
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestMemberships(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	svc, _ := newTestService(t, db, su)

	member := groupMember(2, 1, types.RoleMember)
	member.Room = database.Room{Id: 1, ExternalId: "abc123", Kind: database.RoomKindGroup, Name: "general"}
	db.On("ListMemberships", 2).Return([]database.Membership{member}, nil)

	members, err := svc.Memberships(context.Background(), 2)
	assert.NoError(t, err)
	if assert.Len(t, members, 1) {
		assert.Equal(t, "general", members[0].Room.Name)
		assert.Equal(t, types.RoleMember, members[0].Role)
	}
}
