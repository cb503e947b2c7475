package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/oessenger/oessenger/internal/database"
	"github.com/oessenger/oessenger/internal/events"
	"github.com/oessenger/oessenger/internal/stats"
	"github.com/oessenger/oessenger/internal/types"
	"github.com/teris-io/shortid"
)

// MaxMessageLength bounds text message content, in runes.
const MaxMessageLength = 4096

// Notifier pushes notifications to the listed accounts' live
// connections. Implemented by events.Hub.
type Notifier interface {
	Notify(accountIds []int, n *events.Notification)
}

type Service struct {
	log    *log.Logger
	db     database.Repository
	events Notifier
	stats  stats.StatsProvider
}

func NewService(logger *log.Logger, db database.Repository, notifier Notifier, sp stats.StatsProvider) *Service {
	sp.RegisterMetric(stats.MessagesPosted)
	sp.RegisterMetric(stats.RoomsCreated)
	sp.RegisterMetric(stats.MembershipsTotal)

	return &Service{
		log:    logger,
		db:     db,
		events: notifier,
		stats:  sp,
	}
}

// CreateGroupRoom creates a group room with owner as its first member
// holding RoleOwner. The room and the owner membership are written
// atomically, so a reachable room always has an owner.
func (s *Service) CreateGroupRoom(ctx context.Context, ownerId int, name, description string) (types.Room, error) {
	if name == "" {
		return types.Room{}, fmt.Errorf("%w: room name is required", ErrInvalidInput)
	}

	owner, err := s.db.GetAccountById(ctx, ownerId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrUserNotFound
		}
		return types.Room{}, fmt.Errorf("get account: %w", err)
	}

	sid, err := shortid.Generate()
	if err != nil {
		return types.Room{}, fmt.Errorf("generate room id: %w", err)
	}

	room, err := s.db.CreateGroupRoom(ctx, database.CreateGroupRoomParams{
		ExternalId:    sid,
		Name:          name,
		Description:   description,
		OwnerId:       owner.Id,
		OwnerNickname: owner.Username,
	})
	if err != nil {
		return types.Room{}, fmt.Errorf("create group room: %w", err)
	}

	s.stats.Incr(stats.RoomsCreated)
	s.stats.Incr(stats.MembershipsTotal)

	return toRoom(room), nil
}

// CreateDmRoom creates a two-party DM room. The pair is unique across
// DM rooms, a second room for the same two users fails with
// ErrDuplicateDm.
func (s *Service) CreateDmRoom(ctx context.Context, userA, userB int) (types.Room, error) {
	if userA == userB {
		return types.Room{}, fmt.Errorf("%w: cannot open a dm room with yourself", ErrInvalidInput)
	}

	accountA, err := s.db.GetAccountById(ctx, userA)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrUserNotFound
		}
		return types.Room{}, fmt.Errorf("get account: %w", err)
	}

	accountB, err := s.db.GetAccountById(ctx, userB)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrUserNotFound
		}
		return types.Room{}, fmt.Errorf("get account: %w", err)
	}

	sid, err := shortid.Generate()
	if err != nil {
		return types.Room{}, fmt.Errorf("generate room id: %w", err)
	}

	room, err := s.db.CreateDmRoom(ctx, database.CreateDmRoomParams{
		ExternalId: sid,
		AccountA:   accountA.Id,
		NicknameA:  accountA.Username,
		AccountB:   accountB.Id,
		NicknameB:  accountB.Username,
	})
	if err != nil {
		if database.IsUniqueViolation(err, database.ConstraintUniqueDmPair) {
			return types.Room{}, ErrDuplicateDm
		}
		return types.Room{}, fmt.Errorf("create dm room: %w", err)
	}

	s.stats.Incr(stats.RoomsCreated)
	s.stats.Incr(stats.MembershipsTotal)
	s.stats.Incr(stats.MembershipsTotal)

	s.events.Notify([]int{accountA.Id, accountB.Id}, &events.Notification{
		Membership: &events.MembershipChange{
			RoomId: room.ExternalId,
			User:   types.User{Id: accountA.Id, Username: accountA.Username},
			Joined: true,
		},
	})

	return toRoom(room), nil
}

// Join adds the user to a group room with RoleMember. The room creator
// got RoleOwner when the room was created, everyone else joins as a
// plain member.
func (s *Service) Join(ctx context.Context, userId int, roomExternalId, nickname string) (types.Membership, error) {
	room, err := s.db.GetRoomByExternalId(ctx, roomExternalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Membership{}, ErrRoomNotFound
		}
		return types.Membership{}, fmt.Errorf("get room: %w", err)
	}

	// DM membership is fixed at creation
	if room.Kind != database.RoomKindGroup {
		return types.Membership{}, ErrForbidden
	}

	account, err := s.db.GetAccountById(ctx, userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Membership{}, ErrUserNotFound
		}
		return types.Membership{}, fmt.Errorf("get account: %w", err)
	}

	if nickname == "" {
		nickname = account.Username
	}

	member, err := s.db.CreateMembership(ctx, database.CreateMembershipParams{
		AccountId: account.Id,
		RoomId:    room.Id,
		Nickname:  nickname,
		Role:      sql.NullString{String: types.RoleMember.String(), Valid: true},
	})
	if err != nil {
		if database.IsUniqueViolation(err, database.ConstraintUniqueMembership) {
			return types.Membership{}, ErrDuplicateMembership
		}
		return types.Membership{}, fmt.Errorf("create membership: %w", err)
	}

	s.stats.Incr(stats.MembershipsTotal)
	s.notifyRoom(ctx, room, &events.Notification{
		Membership: &events.MembershipChange{
			RoomId: room.ExternalId,
			User:   types.User{Id: account.Id, Username: account.Username},
			Joined: true,
		},
	})

	member.Room = room
	return toMembership(member), nil
}

// Leave removes the user's membership. The room survives even if its
// membership count drops to zero.
func (s *Service) Leave(ctx context.Context, userId int, roomExternalId string) error {
	room, err := s.db.GetRoomByExternalId(ctx, roomExternalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("get room: %w", err)
	}

	if err := s.db.DeleteMembership(ctx, userId, room.Id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotAMember
		}
		return fmt.Errorf("delete membership: %w", err)
	}

	s.stats.Decr(stats.MembershipsTotal)
	s.notifyRoom(ctx, room, &events.Notification{
		Membership: &events.MembershipChange{
			RoomId: room.ExternalId,
			User:   types.User{Id: userId},
			Joined: false,
		},
	})

	return nil
}

// UpdateLastSeen advances the member's last-seen pointer to the given
// message. Setting the same message again is a no-op.
func (s *Service) UpdateLastSeen(ctx context.Context, userId int, roomExternalId string, messageId int) (types.Membership, error) {
	room, err := s.db.GetRoomByExternalId(ctx, roomExternalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Membership{}, ErrRoomNotFound
		}
		return types.Membership{}, fmt.Errorf("get room: %w", err)
	}

	member, err := s.db.UpdateLastSeenMessage(ctx, userId, room.Id, messageId)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return types.Membership{}, ErrNotAMember
		case errors.Is(err, database.ErrMessageNotFound):
			return types.Membership{}, ErrMessageNotFound
		case errors.Is(err, database.ErrMessageNotInRoom):
			return types.Membership{}, ErrMessageNotInRoom
		}
		return types.Membership{}, fmt.Errorf("update last seen: %w", err)
	}

	member.Room = room
	return toMembership(member), nil
}

// ChangeRole assigns newRole to the target member. An Owner may act on
// any member, a Manager only on members of strictly lower rank and only
// with a strictly lower new role. The actor's and target's roles are
// re-read inside the write transaction.
func (s *Service) ChangeRole(ctx context.Context, actorId int, roomExternalId string, targetUserId int, newRole types.Role) (types.Membership, error) {
	if !newRole.Valid() {
		return types.Membership{}, ErrInvalidRole
	}

	room, err := s.db.GetRoomByExternalId(ctx, roomExternalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Membership{}, ErrRoomNotFound
		}
		return types.Membership{}, fmt.Errorf("get room: %w", err)
	}

	if room.Kind != database.RoomKindGroup {
		return types.Membership{}, ErrForbidden
	}

	allowed := func(actor, target database.Membership) error {
		actorRole := memberRole(actor)
		if actorRole == types.RoleOwner {
			return nil
		}
		if actorRole != types.RoleManager {
			return ErrForbidden
		}
		if memberRole(target) >= actorRole {
			return ErrForbidden
		}
		if newRole >= actorRole {
			return ErrForbidden
		}
		return nil
	}

	member, err := s.db.ChangeMemberRole(ctx, room.Id, actorId, targetUserId, newRole.String(), allowed)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrActorNotMember):
			return types.Membership{}, ErrForbidden
		case errors.Is(err, database.ErrTargetNotMember):
			return types.Membership{}, ErrNotAMember
		case errors.Is(err, ErrForbidden):
			return types.Membership{}, err
		}
		return types.Membership{}, fmt.Errorf("change member role: %w", err)
	}

	s.notifyRoom(ctx, room, &events.Notification{
		RoleChange: &events.RoleChange{
			RoomId: room.ExternalId,
			UserId: targetUserId,
			Role:   newRole,
		},
	})

	member.Room = room
	return toMembership(member), nil
}

// PostMessage appends a text message to the room's log and bumps the
// room's last activity.
func (s *Service) PostMessage(ctx context.Context, userId int, roomExternalId, content string) (types.Message, error) {
	if content == "" || utf8.RuneCountInString(content) > MaxMessageLength {
		return types.Message{}, fmt.Errorf("%w: content must be 1-%d characters", ErrInvalidInput, MaxMessageLength)
	}

	room, _, err := s.authorize(ctx, userId, roomExternalId, ActionPostMessage)
	if err != nil {
		return types.Message{}, err
	}

	msg, err := s.db.CreateMessage(ctx, database.CreateMessageParams{
		RoomId:    room.Id,
		AccountId: userId,
		Content:   content,
	})
	if err != nil {
		return types.Message{}, fmt.Errorf("create message: %w", err)
	}

	s.stats.Incr(stats.MessagesPosted)
	s.notifyRoom(ctx, room, &events.Notification{
		Message: &events.MessageNotification{
			RoomId:    room.ExternalId,
			MessageId: msg.Id,
			UserId:    userId,
		},
	})

	return toMessage(msg), nil
}

// EditMessage replaces the message content and sets the edited flag.
// Only the author may edit.
func (s *Service) EditMessage(ctx context.Context, userId, messageId int, content string) (types.Message, error) {
	if content == "" || utf8.RuneCountInString(content) > MaxMessageLength {
		return types.Message{}, fmt.Errorf("%w: content must be 1-%d characters", ErrInvalidInput, MaxMessageLength)
	}

	msg, err := s.db.GetMessage(ctx, messageId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, ErrMessageNotFound
		}
		return types.Message{}, fmt.Errorf("get message: %w", err)
	}

	if !msg.AccountId.Valid || int(msg.AccountId.Int64) != userId {
		return types.Message{}, ErrForbidden
	}

	// the author guard repeats in the update's WHERE clause, so a
	// concurrent author deletion surfaces as no rows
	updated, err := s.db.UpdateMessageContent(ctx, messageId, userId, content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, ErrForbidden
		}
		return types.Message{}, fmt.Errorf("update message: %w", err)
	}

	return toMessage(updated), nil
}

// Messages returns a page of the room's message log, newest first.
func (s *Service) Messages(ctx context.Context, userId int, roomExternalId string, since, before, limit int) ([]types.Message, error) {
	room, _, err := s.authorize(ctx, userId, roomExternalId, ActionRead)
	if err != nil {
		return nil, err
	}

	msgs, err := s.db.GetMessages(ctx, room.Id, since, before, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}

	messages := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		messages = append(messages, toMessage(msg))
	}

	return messages, nil
}

// Room returns the room with its member list.
func (s *Service) Room(ctx context.Context, userId int, roomExternalId string) (types.Room, error) {
	room, _, err := s.authorize(ctx, userId, roomExternalId, ActionRead)
	if err != nil {
		return types.Room{}, err
	}

	full, err := s.db.GetRoomWithMembers(ctx, room.Id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrRoomNotFound
		}
		return types.Room{}, fmt.Errorf("get room with members: %w", err)
	}

	return toRoom(*full), nil
}

// Memberships lists the user's rooms, most recently active first.
func (s *Service) Memberships(ctx context.Context, userId int) ([]types.Membership, error) {
	dbMembers, err := s.db.ListMemberships(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	members := make([]types.Membership, 0, len(dbMembers))
	for _, m := range dbMembers {
		members = append(members, toMembership(m))
	}

	return members, nil
}

// UpdateGroupRoom updates a group room's name and description.
// Requires Owner or Manager.
func (s *Service) UpdateGroupRoom(ctx context.Context, actorId int, roomExternalId, name, description string) (types.Room, error) {
	if name == "" {
		return types.Room{}, fmt.Errorf("%w: room name is required", ErrInvalidInput)
	}

	room, _, err := s.authorize(ctx, actorId, roomExternalId, ActionUpdateRoomMetadata)
	if err != nil {
		return types.Room{}, err
	}

	updated, err := s.db.UpdateGroupRoom(ctx, database.UpdateGroupRoomParams{
		RoomId:      room.Id,
		Name:        name,
		Description: description,
	})
	if err != nil {
		return types.Room{}, fmt.Errorf("update group room: %w", err)
	}

	return toRoom(updated), nil
}

// DeleteRoom removes a group room and everything in it. Only the Owner
// may delete. DM rooms cannot be deleted.
func (s *Service) DeleteRoom(ctx context.Context, actorId int, roomExternalId string) error {
	room, member, err := s.authorize(ctx, actorId, roomExternalId, ActionManageMembers)
	if err != nil {
		return err
	}

	if memberRole(member) != types.RoleOwner {
		return ErrForbidden
	}

	// capture the member list before the cascade wipes it
	memberIds, err := s.db.GetMemberAccountIds(ctx, room.Id)
	if err != nil {
		return fmt.Errorf("get member ids: %w", err)
	}

	if err := s.db.DeleteRoom(ctx, room.Id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("delete room: %w", err)
	}

	s.events.Notify(memberIds, &events.Notification{
		RoomDeleted: &events.RoomDeleted{RoomId: room.ExternalId},
	})

	return nil
}

// notifyRoom pushes a notification to every current member of room.
func (s *Service) notifyRoom(ctx context.Context, room database.Room, n *events.Notification) {
	memberIds, err := s.db.GetMemberAccountIds(ctx, room.Id)
	if err != nil {
		s.log.Println("get member ids:", err)
		return
	}

	s.events.Notify(memberIds, n)
}

func toRoom(room database.Room) types.Room {
	r := types.Room{
		Id:           room.Id,
		ExternalId:   room.ExternalId,
		Kind:         types.RoomKind(room.Kind),
		Name:         room.Name,
		Description:  room.Description,
		PicturePath:  room.PicturePath,
		LastActivity: room.LastActivity,
		CreatedAt:    room.CreatedAt,
	}

	for _, m := range room.Members {
		r.Members = append(r.Members, toMembership(m))
	}

	return r
}

func toMembership(m database.Membership) types.Membership {
	member := types.Membership{
		Id:        m.Id,
		User:      types.User{Id: m.AccountId, Username: m.Username},
		Nickname:  m.Nickname,
		Role:      memberRole(m),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	if m.LastSeenMessageId.Valid {
		member.LastSeenMessageId = int(m.LastSeenMessageId.Int64)
	}

	if m.Room.Id != 0 {
		member.Room = toRoom(m.Room)
	} else {
		member.Room = types.Room{Id: m.RoomId}
	}

	return member
}

func toMessage(msg database.Message) types.Message {
	m := types.Message{
		Id:        msg.Id,
		RoomId:    msg.RoomId,
		Content:   msg.Content,
		IsEdited:  msg.IsEdited,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}

	if msg.AccountId.Valid {
		m.UserId = int(msg.AccountId.Int64)
	}

	return m
}
