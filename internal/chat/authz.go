package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/oessenger/oessenger/internal/database"
	"github.com/oessenger/oessenger/internal/types"
)

// Action is an operation a user may attempt against a room.
type Action int

const (
	ActionRead Action = iota
	ActionPostMessage
	ActionUpdateRoomMetadata
	ActionManageMembers
)

// Authorize decides whether user may perform action on the room. A nil
// return means allow, a typed error carries the deny reason. A missing
// room always wins over a missing membership.
func (s *Service) Authorize(ctx context.Context, userId int, roomExternalId string, action Action) error {
	_, _, err := s.authorize(ctx, userId, roomExternalId, action)
	return err
}

func (s *Service) authorize(ctx context.Context, userId int, roomExternalId string, action Action) (database.Room, database.Membership, error) {
	room, err := s.db.GetRoomByExternalId(ctx, roomExternalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Room{}, database.Membership{}, ErrRoomNotFound
		}
		return database.Room{}, database.Membership{}, fmt.Errorf("get room: %w", err)
	}

	member, err := s.db.GetMembership(ctx, userId, room.Id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Room{}, database.Membership{}, ErrNotAMember
		}
		return database.Room{}, database.Membership{}, fmt.Errorf("get membership: %w", err)
	}

	switch action {
	case ActionRead, ActionPostMessage:
		// membership alone grants read and post
		return room, member, nil
	case ActionUpdateRoomMetadata, ActionManageMembers:
		// DM rooms have no mutable metadata and no roles to manage
		if room.Kind != database.RoomKindGroup {
			return database.Room{}, database.Membership{}, ErrForbidden
		}

		if memberRole(member) < types.RoleManager {
			return database.Room{}, database.Membership{}, ErrForbidden
		}

		return room, member, nil
	default:
		return database.Room{}, database.Membership{}, fmt.Errorf("%w: unknown action %d", ErrInvalidInput, action)
	}
}

// memberRole returns the member's role, or RoleNone for DM room
// members and unparseable values.
func memberRole(m database.Membership) types.Role {
	if !m.Role.Valid {
		return types.RoleNone
	}

	role, _ := types.ParseRole(m.Role.String)
	return role
}
