package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrActorNotMember  = errors.New("actor is not a member of the room")
	ErrTargetNotMember = errors.New("target is not a member of the room")
)

const (
	membershipColumns = "m.id, m.account_id, m.room_id, a.username, m.nickname, m.role, " +
		"m.last_seen_message_id, m.created_at, m.updated_at"
	roomColumns = "r.id, r.external_id, r.kind, r.last_activity, r.created_at, " +
		"COALESCE(g.name, ''), COALESCE(g.description, ''), COALESCE(g.picture_path, '')"
)

func scanMembership(row interface{ Scan(...any) error }) (Membership, error) {
	var m Membership
	err := row.Scan(
		&m.Id,
		&m.AccountId,
		&m.RoomId,
		&m.Username,
		&m.Nickname,
		&m.Role,
		&m.LastSeenMessageId,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}

func (db *PgRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (username, email, password_hash, bio, picture_path) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"RETURNING id, username, email, bio, picture_path, last_activity, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		params.Bio,
		params.PicturePath,
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Bio,
		&a.PicturePath,
		&a.LastActivity,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgRepository) UpdateAccount(ctx context.Context, params UpdateAccountParams) (Account, error) {
	res := db.conn.QueryRowContext(ctx,
		"UPDATE accounts SET username = $2, password_hash = $3, bio = $4, picture_path = $5, updated_at = now() "+
			"WHERE id = $1 "+
			"RETURNING id, username, email, bio, picture_path, last_activity, created_at, updated_at",
		params.AccountId,
		params.Username,
		params.PasswordHash,
		params.Bio,
		params.PicturePath,
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Bio,
		&a.PicturePath,
		&a.LastActivity,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

// DeleteAccount removes the account. Memberships cascade, authored
// messages keep their rows with a NULL author.
func (db *PgRepository) DeleteAccount(ctx context.Context, accountId int) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM accounts WHERE id = $1", accountId)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgRepository) GetAccountById(ctx context.Context, accountId int) (Account, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, bio, picture_path, last_activity, created_at, updated_at "+
			"FROM accounts WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.Bio,
		&a.PicturePath,
		&a.LastActivity,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, bio, picture_path, last_activity, created_at, updated_at "+
			"FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.Bio,
		&a.PicturePath,
		&a.LastActivity,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgRepository) GetRoomByExternalId(ctx context.Context, externalId string) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms r "+
			"LEFT JOIN group_rooms g ON g.room_id = r.id "+
			"WHERE r.external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Kind,
		&room.LastActivity,
		&room.CreatedAt,
		&room.Name,
		&room.Description,
		&room.PicturePath,
	)

	return room, err
}

func (db *PgRepository) GetRoomWithMembers(ctx context.Context, roomId int) (*Room, error) {
	query := "SELECT " + roomColumns + ", " +
		"m.id, m.account_id, a.username, m.nickname, m.role, m.last_seen_message_id, m.created_at, m.updated_at " +
		"FROM rooms r " +
		"LEFT JOIN group_rooms g ON g.room_id = r.id " +
		"LEFT JOIN memberships m ON m.room_id = r.id " +
		"LEFT JOIN accounts a ON a.id = m.account_id " +
		"WHERE r.id = $1"

	rows, err := db.conn.QueryContext(ctx, query, roomId)
	if err != nil {
		return nil, fmt.Errorf("fetch room with members: %w", err)
	}
	defer rows.Close()

	var room *Room
	for rows.Next() {
		var (
			r                 Room
			membershipId      sql.NullInt64
			accountId         sql.NullInt64
			username          sql.NullString
			nickname          sql.NullString
			role              sql.NullString
			lastSeenMessageId sql.NullInt64
			memberCreatedAt   sql.NullTime
			memberUpdatedAt   sql.NullTime
		)

		err := rows.Scan(
			&r.Id,
			&r.ExternalId,
			&r.Kind,
			&r.LastActivity,
			&r.CreatedAt,
			&r.Name,
			&r.Description,
			&r.PicturePath,
			&membershipId,
			&accountId,
			&username,
			&nickname,
			&role,
			&lastSeenMessageId,
			&memberCreatedAt,
			&memberUpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if room == nil {
			r.Members = make([]Membership, 0)
			room = &r
		}

		if membershipId.Valid && accountId.Valid {
			room.Members = append(room.Members, Membership{
				Id:                int(membershipId.Int64),
				AccountId:         int(accountId.Int64),
				RoomId:            room.Id,
				Username:          username.String,
				Nickname:          nickname.String,
				Role:              role,
				LastSeenMessageId: lastSeenMessageId,
				CreatedAt:         memberCreatedAt.Time,
				UpdatedAt:         memberUpdatedAt.Time,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if room == nil {
		return nil, sql.ErrNoRows
	}

	return room, nil
}

// CreateGroupRoom inserts the room and the owner's membership in a
// single transaction so a room is never reachable without an owner.
func (db *PgRepository) CreateGroupRoom(ctx context.Context, params CreateGroupRoomParams) (Room, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRowContext(ctx,
		"INSERT INTO rooms (external_id, kind) VALUES ($1, $2) "+
			"RETURNING id, external_id, kind, last_activity, created_at",
		params.ExternalId,
		RoomKindGroup,
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Kind,
		&room.LastActivity,
		&room.CreatedAt,
	)
	if err != nil {
		return Room{}, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO group_rooms (room_id, name, description) VALUES ($1, $2, $3)",
		room.Id,
		params.Name,
		params.Description,
	)
	if err != nil {
		return Room{}, err
	}
	room.Name = params.Name
	room.Description = params.Description

	_, err = tx.ExecContext(ctx,
		"INSERT INTO memberships (account_id, room_id, nickname, role) VALUES ($1, $2, $3, $4)",
		params.OwnerId,
		room.Id,
		params.OwnerNickname,
		"owner",
	)
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, nil
}

// CreateDmRoom inserts the room, its canonical pair row and both
// memberships atomically. The pair's unique constraint makes a second
// room for the same two accounts fail with a unique violation.
func (db *PgRepository) CreateDmRoom(ctx context.Context, params CreateDmRoomParams) (Room, error) {
	low, high := params.AccountA, params.AccountB
	if low > high {
		low, high = high, low
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRowContext(ctx,
		"INSERT INTO rooms (external_id, kind) VALUES ($1, $2) "+
			"RETURNING id, external_id, kind, last_activity, created_at",
		params.ExternalId,
		RoomKindDm,
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Kind,
		&room.LastActivity,
		&room.CreatedAt,
	)
	if err != nil {
		return Room{}, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO dm_rooms (room_id, account_low, account_high) VALUES ($1, $2, $3)",
		room.Id,
		low,
		high,
	)
	if err != nil {
		return Room{}, err
	}

	for _, member := range []struct {
		accountId int
		nickname  string
	}{
		{params.AccountA, params.NicknameA},
		{params.AccountB, params.NicknameB},
	} {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO memberships (account_id, room_id, nickname) VALUES ($1, $2, $3)",
			member.accountId,
			room.Id,
			member.nickname,
		)
		if err != nil {
			return Room{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, nil
}

func (db *PgRepository) UpdateGroupRoom(ctx context.Context, params UpdateGroupRoomParams) (Room, error) {
	res := db.conn.QueryRowContext(ctx,
		"UPDATE group_rooms g SET name = $2, description = $3 "+
			"FROM rooms r WHERE g.room_id = $1 AND r.id = g.room_id "+
			"RETURNING r.id, r.external_id, r.kind, r.last_activity, r.created_at, g.name, g.description, g.picture_path",
		params.RoomId,
		params.Name,
		params.Description,
	)

	var room Room
	err := res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Kind,
		&room.LastActivity,
		&room.CreatedAt,
		&room.Name,
		&room.Description,
		&room.PicturePath,
	)

	return room, err
}

// DeleteRoom removes the room. Memberships, messages and the
// group/dm extension rows cascade.
func (db *PgRepository) DeleteRoom(ctx context.Context, roomId int) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM rooms WHERE id = $1", roomId)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgRepository) CreateMembership(ctx context.Context, params CreateMembershipParams) (Membership, error) {
	row := db.conn.QueryRowContext(ctx,
		"WITH inserted AS ("+
			"INSERT INTO memberships (account_id, room_id, nickname, role) VALUES ($1, $2, $3, $4) "+
			"RETURNING id, account_id, room_id, nickname, role, last_seen_message_id, created_at, updated_at"+
			") SELECT m.id, m.account_id, m.room_id, a.username, m.nickname, m.role, "+
			"m.last_seen_message_id, m.created_at, m.updated_at "+
			"FROM inserted m JOIN accounts a ON a.id = m.account_id",
		params.AccountId,
		params.RoomId,
		params.Nickname,
		params.Role,
	)

	return scanMembership(row)
}

func (db *PgRepository) GetMembership(ctx context.Context, accountId, roomId int) (Membership, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+membershipColumns+" FROM memberships m "+
			"JOIN accounts a ON a.id = m.account_id "+
			"WHERE m.account_id = $1 AND m.room_id = $2 LIMIT 1",
		accountId,
		roomId,
	)

	return scanMembership(row)
}

func (db *PgRepository) ListMemberships(ctx context.Context, accountId int) ([]Membership, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT m.id, m.nickname, m.role, m.last_seen_message_id, m.created_at, m.updated_at, "+
			roomColumns+" "+
			"FROM memberships m "+
			"JOIN rooms r ON r.id = m.room_id "+
			"LEFT JOIN group_rooms g ON g.room_id = r.id "+
			"WHERE m.account_id = $1 "+
			"ORDER BY r.last_activity DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		err = rows.Scan(
			&m.Id,
			&m.Nickname,
			&m.Role,
			&m.LastSeenMessageId,
			&m.CreatedAt,
			&m.UpdatedAt,
			&m.Room.Id,
			&m.Room.ExternalId,
			&m.Room.Kind,
			&m.Room.LastActivity,
			&m.Room.CreatedAt,
			&m.Room.Name,
			&m.Room.Description,
			&m.Room.PicturePath,
		)
		if err != nil {
			break
		}

		m.AccountId = accountId
		m.RoomId = m.Room.Id
		memberships = append(memberships, m)
	}

	return memberships, err
}

func (db *PgRepository) DeleteMembership(ctx context.Context, accountId, roomId int) error {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM memberships WHERE account_id = $1 AND room_id = $2",
		accountId,
		roomId,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// UpdateLastSeenMessage validates that the message belongs to the
// membership's room and advances the pointer, all in one transaction.
// Setting the same message again is a no-op.
func (db *PgRepository) UpdateLastSeenMessage(ctx context.Context, accountId, roomId, messageId int) (Membership, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Membership{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		"SELECT "+membershipColumns+" FROM memberships m "+
			"JOIN accounts a ON a.id = m.account_id "+
			"WHERE m.account_id = $1 AND m.room_id = $2 FOR UPDATE OF m",
		accountId,
		roomId,
	)

	var m Membership
	m, err = scanMembership(row)
	if err != nil {
		return Membership{}, err
	}

	var messageRoomId int
	err = tx.QueryRowContext(ctx,
		"SELECT room_id FROM messages WHERE id = $1", messageId,
	).Scan(&messageRoomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrMessageNotFound
		}
		return Membership{}, err
	}

	if messageRoomId != m.RoomId {
		err = ErrMessageNotInRoom
		return Membership{}, err
	}

	if m.LastSeenMessageId.Valid && int(m.LastSeenMessageId.Int64) == messageId {
		// already seen, nothing to write
		if err = tx.Commit(); err != nil {
			return Membership{}, err
		}
		return m, nil
	}

	err = tx.QueryRowContext(ctx,
		"UPDATE memberships SET last_seen_message_id = $2, updated_at = now() WHERE id = $1 "+
			"RETURNING last_seen_message_id, updated_at",
		m.Id,
		messageId,
	).Scan(&m.LastSeenMessageId, &m.UpdatedAt)
	if err != nil {
		return Membership{}, err
	}

	if err = tx.Commit(); err != nil {
		return Membership{}, err
	}

	return m, nil
}

// ChangeMemberRole locks the actor's and target's membership rows,
// consults allowed with the roles as they stand inside the transaction
// and writes the new role. Both rows are locked by a single statement
// in id order so concurrent role changes cannot deadlock.
func (db *PgRepository) ChangeMemberRole(ctx context.Context, roomId, actorId, targetId int, newRole string, allowed RoleChangeCheck) (Membership, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Membership{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx,
		"SELECT "+membershipColumns+" FROM memberships m "+
			"JOIN accounts a ON a.id = m.account_id "+
			"WHERE m.room_id = $1 AND m.account_id = ANY($2) "+
			"ORDER BY m.id FOR UPDATE OF m",
		roomId,
		pq.Array([]int{actorId, targetId}),
	)
	if err != nil {
		return Membership{}, err
	}

	var actor, target Membership
	var actorFound, targetFound bool
	for rows.Next() {
		var m Membership
		m, err = scanMembership(rows)
		if err != nil {
			rows.Close()
			return Membership{}, err
		}

		if m.AccountId == actorId {
			actor = m
			actorFound = true
		}
		if m.AccountId == targetId {
			target = m
			targetFound = true
		}
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return Membership{}, err
	}

	if !actorFound {
		err = ErrActorNotMember
		return Membership{}, err
	}
	if !targetFound {
		err = ErrTargetNotMember
		return Membership{}, err
	}

	if err = allowed(actor, target); err != nil {
		return Membership{}, err
	}

	err = tx.QueryRowContext(ctx,
		"UPDATE memberships SET role = $2, updated_at = now() WHERE id = $1 "+
			"RETURNING role, updated_at",
		target.Id,
		newRole,
	).Scan(&target.Role, &target.UpdatedAt)
	if err != nil {
		return Membership{}, err
	}

	if err = tx.Commit(); err != nil {
		return Membership{}, err
	}

	return target, nil
}

func (db *PgRepository) GetMemberAccountIds(ctx context.Context, roomId int) ([]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT account_id FROM memberships WHERE room_id = $1",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids = make([]int, 0)
	for rows.Next() {
		var id int
		if err = rows.Scan(&id); err != nil {
			break
		}

		ids = append(ids, id)
	}

	return ids, err
}

// CreateMessage appends the message and bumps the room's and the
// author's activity timestamps in the same transaction.
func (db *PgRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRowContext(ctx,
		"INSERT INTO messages (room_id, account_id, content) VALUES ($1, $2, $3) "+
			"RETURNING id, room_id, account_id, content, is_edited, created_at, updated_at",
		params.RoomId,
		params.AccountId,
		params.Content,
	)

	var msg Message
	err = res.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.AccountId,
		&msg.Content,
		&msg.IsEdited,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE rooms SET last_activity = now() WHERE id = $1", params.RoomId,
	)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE accounts SET last_activity = now() WHERE id = $1", params.AccountId,
	)
	if err != nil {
		return Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

func (db *PgRepository) GetMessage(ctx context.Context, messageId int) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, room_id, account_id, content, is_edited, created_at, updated_at "+
			"FROM messages WHERE id = $1 LIMIT 1",
		messageId,
	)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.AccountId,
		&msg.Content,
		&msg.IsEdited,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)

	return msg, err
}

// UpdateMessageContent edits a message in place. The author guard is
// part of the WHERE clause, so a non-author edit affects no rows.
func (db *PgRepository) UpdateMessageContent(ctx context.Context, messageId, accountId int, content string) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE messages SET content = $3, is_edited = TRUE, updated_at = now() "+
			"WHERE id = $1 AND account_id = $2 "+
			"RETURNING id, room_id, account_id, content, is_edited, created_at, updated_at",
		messageId,
		accountId,
		content,
	)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.RoomId,
		&msg.AccountId,
		&msg.Content,
		&msg.IsEdited,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)

	return msg, err
}

func (db *PgRepository) GetMessages(ctx context.Context, roomId, since, before, limit int) ([]Message, error) {
	var upper, lower int = 1<<31 - 1, 0
	if before > 0 {
		upper = before - 1
	}

	if since > 0 {
		lower = since + 1
	}

	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, room_id, account_id, content, is_edited, created_at, updated_at FROM messages "+
			"WHERE room_id = $1 AND id BETWEEN $2 AND $3 ORDER BY id DESC LIMIT $4",
		roomId,
		lower,
		upper,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.RoomId, &msg.AccountId, &msg.Content, &msg.IsEdited, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}
