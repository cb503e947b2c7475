package chat

import "errors"

// Domain errors returned by the service. The API layer maps these to
// response codes with errors.Is, error text is never inspected.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")

	ErrDuplicateUser       = errors.New("username or email already taken")
	ErrDuplicateMembership = errors.New("user is already a member of the room")
	ErrDuplicateDm         = errors.New("dm room for this pair already exists")

	ErrNotAMember = errors.New("user is not a member of the room")
	ErrForbidden  = errors.New("operation not permitted")

	ErrInvalidRole      = errors.New("invalid role")
	ErrMessageNotInRoom = errors.New("message does not belong to the room")
	ErrInvalidInput     = errors.New("invalid input")
)
