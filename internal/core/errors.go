package core

import "errors"

var (
	ErrUsernameTaken    = errors.New("username already taken")
	ErrUserNotFound     = errors.New("user not found")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExists       = errors.New("room already exists")
	ErrRoomNameReserved = errors.New("room name reserved")
	ErrNotAMember       = errors.New("not a member of room")
)
