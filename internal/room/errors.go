package room

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomExpired    = errors.New("room has expired")
	ErrNotAMember     = errors.New("not a member of this room")
	ErrAlreadyJoined  = errors.New("player already in room")
	ErrNoActiveGame   = errors.New("no active game")
	ErrNeedTwoPlayers = errors.New("need 2 players")
)
