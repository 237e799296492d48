package apperror

import "errors"

var (
	ErrRateLimited    = errors.New("too many requests")
	ErrServerFull     = errors.New("room limit reached")
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyInRoom  = errors.New("already in this room")
	ErrGameNotPlaying = errors.New("game is not in progress")
	ErrNotAMember     = errors.New("you are not in this room")
	ErrCellOccupied   = errors.New("cell is already occupied")
	ErrNotYourTurn    = errors.New("it's not your turn")
)
