package session

import "errors"

var (
	ErrRoomNotFound                = errors.New("room not found")
	ErrRoomFull                    = errors.New("room is full")
	ErrSelfJoin                    = errors.New("cannot join your own room")
	ErrNotYourTurn                 = errors.New("not your turn")
	ErrGameNotInProgress           = errors.New("game is not in progress")
	ErrGameNotInProgressWrongState = errors.New("play again is only allowed after a finished game")
	ErrPlayerNotInRoom             = errors.New("player is not in this room")
	ErrOpponentMissing             = errors.New("waiting for an opponent")
	ErrInvalidIdentity             = errors.New("player identity is required")
	ErrCodeSpaceExhausted          = errors.New("could not allocate a free room code")
)
