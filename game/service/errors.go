package service

import (
	"errors"

	"github.com/wricardo/connectfour/game/engine"
	"github.com/wricardo/connectfour/game/session"
)

// Wire codes reported to clients for rejected requests.
const (
	CodeRoomNotFound       = "room_not_found"
	CodeRoomFull           = "room_full"
	CodeSelfJoin           = "self_join"
	CodeNotYourTurn        = "not_your_turn"
	CodeGameNotInProgress  = "game_not_in_progress"
	CodeColumnFull         = "column_full"
	CodeInvalidColumn      = "invalid_column"
	CodeWrongState         = "wrong_state"
	CodePlayerNotInRoom    = "player_not_in_room"
	CodeOpponentMissing    = "opponent_missing"
	CodeInvalidIdentity    = "invalid_identity"
	CodeCodeSpaceExhausted = "code_space_exhausted"
	CodeInternal           = "internal_error"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{session.ErrRoomNotFound, CodeRoomNotFound},
	{session.ErrRoomFull, CodeRoomFull},
	{session.ErrSelfJoin, CodeSelfJoin},
	{session.ErrNotYourTurn, CodeNotYourTurn},
	{session.ErrGameNotInProgressWrongState, CodeWrongState},
	{session.ErrGameNotInProgress, CodeGameNotInProgress},
	{session.ErrPlayerNotInRoom, CodePlayerNotInRoom},
	{session.ErrOpponentMissing, CodeOpponentMissing},
	{session.ErrInvalidIdentity, CodeInvalidIdentity},
	{session.ErrCodeSpaceExhausted, CodeCodeSpaceExhausted},
	{engine.ErrColumnFull, CodeColumnFull},
	{engine.ErrInvalidColumn, CodeInvalidColumn},
}

// ErrorCode maps an error returned by GameService to its wire code. Errors
// outside the known taxonomy map to CodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// IsRejection reports whether err is an expected outcome of client input
// rather than a server fault.
func IsRejection(err error) bool {
	code := ErrorCode(err)
	return code != "" && code != CodeInternal && code != CodeCodeSpaceExhausted
}
