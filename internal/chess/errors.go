package chess

import "errors"

var (
	ErrMalformedPosition   = errors.New("malformed position")
	ErrMalformedGameRecord = errors.New("malformed game record")
	ErrEmptyGameRecord     = errors.New("empty game record")
	ErrIllegalMove         = errors.New("illegal move")
	ErrEngineUnavailable   = errors.New("chess engine unavailable")
	ErrEngineTimeout       = errors.New("chess engine timeout")
	ErrEngineProtocol      = errors.New("chess engine protocol error")
)

// ErrorCode returns the stable wire code for err, or "internal" when err is
// outside the taxonomy.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedPosition):
		return "malformed_position"
	case errors.Is(err, ErrMalformedGameRecord):
		return "malformed_game_record"
	case errors.Is(err, ErrEmptyGameRecord):
		return "empty_game_record"
	case errors.Is(err, ErrIllegalMove):
		return "illegal_move"
	case errors.Is(err, ErrEngineUnavailable):
		return "engine_unavailable"
	case errors.Is(err, ErrEngineTimeout):
		return "engine_timeout"
	case errors.Is(err, ErrEngineProtocol):
		return "engine_protocol"
	default:
		return "internal"
	}
}

// Retryable reports whether repeating the same request may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrEngineTimeout) || errors.Is(err, ErrEngineUnavailable)
}
