package domain

import "time"

// ChessGame is a finished session as stored in the archive.
type ChessGame struct {
	ID           int64
	SessionUUID  string
	Level        int
	PlayerColor  string
	Result       string
	ResultMethod string
	MovesUCI     []string
	MovesSAN     []string
	PGN          string
	StartFEN     string
	FinalFEN     string
	ECO          string
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
}
