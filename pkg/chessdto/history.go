package chessdto

import "time"

type HistoryResponse struct {
	PGN string `json:"pgn"`
}

// GameSummary describes one archived game.
type GameSummary struct {
	ID          int64     `json:"id"`
	SessionUUID string    `json:"session_uuid"`
	Level       int       `json:"level"`
	PlayerColor string    `json:"player_color"`
	Result      string    `json:"result"`
	Method      string    `json:"method"`
	MovesSAN    []string  `json:"moves_san"`
	ECO         string    `json:"eco,omitempty"`
	PGN         string    `json:"pgn"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	DurationMS  int64     `json:"duration_ms"`
}

type GamesResponse struct {
	Games []GameSummary `json:"games"`
}
