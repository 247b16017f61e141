package chessdto

// MoveRequest carries the player's move in coordinate notation. A missing
// move asks the engine to play.
type MoveRequest struct {
	Move *string `json:"move"`
}

type MoveResponse struct {
	OK       bool    `json:"ok"`
	Move     *string `json:"move,omitempty"`
	FEN      string  `json:"fen,omitempty"`
	GameOver bool    `json:"game_over"`
	Result   string  `json:"result,omitempty"`
	Method   string  `json:"method,omitempty"`
	ErrorBody
}

type EvalRequest struct {
	FEN string `json:"fen"`
}

type EvalResponse struct {
	EvalPercent float64 `json:"eval_percent"`
}

type UploadResponse struct {
	OK  bool   `json:"ok"`
	FEN string `json:"fen,omitempty"`
	ErrorBody
}

type OKResponse struct {
	OK bool `json:"ok"`
}
