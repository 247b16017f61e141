package chessdto

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	MinLevel = 0
	MaxLevel = 20
)

// Level accepts a JSON number or a numeric string. Values outside
// MinLevel..MaxLevel are clamped.
type Level int

func (l *Level) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("level must be a number: %s", b)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if n == "" {
		*l = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("level must be a number: %w", err)
	}
	switch {
	case math.IsNaN(f) || f < MinLevel:
		f = MinLevel
	case f > MaxLevel:
		f = MaxLevel
	}
	*l = Level(int(f))
	return nil
}

type ResetRequest struct {
	Level Level  `json:"level"`
	Color string `json:"color,omitempty"`
}

type ResetResponse struct {
	OK          *bool  `json:"ok,omitempty"`
	FEN         string `json:"fen"`
	MotorPlayed bool   `json:"motor_played"`
	Move        string `json:"move,omitempty"`
	Level       int    `json:"level"`
	SessionUUID string `json:"session_uuid"`
	ErrorBody
}

type StateResponse struct {
	SessionUUID string    `json:"session_uuid"`
	FEN         string    `json:"fen"`
	Moves       []string  `json:"moves"`
	Level       int       `json:"level"`
	EngineColor string    `json:"engine_color"`
	Status      string    `json:"status"`
	GameOver    bool      `json:"game_over"`
	Result      string    `json:"result"`
	Method      string    `json:"method,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
