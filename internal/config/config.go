package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type AppConfig struct {
	HTTPAddr string

	RedisURL    string
	DatabaseURL string
	MessagesDir string

	StockfishPath string
	EngineThreads int
	EngineHashMB  int
	MoveTime      time.Duration
	EvalTime      time.Duration
	EngineGrace   time.Duration

	ChessDefaultLevel  int
	ChessSessionTTLSec int
	ChessHistoryLimit  int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:           ":5000",
		EngineThreads:      1,
		EngineHashMB:       16,
		MoveTime:           200 * time.Millisecond,
		EvalTime:           100 * time.Millisecond,
		EngineGrace:        2 * time.Second,
		ChessSessionTTLSec: 86400,
		ChessHistoryLimit:  10,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	// Engine
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	cfg.EngineThreads = positiveInt("ENGINE_THREADS", cfg.EngineThreads)
	cfg.EngineHashMB = positiveInt("ENGINE_HASH_MB", cfg.EngineHashMB)
	cfg.MoveTime = millis("ENGINE_MOVE_TIME_MS", cfg.MoveTime)
	cfg.EvalTime = millis("ENGINE_EVAL_TIME_MS", cfg.EvalTime)
	cfg.EngineGrace = millis("ENGINE_GRACE_MS", cfg.EngineGrace)

	// Session
	if v := strings.TrimSpace(os.Getenv("CHESS_DEFAULT_LEVEL")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 20 {
			return nil, errors.New("CHESS_DEFAULT_LEVEL must be an integer between 0 and 20")
		}
		cfg.ChessDefaultLevel = n
	}
	cfg.ChessSessionTTLSec = positiveInt("CHESS_SESSION_TTL", cfg.ChessSessionTTLSec)
	cfg.ChessHistoryLimit = positiveInt("CHESS_HISTORY_LIMIT", cfg.ChessHistoryLimit)

	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}
	return cfg, nil
}

// SessionTTL is the snapshot lifetime in the store.
func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.ChessSessionTTLSec) * time.Second
}

func positiveInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func millis(key string, def time.Duration) time.Duration {
	if n := positiveInt(key, 0); n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return def
}
