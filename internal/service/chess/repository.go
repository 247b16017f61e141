package chess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vitoskycl/web-chess/internal/domain"
)

var ErrDuplicateGame = errors.New("chess game already exists")

// Repository archives finished games.
type Repository interface {
	InsertGame(ctx context.Context, game *domain.ChessGame) (int64, error)
	RecentGames(ctx context.Context, limit int) ([]*domain.ChessGame, error)
	GameBySession(ctx context.Context, sessionUUID string) (*domain.ChessGame, error)
}

const chessGamesSchema = `
	CREATE TABLE IF NOT EXISTS chess_games (
		id            BIGSERIAL PRIMARY KEY,
		session_uuid  TEXT NOT NULL UNIQUE,
		level         INTEGER NOT NULL,
		player_color  TEXT NOT NULL,
		result        TEXT NOT NULL,
		result_method TEXT NOT NULL,
		moves_uci     JSONB NOT NULL,
		moves_san     JSONB NOT NULL,
		pgn           TEXT NOT NULL,
		start_fen     TEXT NOT NULL,
		final_fen     TEXT NOT NULL,
		eco           TEXT NOT NULL DEFAULT '',
		started_at    TIMESTAMPTZ NOT NULL,
		ended_at      TIMESTAMPTZ NOT NULL,
		duration_ms   BIGINT
	);
	CREATE INDEX IF NOT EXISTS chess_games_ended_at_idx ON chess_games (ended_at DESC)`

const selectGameColumns = `
	SELECT
		id,
		session_uuid,
		level,
		player_color,
		result,
		result_method,
		moves_uci,
		moves_san,
		pgn,
		start_fen,
		final_fen,
		eco,
		started_at,
		ended_at,
		duration_ms
	FROM chess_games`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// EnsureSchema creates the archive table when it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, chessGamesSchema); err != nil {
		return fmt.Errorf("create chess_games: %w", err)
	}
	return nil
}

func (r *repository) InsertGame(ctx context.Context, game *domain.ChessGame) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil chess game payload")
	}

	movesUCI, err := json.Marshal(nonNil(game.MovesUCI))
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(game.MovesSAN))
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO chess_games (
			session_uuid,
			level,
			player_color,
			result,
			result_method,
			moves_uci,
			moves_san,
			pgn,
			start_fen,
			final_fen,
			eco,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		game.SessionUUID,
		game.Level,
		game.PlayerColor,
		game.Result,
		game.ResultMethod,
		movesUCI,
		movesSAN,
		game.PGN,
		game.StartFEN,
		game.FinalFEN,
		game.ECO,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert chess game: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) RecentGames(ctx context.Context, limit int) ([]*domain.ChessGame, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, selectGameColumns+`
		ORDER BY ended_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select chess games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.ChessGame, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chess games: %w", err)
	}
	return games, nil
}

func (r *repository) GameBySession(ctx context.Context, sessionUUID string) (*domain.ChessGame, error) {
	row := r.db.QueryRowContext(ctx, selectGameColumns+`
		WHERE session_uuid = $1`, strings.TrimSpace(sessionUUID))
	game, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return game, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.ChessGame, error) {
	var (
		game         domain.ChessGame
		movesUCIJSON []byte
		movesSANJSON []byte
		durationMS   sql.NullInt64
	)
	err := row.Scan(
		&game.ID,
		&game.SessionUUID,
		&game.Level,
		&game.PlayerColor,
		&game.Result,
		&game.ResultMethod,
		&movesUCIJSON,
		&movesSANJSON,
		&game.PGN,
		&game.StartFEN,
		&game.FinalFEN,
		&game.ECO,
		&game.StartedAt,
		&game.EndedAt,
		&durationMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan chess game: %w", err)
	}
	if durationMS.Valid {
		game.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(movesUCIJSON, &game.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSANJSON, &game.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &game, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
