package chess

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vitoskycl/web-chess/internal/domain"
)

// memrepo keeps the archive in process memory. Used when no database is
// configured.
type memrepo struct {
	mu sync.RWMutex

	nextID    int64
	games     []*domain.ChessGame
	bySession map[string]*domain.ChessGame
}

func NewMemoryRepository() Repository {
	return &memrepo{bySession: make(map[string]*domain.ChessGame)}
}

func (m *memrepo) InsertGame(ctx context.Context, game *domain.ChessGame) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}
	key := strings.TrimSpace(game.SessionUUID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySession[key]; exists {
		return 0, ErrDuplicateGame
	}

	m.nextID++
	stored := cloneGame(game)
	stored.ID = m.nextID
	m.games = append(m.games, stored)
	m.bySession[key] = stored
	return stored.ID, nil
}

func (m *memrepo) RecentGames(ctx context.Context, limit int) ([]*domain.ChessGame, error) {
	m.mu.RLock()
	items := make([]*domain.ChessGame, 0, len(m.games))
	for _, g := range m.games {
		items = append(items, cloneGame(g))
	}
	m.mu.RUnlock()

	// EndedAt desc, newest id first on ties.
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GameBySession(ctx context.Context, sessionUUID string) (*domain.ChessGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.bySession[strings.TrimSpace(sessionUUID)]; ok {
		return cloneGame(g), nil
	}
	return nil, nil
}

func cloneGame(g *domain.ChessGame) *domain.ChessGame {
	c := *g
	c.MovesUCI = append([]string(nil), g.MovesUCI...)
	c.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &c
}
