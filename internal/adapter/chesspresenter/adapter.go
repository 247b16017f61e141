package chesspresenter

import (
	"errors"
	"net/http"

	corechess "github.com/vitoskycl/web-chess/internal/chess"
	"github.com/vitoskycl/web-chess/internal/domain"
	svc "github.com/vitoskycl/web-chess/internal/service/chess"
	"github.com/vitoskycl/web-chess/pkg/chessdto"
)

// Move renders a SubmitMove outcome. On a retained player move the
// response still carries the committed position.
func (p *Presenter) Move(res svc.MoveResult, err error) chessdto.MoveResponse {
	out := chessdto.MoveResponse{
		OK:       err == nil,
		FEN:      res.FEN,
		GameOver: res.GameOver,
		Method:   res.Method,
	}
	if res.GameOver {
		out.Result = res.Result
	}
	if res.EngineMove != "" {
		mv := res.EngineMove
		out.Move = &mv
	}
	if err != nil {
		out.ErrorBody = p.Error(err).Body()
	}
	return out
}

func (p *Presenter) Reset(res svc.ResetResult, err error) chessdto.ResetResponse {
	out := chessdto.ResetResponse{
		FEN:         res.FEN,
		MotorPlayed: res.EnginePlayed,
		Move:        res.EngineMove,
		Level:       res.Level,
		SessionUUID: res.SessionUUID,
	}
	if err != nil {
		ok := false
		out.OK = &ok
		out.ErrorBody = p.Error(err).Body()
	}
	return out
}

func (p *Presenter) Upload(pos corechess.Position, err error) chessdto.UploadResponse {
	if err != nil {
		return chessdto.UploadResponse{ErrorBody: p.Error(err).Body()}
	}
	return chessdto.UploadResponse{OK: true, FEN: pos.String()}
}

func (p *Presenter) MissingUpload() chessdto.UploadResponse {
	return chessdto.UploadResponse{ErrorBody: p.Failure(CodeNoFile, nil).Body()}
}

func (p *Presenter) State(st svc.SessionState) chessdto.StateResponse {
	moves := st.Moves
	if moves == nil {
		moves = []string{}
	}
	return chessdto.StateResponse{
		SessionUUID: st.SessionUUID,
		FEN:         st.FEN,
		Moves:       moves,
		Level:       st.Level,
		EngineColor: st.EngineColor,
		Status:      string(st.Status),
		GameOver:    st.GameOver,
		Result:      st.Result,
		Method:      st.Method,
		StartedAt:   st.StartedAt,
		UpdatedAt:   st.UpdatedAt,
	}
}

func (p *Presenter) Games(games []*domain.ChessGame) chessdto.GamesResponse {
	out := chessdto.GamesResponse{Games: make([]chessdto.GameSummary, 0, len(games))}
	for _, g := range games {
		if g == nil {
			continue
		}
		sans := g.MovesSAN
		if sans == nil {
			sans = []string{}
		}
		out.Games = append(out.Games, chessdto.GameSummary{
			ID:          g.ID,
			SessionUUID: g.SessionUUID,
			Level:       g.Level,
			PlayerColor: g.PlayerColor,
			Result:      g.Result,
			Method:      g.ResultMethod,
			MovesSAN:    sans,
			ECO:         g.ECO,
			PGN:         g.PGN,
			StartedAt:   g.StartedAt,
			EndedAt:     g.EndedAt,
			DurationMS:  g.Duration.Milliseconds(),
		})
	}
	return out
}

// Status picks the HTTP status for err. Domain rejections are reported in
// the body with 200, as the browser client expects; only infrastructure
// failures change the status.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, corechess.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, corechess.ErrEngineTimeout):
		return http.StatusGatewayTimeout
	case corechess.ErrorCode(err) == "internal":
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
