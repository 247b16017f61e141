// Package httpapi serves the chess session over HTTP with fasthttp.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/vitoskycl/web-chess/internal/adapter/chesspresenter"
	corechess "github.com/vitoskycl/web-chess/internal/chess"
	"github.com/vitoskycl/web-chess/internal/domain"
	svc "github.com/vitoskycl/web-chess/internal/service/chess"
	"github.com/vitoskycl/web-chess/pkg/chessdto"
)

const (
	uploadField     = "pgn_file"
	maxUploadBytes  = 1 << 20
	defaultDeadline = 30 * time.Second
)

// ChessService is the part of the session service the routes need.
type ChessService interface {
	SubmitMove(ctx context.Context, move *string) (svc.MoveResult, error)
	Reset(ctx context.Context, level int, color string) (svc.ResetResult, error)
	ImportGameRecord(ctx context.Context, text string) (corechess.Position, error)
	Evaluate(ctx context.Context, fen string) (float64, error)
	History(ctx context.Context) (string, error)
	State() svc.SessionState
	RecentGames(ctx context.Context, limit int) ([]*domain.ChessGame, error)
	RestartEngine(ctx context.Context) error
	RenderBoard(ctx context.Context) ([]byte, error)
}

type route struct {
	method string
	handle func(context.Context, *fasthttp.RequestCtx)
}

type Handler struct {
	svc       ChessService
	presenter *chesspresenter.Presenter
	logger    *zap.Logger
	deadline  time.Duration
	routes    map[string]route
}

func NewHandler(service ChessService, presenter *chesspresenter.Presenter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{svc: service, presenter: presenter, logger: logger, deadline: defaultDeadline}
	h.routes = map[string]route{
		"/move":           {fasthttp.MethodPost, h.move},
		"/reset":          {fasthttp.MethodPost, h.reset},
		"/upload_pgn":     {fasthttp.MethodPost, h.uploadPGN},
		"/eval":           {fasthttp.MethodPost, h.eval},
		"/history":        {fasthttp.MethodGet, h.history},
		"/state":          {fasthttp.MethodGet, h.state},
		"/board.png":      {fasthttp.MethodGet, h.board},
		"/games":          {fasthttp.MethodGet, h.games},
		"/engine/restart": {fasthttp.MethodPost, h.restartEngine},
		"/healthz":        {fasthttp.MethodGet, h.healthz},
	}
	return h
}

// Handle is the fasthttp entry point.
func (h *Handler) Handle(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	path := string(ctx.Path())
	method := string(ctx.Method())

	r, ok := h.routes[path]
	switch {
	case !ok:
		h.writeJSON(ctx, http.StatusNotFound, chessdto.ErrorResponse{
			ErrorBody: h.presenter.Failure(chesspresenter.CodeNotFound, map[string]string{"Path": path}).Body(),
		})
	case method != r.method && !(r.method == fasthttp.MethodGet && method == fasthttp.MethodHead):
		ctx.Response.Header.Set(fasthttp.HeaderAllow, r.method)
		h.writeJSON(ctx, http.StatusMethodNotAllowed, chessdto.ErrorResponse{
			ErrorBody: h.presenter.Failure(chesspresenter.CodeMethodNotAllowed, map[string]string{"Method": method}).Body(),
		})
	default:
		reqCtx, cancel := context.WithTimeout(context.Background(), h.deadline)
		r.handle(reqCtx, ctx)
		cancel()
	}

	h.logger.Debug("http_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", ctx.Response.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (h *Handler) move(reqCtx context.Context, ctx *fasthttp.RequestCtx) {
	var req chessdto.MoveRequest
	if !h.decode(ctx, &req) {
		return
	}
	res, err := h.svc.SubmitMove(reqCtx, req.Move)
	h.writeJSON(ctx, chesspresenter.Status(err), h.presenter.Move(res, err))
}

func (h *Handler) reset(reqCtx context.Context, ctx *fasthttp.RequestCtx) {
	var req chessdto.ResetRequest
	if !h.decode(ctx, &req) {
		return
	}
	color := strings.ToLower(strings.TrimSpace(req.Color))
	if color != "" && color != svc.ColorWhite && color != svc.ColorBlack {
		h.badRequest(ctx, errors.New("color must be white or black"))
		return
	}
	res, err := h.svc.Reset(reqCtx, corechess.ClampLevel(int(req.Level)), color)
	h.writeJSON(ctx, chesspresenter.Status(err), h.presenter.Reset(res, err))
}

func (h *Handler) uploadPGN(reqCtx context.Context, ctx *fasthttp.RequestCtx) {
	fh, err := ctx.FormFile(uploadField)
	if err != nil || fh == nil || fh.Filename == "" {
		h.writeJSON(ctx, http.StatusOK, h.presenter.MissingUpload())
		return
	}
	if fh.Size > maxUploadBytes {
		h.badRequest(ctx, fmt.Errorf("upload is %d bytes, limit is %d", fh.Size, maxUploadBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.badRequest(ctx, err)
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err == nil && len(raw) > maxUploadBytes {
		err = fmt.Errorf("upload exceeds %d bytes", maxUploadBytes)
	}
	if err != nil {
		h.badRequest(ctx, err)
		return
	}
	pos, err := h.svc.ImportGameRecord(reqCtx, string(raw))
	h.writeJSON(ctx, chesspresenter.Status(err), h.presenter.Upload(pos, err))
}

func (h *Handler) eval(reqCtx context.Context, ctx *fasthttp.RequestCtx) {
	var req chessdto.EvalRequest
	if !h.decode(ctx, &req) {
		return
	}
	pct, err := h.svc.Evaluate(reqCtx, req.FEN)
	if err != nil {
		h.writeJSON(ctx, chesspresenter.Status(err), chessdto.ErrorResponse{ErrorBody: h.presenter.Error(err).Body()})
		return
	}
	h.writeJSON(ctx, http.StatusOK, chessdto.EvalResponse{EvalPercent: pct})
}

func (h *Handler) history(reqCtx context.Context, ctx *fasthttp.RequestCtx) {
	text, err := h.svc.History(reqCtx)
	if err != nil {
		h.writeJSON(ctx, http.StatusInternalServerError, chessdto.ErrorResponse{ErrorBody: h.presenter.Error(err).Body()})
		return
	}
	h.writeJSON(ctx, http.StatusOK, chessdto.HistoryResponse{PGN: text})
}

func (h *Handler) state(_ context.Context, ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, http.StatusOK, h.presenter.State(h.svc.State()))
}

func (h *Handler) board(reqCtx context.Context, ctx *fasthttp.RequestCtx) {
	img, err := h.svc.RenderBoard(reqCtx)
	if err != nil {
		h.logger.Warn("board_render_failed", zap.Error(err))
		h.writeJSON(ctx, http.StatusInternalServerError, chessdto.ErrorResponse{ErrorBody: h.presenter.Error(err).Body()})
		return
	}
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetContentType("image/png")
	ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
	ctx.SetBody(img)
}

func (h *Handler) games(reqCtx context.Context, ctx *fasthttp.RequestCtx) {
	limit := 0
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		n, err := fasthttp.ParseUint(raw)
		if err != nil {
			h.badRequest(ctx, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	games, err := h.svc.RecentGames(reqCtx, limit)
	if err != nil {
		h.logger.Warn("recent_games_failed", zap.Error(err))
		h.writeJSON(ctx, chesspresenter.Status(err), chessdto.ErrorResponse{ErrorBody: h.presenter.Error(err).Body()})
		return
	}
	h.writeJSON(ctx, http.StatusOK, h.presenter.Games(games))
}

func (h *Handler) restartEngine(reqCtx context.Context, ctx *fasthttp.RequestCtx) {
	if err := h.svc.RestartEngine(reqCtx); err != nil {
		h.writeJSON(ctx, chesspresenter.Status(err), chessdto.ErrorResponse{ErrorBody: h.presenter.Error(err).Body()})
		return
	}
	h.writeJSON(ctx, http.StatusOK, chessdto.OKResponse{OK: true})
}

func (h *Handler) healthz(_ context.Context, ctx *fasthttp.RequestCtx) {
	h.writeJSON(ctx, http.StatusOK, chessdto.OKResponse{OK: true})
}

// decode reads a JSON body into v. An empty body leaves v zero.
func (h *Handler) decode(ctx *fasthttp.RequestCtx, v any) bool {
	body := ctx.PostBody()
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		h.badRequest(ctx, err)
		return false
	}
	return true
}

func (h *Handler) badRequest(ctx *fasthttp.RequestCtx, err error) {
	h.logger.Debug("http_bad_request", zap.ByteString("path", ctx.Path()), zap.Error(err))
	h.writeJSON(ctx, http.StatusBadRequest, chessdto.ErrorResponse{
		ErrorBody: h.presenter.Failure(chesspresenter.CodeBadRequest, nil).Body(),
	})
}

func (h *Handler) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		h.logger.Error("http_write_failed", zap.Error(err))
	}
}
