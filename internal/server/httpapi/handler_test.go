package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/vitoskycl/web-chess/internal/adapter/chesspresenter"
	corechess "github.com/vitoskycl/web-chess/internal/chess"
	"github.com/vitoskycl/web-chess/internal/chess/uci"
	"github.com/vitoskycl/web-chess/internal/chess/uci/ucitest"
	"github.com/vitoskycl/web-chess/internal/msgcat"
	svc "github.com/vitoskycl/web-chess/internal/service/chess"
	"github.com/vitoskycl/web-chess/pkg/chessdto"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	spawn := func(ctx context.Context, level int) (*uci.Session, error) {
		return ucitest.New().Session(ctx, uci.Options{SkillLevel: level, Grace: 100 * time.Millisecond})
	}
	eng := corechess.NewEngine(spawn, 0, nil)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("engine start: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	service, err := svc.NewService(eng, nil, nil, svc.NewBoardRenderer(16), svc.Config{MoveBudget: 10 * time.Millisecond, EvalBudget: 10 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	return NewHandler(service, chesspresenter.NewPresenter(cat), nil)
}

func do(t *testing.T, h *Handler, method, uri, contentType string, body []byte) *fasthttp.RequestCtx {
	t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	req.SetBody(body)

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	h.Handle(ctx)
	return ctx
}

func doJSON(t *testing.T, h *Handler, method, uri, body string, out any) int {
	t.Helper()
	ctx := do(t, h, method, uri, "application/json", []byte(body))
	if out != nil {
		if err := json.Unmarshal(ctx.Response.Body(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, uri, ctx.Response.Body(), err)
		}
	}
	return ctx.Response.StatusCode()
}

func TestMoveAcceptedWithReply(t *testing.T) {
	h := newTestHandler(t)
	var res chessdto.MoveResponse
	if code := doJSON(t, h, "POST", "/move", `{"move":"e2e4"}`, &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !res.OK || res.Move == nil || res.GameOver {
		t.Fatalf("unexpected response: %+v", res)
	}
	pos, err := corechess.Parse(res.FEN)
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	if pos.Turn() != "w" {
		t.Fatalf("expected white to move after reply, fen %s", res.FEN)
	}
}

func TestMoveIllegalKeepsPosition(t *testing.T) {
	h := newTestHandler(t)
	var res chessdto.MoveResponse
	doJSON(t, h, "POST", "/move", `{"move":"e2e5"}`, &res)
	if res.OK || res.Code != "illegal_move" || res.Error != "Movimiento ilegal" {
		t.Fatalf("unexpected response: %+v", res)
	}
	var st chessdto.StateResponse
	doJSON(t, h, "GET", "/state", "", &st)
	if st.FEN != corechess.StartFEN || len(st.Moves) != 0 {
		t.Fatalf("position changed: %+v", st)
	}
}

func TestResetAsBlack(t *testing.T) {
	h := newTestHandler(t)
	var res chessdto.ResetResponse
	if code := doJSON(t, h, "POST", "/reset", `{"level":"20","color":"black"}`, &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !res.MotorPlayed || res.OK != nil || res.Level != 20 || res.SessionUUID == "" {
		t.Fatalf("unexpected response: %+v", res)
	}

	var st chessdto.StateResponse
	doJSON(t, h, "GET", "/state", "", &st)
	if len(st.Moves) != 1 || st.EngineColor != svc.ColorWhite {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestResetClampsLevelAndRejectsColor(t *testing.T) {
	h := newTestHandler(t)
	var res chessdto.ResetResponse
	doJSON(t, h, "POST", "/reset", `{"level":99}`, &res)
	if res.Level != corechess.MaxLevel || res.MotorPlayed {
		t.Fatalf("unexpected response: %+v", res)
	}
	var bad chessdto.ErrorResponse
	if code := doJSON(t, h, "POST", "/reset", `{"level":1,"color":"green"}`, &bad); code != http.StatusBadRequest {
		t.Fatalf("status = %d", code)
	}
	if bad.Code != chesspresenter.CodeBadRequest {
		t.Fatalf("code = %q", bad.Code)
	}
}

func TestBadJSON(t *testing.T) {
	h := newTestHandler(t)
	var res chessdto.ErrorResponse
	if code := doJSON(t, h, "POST", "/move", `{"move":`, &res); code != http.StatusBadRequest {
		t.Fatalf("status = %d", code)
	}
	if res.OK || res.Code != chesspresenter.CodeBadRequest {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func multipartBody(t *testing.T, field, filename, content string) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return w.FormDataContentType(), buf.Bytes()
}

func positionAfter(t *testing.T, moves ...string) corechess.Position {
	t.Helper()
	pos := corechess.StartPosition()
	for _, text := range moves {
		m, err := corechess.ParseMove(text)
		if err != nil {
			t.Fatalf("ParseMove(%s): %v", text, err)
		}
		if pos, err = pos.Apply(m); err != nil {
			t.Fatalf("Apply(%s): %v", text, err)
		}
	}
	return pos
}

func TestUploadPGN(t *testing.T) {
	h := newTestHandler(t)
	ct, body := multipartBody(t, "pgn_file", "game.pgn", "[Event \"x\"]\n\n1. e4 e5 *\n")
	ctx := do(t, h, "POST", "/upload_pgn", ct, body)

	var res chessdto.UploadResponse
	if err := json.Unmarshal(ctx.Response.Body(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := positionAfter(t, "e2e4", "e7e5").String()
	if !res.OK || res.FEN != want {
		t.Fatalf("unexpected response: %+v", res)
	}

	var st chessdto.StateResponse
	doJSON(t, h, "GET", "/state", "", &st)
	if st.FEN != want || len(st.Moves) != 0 {
		t.Fatalf("import should truncate history: %+v", st)
	}
}

func TestUploadPGNErrors(t *testing.T) {
	h := newTestHandler(t)

	ctx := do(t, h, "POST", "/upload_pgn", "", nil)
	var missing chessdto.UploadResponse
	if err := json.Unmarshal(ctx.Response.Body(), &missing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if missing.OK || missing.Error != "No se subió ningún archivo" {
		t.Fatalf("unexpected response: %+v", missing)
	}

	ct, body := multipartBody(t, "pgn_file", "bad.pgn", "1. e4 e5 2. Ke3 *")
	ctx = do(t, h, "POST", "/upload_pgn", ct, body)
	var bad chessdto.UploadResponse
	if err := json.Unmarshal(ctx.Response.Body(), &bad); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bad.OK || bad.Code != "malformed_game_record" {
		t.Fatalf("unexpected response: %+v", bad)
	}
}

func TestUploadPGNRejectsOversizeFile(t *testing.T) {
	h := newTestHandler(t)
	game := "[Event \"x\"]\n\n1. e4 e5 *\n"
	padding := strings.Repeat(" ", maxUploadBytes+1-len(game))
	ct, body := multipartBody(t, "pgn_file", "big.pgn", game+padding)
	ctx := do(t, h, "POST", "/upload_pgn", ct, body)

	if code := ctx.Response.StatusCode(); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", code, http.StatusBadRequest)
	}
	var res chessdto.ErrorResponse
	if err := json.Unmarshal(ctx.Response.Body(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.OK || res.Code != chesspresenter.CodeBadRequest {
		t.Fatalf("unexpected response: %+v", res)
	}

	var st chessdto.StateResponse
	doJSON(t, h, "GET", "/state", "", &st)
	if st.FEN != corechess.StartFEN {
		t.Fatalf("oversize upload changed the session: %s", st.FEN)
	}
}

func TestEval(t *testing.T) {
	h := newTestHandler(t)
	var res chessdto.EvalResponse
	if code := doJSON(t, h, "POST", "/eval", `{"fen":"`+corechess.StartFEN+`"}`, &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if res.EvalPercent <= 50 || res.EvalPercent >= 100 {
		t.Fatalf("eval_percent = %v, want slightly above 50", res.EvalPercent)
	}

	var bad chessdto.ErrorResponse
	doJSON(t, h, "POST", "/eval", `{"fen":"not a fen"}`, &bad)
	if bad.OK || bad.Code != "malformed_position" {
		t.Fatalf("unexpected response: %+v", bad)
	}
}

func TestHistoryAfterMove(t *testing.T) {
	h := newTestHandler(t)
	doJSON(t, h, "POST", "/move", `{"move":"e2e4"}`, nil)
	var res chessdto.HistoryResponse
	doJSON(t, h, "GET", "/history", "", &res)
	if !strings.Contains(res.PGN, "1. e4") {
		t.Fatalf("pgn = %q", res.PGN)
	}
}

func TestBoardPNG(t *testing.T) {
	h := newTestHandler(t)
	ctx := do(t, h, "GET", "/board.png", "", nil)
	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if string(ctx.Response.Header.ContentType()) != "image/png" {
		t.Fatalf("content type = %s", ctx.Response.Header.ContentType())
	}
	if !bytes.HasPrefix(ctx.Response.Body(), []byte("\x89PNG")) {
		t.Fatalf("body is not a png")
	}
}

func TestGamesAndRestart(t *testing.T) {
	h := newTestHandler(t)
	var games chessdto.GamesResponse
	if code := doJSON(t, h, "GET", "/games?limit=5", "", &games); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if games.Games == nil || len(games.Games) != 0 {
		t.Fatalf("unexpected games: %+v", games)
	}
	if code := doJSON(t, h, "GET", "/games?limit=x", "", nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", code)
	}

	var ok chessdto.OKResponse
	if code := doJSON(t, h, "POST", "/engine/restart", "", &ok); code != http.StatusOK || !ok.OK {
		t.Fatalf("restart: %d %+v", code, ok)
	}
	if code := doJSON(t, h, "GET", "/healthz", "", &ok); code != http.StatusOK || !ok.OK {
		t.Fatalf("healthz: %d %+v", code, ok)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := newTestHandler(t)
	var res chessdto.ErrorResponse
	if code := doJSON(t, h, "GET", "/nope", "", &res); code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(res.Error, "/nope") {
		t.Fatalf("error = %q", res.Error)
	}

	ctx := do(t, h, "GET", "/move", "", nil)
	if ctx.Response.StatusCode() != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if string(ctx.Response.Header.Peek("Allow")) != "POST" {
		t.Fatalf("allow = %q", ctx.Response.Header.Peek("Allow"))
	}
}
