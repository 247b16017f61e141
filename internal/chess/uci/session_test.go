package uci

import (
	"strings"
	"testing"
	"time"
)

func TestParseInfoScoreAndPV(t *testing.T) {
	got, ok := parseInfo("info depth 18 seldepth 24 multipv 1 score cp -35 upperbound nodes 100 pv e7e5 g1f3 b8c6")
	if !ok {
		t.Fatalf("expected info to parse")
	}
	if got.Score == nil || got.Score.Kind != "cp" || got.Score.Value != -35 {
		t.Fatalf("unexpected score %+v", got.Score)
	}
	if got.Depth != 18 {
		t.Fatalf("unexpected depth %d", got.Depth)
	}
	if strings.Join(got.Principal, " ") != "e7e5 g1f3 b8c6" {
		t.Fatalf("unexpected pv %v", got.Principal)
	}
}

func TestParseInfoMate(t *testing.T) {
	got, ok := parseInfo("info depth 5 score mate -2 pv h7h8")
	if !ok || got.Score == nil || got.Score.Kind != "mate" || got.Score.Value != -2 {
		t.Fatalf("unexpected parse %+v ok=%v", got, ok)
	}
}

func TestParseInfoIgnoresStrings(t *testing.T) {
	got, ok := parseInfo("info string NNUE evaluation using nn-1111.nnue score cp 999")
	if ok || got.Score != nil {
		t.Fatalf("info string must be ignored, got %+v", got)
	}
}

func TestBuildGoTokens(t *testing.T) {
	tokens, err := buildGoTokens(Limits{MoveTimeMillis: 200})
	if err != nil {
		t.Fatalf("buildGoTokens: %v", err)
	}
	if strings.Join(tokens, " ") != "go movetime 200" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
	if _, err := buildGoTokens(Limits{}); err == nil {
		t.Fatalf("expected error without limits")
	}
}

func TestBuildPositionCommand(t *testing.T) {
	fen := "8/8/8/4k3/8/8/8/4K3 w - - 0 1"
	if got := buildPositionCommand(fen); got != "position fen "+fen+"\n" {
		t.Fatalf("unexpected command %q", got)
	}
	if got := buildPositionCommand(""); got != "position startpos\n" {
		t.Fatalf("unexpected command %q", got)
	}
}

func TestSearchTimeoutAddsGrace(t *testing.T) {
	s := &Session{grace: time.Second}
	if got := s.searchTimeout(Limits{MoveTimeMillis: 200}); got != 1200*time.Millisecond {
		t.Fatalf("unexpected timeout %v", got)
	}
}

func TestValidateOptions(t *testing.T) {
	if err := validateOptions(Options{SkillLevel: 21}); err == nil {
		t.Fatalf("expected skill level error")
	}
	if err := validateOptions(Options{SkillLevel: 20, HashMB: 16}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
