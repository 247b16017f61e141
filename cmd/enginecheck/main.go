package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vitoskycl/web-chess/internal/chess"
	"github.com/vitoskycl/web-chess/internal/chess/eval"
	"github.com/vitoskycl/web-chess/internal/chessbuilder"
	appcfg "github.com/vitoskycl/web-chess/internal/config"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	engine := chessbuilder.EngineFromConfig(cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		log.Fatalf("engine start error: %v", err)
	}
	defer engine.Close()
	log.Printf("engine ok: path=%s level=%d", cfg.StockfishPath, engine.Level())

	start := chess.StartPosition()
	move, err := engine.BestMove(ctx, start, cfg.MoveTime)
	if err != nil {
		log.Fatalf("bestmove error: %v", err)
	}
	san, _ := start.SAN(move)
	fmt.Printf("bestmove %s (%s) in %s\n", move, san, cfg.MoveTime)

	score, err := engine.Analyse(ctx, start, cfg.EvalTime)
	if err != nil {
		log.Fatalf("analyse error: %v", err)
	}
	fmt.Printf("score %s eval_percent %.1f\n", score, eval.Normalize(score))
}
