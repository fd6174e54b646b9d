package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/printdesk/backend/internal/config"
	"github.com/printdesk/backend/internal/logging"
	"github.com/printdesk/backend/internal/repository"
	"github.com/printdesk/backend/migrations"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [command]

Commands:
  (default)   未適用のマイグレーションを適用
  down        直近のマイグレーションを 1 つ戻す
  status      適用状況を表示
  reset       全マイグレーションを戻す
  fresh       全マイグレーションを戻し、最初から適用し直す`)
	os.Exit(1)
}

// gooseLogger は goose のログを slog に流す
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), "component", "goose")
}

func (gooseLogger) Fatalf(format string, v ...any) {
	logging.Fatal(fmt.Sprintf(format, v...), "component", "goose")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	ctx := context.Background()
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("connect failed", "error", err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		logging.Fatal("set dialect failed", "error", err)
	}

	if err := run(ctx, db, cmd); err != nil {
		logging.Fatal("migration failed", "command", cmd, "error", err)
	}
}

func run(ctx context.Context, db *sql.DB, cmd string) error {
	switch cmd {
	case "":
		return goose.UpContext(ctx, db, ".")
	case "down":
		return goose.DownContext(ctx, db, ".")
	case "status":
		return goose.StatusContext(ctx, db, ".")
	case "reset":
		return goose.ResetContext(ctx, db, ".")
	case "fresh":
		if err := goose.ResetContext(ctx, db, "."); err != nil {
			return err
		}
		return goose.UpContext(ctx, db, ".")
	default:
		usage()
		return nil
	}
}
