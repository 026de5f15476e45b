package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/huarazguide/internal/pkg/config"
	"github.com/samirrijal/huarazguide/internal/pkg/logging"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status>")
	}

	cfg, err := config.Load("huarazguide-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text", "huarazguide-migrate")

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		log.Fatalf("schema_migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		err = up(ctx, pool)
	case "down":
		err = down(ctx, pool)
	case "status":
		err = status(ctx, pool)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// versions lists the up migrations in order, keyed by file name without
// the .sql suffix.
func versions() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		name := filepath.Base(f)
		if strings.HasSuffix(name, ".down.sql") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".sql"))
	}
	sort.Strings(out)
	return out, nil
}

func applied(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	vs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(vs))
	for _, v := range vs {
		done[v] = true
	}
	return done, nil
}

// run executes one migration file and records the result in a single
// transaction.
func run(ctx context.Context, pool *pgxpool.Pool, file, record string, args ...any) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec %s: %w", file, err)
		}
		_, err := tx.Exec(ctx, record, args...)
		return err
	})
}

func up(ctx context.Context, pool *pgxpool.Pool) error {
	vs, err := versions()
	if err != nil {
		return err
	}
	done, err := applied(ctx, pool)
	if err != nil {
		return err
	}

	n := 0
	for _, v := range vs {
		if done[v] {
			continue
		}
		file := filepath.Join(migrationsDir, v+".sql")
		if err := run(ctx, pool, file, `INSERT INTO schema_migrations (version) VALUES ($1)`, v); err != nil {
			return err
		}
		slog.Info("migration applied", "version", v)
		n++
	}
	slog.Info("migrations up to date", "applied", n)
	return nil
}

// down reverts the most recently applied migration.
func down(ctx context.Context, pool *pgxpool.Pool) error {
	var v string
	err := pool.QueryRow(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&v)
	if err == pgx.ErrNoRows {
		slog.Info("nothing to revert")
		return nil
	}
	if err != nil {
		return err
	}
	file := filepath.Join(migrationsDir, v+".down.sql")
	if err := run(ctx, pool, file, `DELETE FROM schema_migrations WHERE version = $1`, v); err != nil {
		return err
	}
	slog.Info("migration reverted", "version", v)
	return nil
}

func status(ctx context.Context, pool *pgxpool.Pool) error {
	vs, err := versions()
	if err != nil {
		return err
	}
	done, err := applied(ctx, pool)
	if err != nil {
		return err
	}
	for _, v := range vs {
		mark := "pending"
		if done[v] {
			mark = "applied"
		}
		fmt.Printf("%-8s %s\n", mark, v)
	}
	return nil
}
