package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/config"
	"github.com/cogniseal/cogniseal-ledger/internal/database"
	"github.com/cogniseal/cogniseal-ledger/internal/logger"
)

func main() {
	var migrationDir string
	flag.StringVar(&migrationDir, "path", "migrations", "Path to migration files")
	flag.Usage = printUsage
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "")

	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("Store driver has no schema to migrate")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	// ─── Open Migrator ─────────────────────────────────────────────────
	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", migrationDir).Msg("Migration failed to initialize")
	}
	defer m.Close()

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Up failed")
		}
		fmt.Println("Migrated up successfully")
	case "down":
		// Dropping the ledger erases every exam, submission and certificate.
		if len(args) < 2 || args[1] != "--all" {
			log.Fatal().Msg("down drops the whole ledger; pass `down --all` to confirm or use `steps -N`")
		}
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Down failed")
		}
		fmt.Println("Migrated down successfully")
	case "steps":
		n := intArg(log, args, "steps requires a signed step count")
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Int("steps", n).Msg("Steps failed")
		}
		fmt.Printf("Applied %d step(s)\n", n)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal().Err(err).Msg("Version failed")
		}
		fmt.Printf("Version: %d, Dirty: %t\n", version, dirty)
	case "force":
		v := intArg(log, args, "force requires version argument")
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Msg("Force failed")
		}
		fmt.Printf("Forced version to %d\n", v)
	case "status":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal().Err(err).Msg("Version failed")
		}
		fmt.Printf("Schema version: %d, Dirty: %t\n", version, dirty)
		if err := printLedgerHead(cfg, log); err != nil {
			log.Fatal().Err(err).Msg("Ledger head unavailable")
		}
	default:
		printUsage()
		os.Exit(2)
	}
}

func intArg(log zerolog.Logger, args []string, missing string) int {
	if len(args) < 2 {
		log.Fatal().Msg(missing)
	}
	v, err := strconv.Atoi(args[1])
	if err != nil {
		log.Fatal().Err(err).Str("arg", args[1]).Msg("Invalid number")
	}
	return v
}

// printLedgerHead reports how far the ledger stored in this database has advanced.
func printLedgerHead(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	var height, exams, submissions uint64
	err = pool.QueryRow(ctx, `SELECT height, exam_seq, submit_seq FROM ledger_head WHERE id = 1`).
		Scan(&height, &exams, &submissions)
	if err != nil {
		return fmt.Errorf("read ledger_head: %w", err)
	}
	fmt.Printf("Block height: %d, Exams: %d, Submissions: %d\n", height, exams, submissions)
	return nil
}

func printUsage() {
	fmt.Println("Usage: migrate [flags] <command>")
	fmt.Println("Commands: up, down --all, steps <n>, version, force <version>, status")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
