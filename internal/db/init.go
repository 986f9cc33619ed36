package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/postfire/internal/constants"
	"github.com/RezaEskandarii/postfire/internal/lock"
)

const (
	baseDir = "migrations"
	schema  = "postfire_schema"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Init establishes a connection to a database and runs schema initialization and migration scripts.
// Only one instance runs the migrations at a time; the others wait on the advisory lock.
//
// The function performs the following steps:
//  1. Opens a database connection using the given URL.
//  2. Acquires a distributed lock to prevent concurrent migrations.
//  3. Pings the database to verify the connection.
//  4. Creates the required schema if it does not exist.
//  5. Executes the embedded SQL scripts in file name order.
func Init(ctx context.Context, postgresURL string, distributedLock lock.DistributedLockManager, log zerolog.Logger) error {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	migrationLock := constants.MigrationLock

	if err = distributedLock.Acquire(ctx, migrationLock); err != nil {
		return err
	}
	defer distributedLock.Release(context.Background(), migrationLock)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		return err
	}

	return Migrate(ctx, db, log)
}

// Migrate applies the embedded scripts on an open connection. Every script is idempotent.
func Migrate(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return err
	}

	scripts, err := readSQLScripts()
	if err != nil {
		return err
	}
	for _, script := range scripts {
		log.Debug().Str("script", script.name).Msg("applying migration")
		if _, err := db.ExecContext(ctx, script.body); err != nil {
			return fmt.Errorf("migration %s: %w", script.name, err)
		}
	}
	log.Info().Int("scripts", len(scripts)).Msg("database schema is up to date")
	return nil
}

type sqlScript struct {
	name string
	body string
}

func readSQLScripts() ([]sqlScript, error) {
	entries, err := migrations.ReadDir(baseDir)
	if err != nil {
		return nil, err
	}

	var scripts []sqlScript
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		content, err := migrations.ReadFile(path.Join(baseDir, entry.Name()))
		if err != nil {
			return nil, err
		}

		scripts = append(scripts, sqlScript{name: entry.Name(), body: string(content)})
	}

	return scripts, nil
}
