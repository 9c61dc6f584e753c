// Package repomanager vends dialect-specific letter repositories and runs the
// matching goose migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sealpost/internal/dbx"
	"github.com/dmitrijs2005/sealpost/internal/ledger/migrations"
	"github.com/dmitrijs2005/sealpost/internal/ledger/repositories/letters"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Letters(db dbx.DBTX) letters.Repository
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Letters(db dbx.DBTX) letters.Repository {
	return letters.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Postgres)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, "postgres")
}

type SQLiteRepositoryManager struct{}

func (m *SQLiteRepositoryManager) Letters(db dbx.DBTX) letters.Repository {
	return letters.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.SQLite)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, "sqlite")
}

// Open connects to the ledger database. driver is "pgx" or "sqlite".
func Open(driver, dsn string) (*sql.DB, RepositoryManager, error) {
	var m RepositoryManager
	switch driver {
	case "pgx", "postgres":
		driver, m = "pgx", &PostgresRepositoryManager{}
	case "sqlite", "sqlite3":
		driver, m = "sqlite", &SQLiteRepositoryManager{}
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if driver == "sqlite" {
		// each :memory: connection would be a separate database
		db.SetMaxOpenConns(1)
	}
	return db, m, nil
}
