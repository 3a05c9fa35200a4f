package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jet/jet/v2/sqlite"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/storage"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// timestampFormat matches CURRENT_TIMESTAMP so updated rows sort with inserted ones
const timestampFormat = "2006-01-02 15:04:05"

type SQLite struct {
	db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the sqlite database at filePath. ":memory:" gives a private in-memory database.
// The pool holds a single connection so writes serialize and in-memory databases survive between calls.
func New(ctx context.Context, filePath string) (*SQLite, error) {
	dsn := filePath
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=1"
	} else {
		dsn += "?_foreign_keys=1"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &SQLite{
		db: db,
	}, nil
}

// RunMigrations brings the schema up to date
func (s *SQLite) RunMigrations(ctx context.Context) error {
	log := logger.FromCtx(ctx)
	if err := runMigrations(s.db); err != nil {
		return err
	}

	version, dirty, err := s.GetMigrationVersion()
	if err != nil {
		return err
	}
	log.Debugw("database migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func now() sqlite.TimestampExpression {
	return sqlite.TimestampExp(sqlite.String(time.Now().UTC().Format(timestampFormat)))
}

func (s *SQLite) handleInsert(ctx context.Context, stmt sqlite.InsertStatement) (sql.Result, error) {
	return s.handleStatement(ctx, stmt)
}

func (s *SQLite) handleUpdate(ctx context.Context, stmt sqlite.UpdateStatement) (sql.Result, error) {
	return s.handleStatement(ctx, stmt)
}

func (s *SQLite) handleDelete(ctx context.Context, stmt sqlite.DeleteStatement) (sql.Result, error) {
	return s.handleStatement(ctx, stmt)
}

// handleStatement runs a single statement. Constraint violations are reported as storage.ErrConflict.
func (s *SQLite) handleStatement(ctx context.Context, stmt sqlite.Statement) (sql.Result, error) {
	log := logger.FromCtx(ctx)

	result, err := stmt.ExecContext(ctx, s.db)
	if err != nil {
		log.Debugw("failed to execute statement", zap.String("query", stmt.DebugSql()), zap.Error(err))
		return result, wrapConstraint(err)
	}

	return result, nil
}

func wrapConstraint(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	}
	return err
}

// and combines optional filters into one expression
func and(where []sqlite.BoolExpression) sqlite.BoolExpression {
	switch len(where) {
	case 0:
		return nil
	case 1:
		return where[0]
	default:
		return sqlite.AND(where...)
	}
}
