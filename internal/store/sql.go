package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/AngelCh415/campaign-dash/internal/utils"
)

// Dialect covers the SQL differences between the supported databases.
type Dialect struct {
	Name        string
	placeholder func(n int) string
}

var (
	DialectSQLite   = Dialect{Name: "sqlite", placeholder: func(int) string { return "?" }}
	DialectPostgres = Dialect{Name: "postgres", placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
)

// bind rewrites the ? markers in q for the dialect.
func (d Dialect) bind(q string) string {
	if d.placeholder == nil {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLSheets stores each sheet row as a JSON array, one table row per grid row.
type SQLSheets struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL connects, waits for the database to answer and creates the schema.
func OpenSQL(ctx context.Context, driver, dsn string, d Dialect) (*SQLSheets, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: empty STORE_DSN", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if d.Name == DialectSQLite.Name {
		// every :memory: connection is its own database
		db.SetMaxOpenConns(1)
	}
	ping := utils.NewBackoff(200*time.Millisecond, 4)
	if err := ping.Do(ctx, func(int) error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}
	s, err := NewSQLSheets(ctx, db, d)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLSheets wraps an open database and runs the migration.
func NewSQLSheets(ctx context.Context, db *sql.DB, d Dialect) (*SQLSheets, error) {
	s := &SQLSheets{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", d.Name, err)
	}
	return s, nil
}

func (s *SQLSheets) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS sheet_rows (
		sheet   TEXT    NOT NULL,
		row_idx INTEGER NOT NULL,
		payload TEXT    NOT NULL,
		PRIMARY KEY (sheet, row_idx)
	)`)
	return err
}

func (s *SQLSheets) Read(ctx context.Context, sheet string) ([][]any, error) {
	rows, err := s.db.QueryContext(ctx,
		s.dialect.bind(`SELECT payload FROM sheet_rows WHERE sheet = ? ORDER BY row_idx`), sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	var grid [][]any
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		var row []any
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			return nil, fmt.Errorf("read sheet %q: decode row: %w", sheet, err)
		}
		grid = append(grid, row)
	}
	return grid, rows.Err()
}

// Replace drops the sheet's rows and writes grid in one transaction.
func (s *SQLSheets) Replace(ctx context.Context, sheet string, grid [][]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace sheet %q: %w", sheet, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.dialect.bind(`DELETE FROM sheet_rows WHERE sheet = ?`), sheet); err != nil {
		return fmt.Errorf("replace sheet %q: clear: %w", sheet, err)
	}
	insert := s.dialect.bind(`INSERT INTO sheet_rows (sheet, row_idx, payload) VALUES (?, ?, ?)`)
	for i, row := range grid {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("replace sheet %q: encode row %d: %w", sheet, i, err)
		}
		if _, err := tx.ExecContext(ctx, insert, sheet, i, string(payload)); err != nil {
			return fmt.Errorf("replace sheet %q: row %d: %w", sheet, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace sheet %q: commit: %w", sheet, err)
	}
	return nil
}

func (s *SQLSheets) Close() error { return s.db.Close() }
