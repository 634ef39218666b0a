package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"khoroch/internal/core"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverName is the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// placeholder returns the n-th (1-based) bind parameter for the dialect.
func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// SQLStore keeps expenses in a single SQL table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectSQLite, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{db: db, dialect: DialectSQLite, now: time.Now}, nil
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*SQLStore, error) {
	db, err := sql.Open(DialectPostgres.driverName(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectPostgres, databaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{db: db, dialect: DialectPostgres, now: time.Now}, nil
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Select implements Reader.
func (s *SQLStore) Select(ctx context.Context, q Query) ([]core.Expense, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT id, name, category, date, amount_cents, scope FROM expenses")
	args := make([]any, 0, len(q.Filters))
	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		b.WriteString(string(f.Field) + " = " + s.dialect.placeholder(len(args)))
	}
	if q.Order != nil {
		b.WriteString(" ORDER BY " + string(q.Order.Field))
		if q.Order.Desc {
			b.WriteString(" DESC")
		}
		b.WriteString(", created_at ASC")
	} else {
		b.WriteString(" ORDER BY created_at ASC")
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		var e core.Expense
		var scope string
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.Date, &e.Amount.Cents, &scope); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Scope = core.Scope(scope).Normalize()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// Insert implements Writer. Rows are written in one transaction.
func (s *SQLStore) Insert(ctx context.Context, rows ...core.Expense) ([]core.Expense, error) {
	if len(rows) == 0 {
		return []core.Expense{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	p := s.dialect.placeholder
	stmt := fmt.Sprintf(
		"INSERT INTO expenses (id, name, category, date, amount_cents, scope, created_at) VALUES (%s, %s, %s, %s, %s, %s, %s)",
		p(1), p(2), p(3), p(4), p(5), p(6), p(7),
	)

	out := make([]core.Expense, 0, len(rows))
	for _, e := range rows {
		e.ID = uuid.NewString()
		if _, err := tx.ExecContext(ctx, stmt,
			e.ID, e.Name, e.Category, e.Date, e.Amount.Cents, string(e.Scope), s.now().UnixNano(),
		); err != nil {
			return nil, fmt.Errorf("insert expense: %w", err)
		}
		out = append(out, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}

	slog.DebugContext(ctx, "Expenses inserted", "count", len(out), "dialect", s.dialect)
	return out, nil
}

// Update implements Writer. Every field but the id is replaced.
func (s *SQLStore) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	p := s.dialect.placeholder
	stmt := fmt.Sprintf(
		"UPDATE expenses SET name = %s, category = %s, date = %s, amount_cents = %s, scope = %s WHERE id = %s",
		p(1), p(2), p(3), p(4), p(5), p(6),
	)
	res, err := s.db.ExecContext(ctx, stmt, e.Name, e.Category, e.Date, e.Amount.Cents, string(e.Scope), e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if err := expectOne(res); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// Delete implements Writer.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = "+s.dialect.placeholder(1), id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err means the expense does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
