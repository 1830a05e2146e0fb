package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caseflow-systems/caseflow-import/internal/schema"
)

// PostgresStore implements Store on a pgx connection pool. Identifiers are
// validated against the schema registry before being interpolated, so only
// registry tables and columns can ever reach SQL text.
type PostgresStore struct {
	pool *pgxpool.Pool
	reg  *schema.Registry
}

func NewPostgresStore(ctx context.Context, connString string, reg *schema.Registry) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, reg: reg}, nil
}

// RunMigrations applies the file-based migrations to the database.
func RunMigrations(connString, dir string) error {
	m, err := migrate.New("file://"+dir, connString)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Pool exposes the underlying connection pool so the config store can share
// it instead of opening a second one.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// WithinTx runs fn inside one pgx transaction. The deferred rollback is a
// no-op after a successful commit.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer pgtx.Rollback(ctx)

	if err := fn(&postgresTx{tx: pgtx, reg: s.reg}); err != nil {
		return err
	}

	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountRows(ctx context.Context, table string) (int, error) {
	if _, ok := s.reg.TableSchema(table); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	var count int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

func (s *PostgresStore) ListCaseExports(ctx context.Context, filter ExportFilter) ([]CaseExportRow, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	query := `
		SELECT
			COALESCE(c.case_number, ''), COALESCE(c.lawyer_case_id, ''),
			COALESCE(c.title, ''), COALESCE(c.status, ''),
			COALESCE(c.opened_at, ''),
			btrim(COALESCE(ct.first_name, '') || ' ' || COALESCE(ct.last_name, '')),
			COALESCE(ct.email, ''), COALESCE(ct.phone, ''),
			COALESCE(cc.role, '')
	`
	if filter.IncludeFinancials {
		query += `,
			COALESCE(f.financial_type, ''), COALESCE(f.amount::text, ''),
			COALESCE(f.currency, '')`
	}
	query += `
		FROM cases c
		LEFT JOIN case_contacts cc ON cc.case_id = c.id
		LEFT JOIN contacts ct ON ct.id = cc.contact_id`
	if filter.IncludeFinancials {
		query += `
		LEFT JOIN financials f ON f.case_id = c.id`
	}

	var conds []string
	var args []any
	if filter.From != "" {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("c.opened_at >= $%d", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("c.opened_at <= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY c.created_at, c.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query case exports: %w", err)
	}
	defer rows.Close()

	var out []CaseExportRow
	for rows.Next() {
		var r CaseExportRow
		dest := []any{
			&r.CaseNumber, &r.LawyerCaseID, &r.Title, &r.Status, &r.OpenedAt,
			&r.ContactName, &r.ContactEmail, &r.ContactPhone, &r.ContactRole,
		}
		if filter.IncludeFinancials {
			dest = append(dest, &r.FinancialType, &r.Amount, &r.Currency)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type postgresTx struct {
	tx  pgx.Tx
	reg *schema.Registry
}

func (t *postgresTx) Insert(ctx context.Context, table string, values map[string]any) (string, error) {
	cols, args, err := t.checkColumns(table, values)
	if err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}

	placeholders := make([]string, 0, len(cols)+1)
	insertCols := append([]string{"id"}, cols...)
	insertArgs := append([]any{id.String()}, args...)
	for i := range insertArgs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s, created_at) VALUES (%s, NOW())",
		table, strings.Join(insertCols, ", "), strings.Join(placeholders, ", "),
	)
	if _, err := t.tx.Exec(ctx, query, insertArgs...); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return id.String(), nil
}

func (t *postgresTx) Update(ctx context.Context, table, id string, values map[string]any) error {
	cols, args, err := t.checkColumns(table, values)
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(cols))
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
	}
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d",
		table, strings.Join(sets, ", "), len(args),
	)
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) FindByExternalID(ctx context.Context, table, externalID, source string) (string, error) {
	if _, ok := t.reg.TableSchema(table); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	query := fmt.Sprintf(
		"SELECT id FROM %s WHERE external_id = $1 AND source = $2 LIMIT 1", table,
	)
	var id string
	err := t.tx.QueryRow(ctx, query, externalID, source).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up external id in %s: %w", table, err)
	}
	return id, nil
}

// checkColumns validates every column against the registry and returns the
// columns in deterministic order with their values.
func (t *postgresTx) checkColumns(table string, values map[string]any) ([]string, []any, error) {
	if _, ok := t.reg.TableSchema(table); !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	cols := make([]string, 0, len(values))
	for col := range values {
		if !t.reg.HasField(table, col) {
			return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		args = append(args, values[col])
	}
	return cols, args, nil
}
