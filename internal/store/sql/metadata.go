package sql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/qwc/lisenssit/internal/database"
	"github.com/qwc/lisenssit/internal/store"
)

// MetadataStore inspects the schema of the backing database. Each dialect
// has its own catalog, so the queries switch on the dialect detected at
// connection time.
type MetadataStore struct {
	db      *sqlx.DB
	dialect database.Dialect
}

func NewMetadataStore(db *sqlx.DB, dialect database.Dialect) *MetadataStore {
	return &MetadataStore{db: db, dialect: dialect}
}

// normalizePattern maps the empty pattern to "match everything".
func normalizePattern(pattern string) string {
	if pattern == "" {
		return "%"
	}
	return pattern
}

func (s *MetadataStore) ListTables(ctx context.Context, pattern string) ([]store.Table, error) {
	pattern = normalizePattern(pattern)

	var query string
	var args []interface{}
	switch s.dialect {
	case database.DialectSQLite:
		query = `SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' AND name LIKE ? ORDER BY name`
		args = []interface{}{pattern}
	case database.DialectPostgres:
		query = `SELECT table_name AS name, table_type AS type FROM information_schema.tables WHERE table_schema = current_schema() AND table_name LIKE ? ORDER BY table_name`
		args = []interface{}{pattern}
	case database.DialectMySQL:
		query = `SELECT table_name AS name, table_type AS type FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name LIKE ? ORDER BY table_name`
		args = []interface{}{pattern}
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", s.dialect)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	tables := []store.Table{}
	for rows.Next() {
		var t store.Table
		if err := rows.Scan(&t.Name, &t.Type); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}
	return tables, nil
}

func (s *MetadataStore) ListColumns(ctx context.Context, tablePattern, columnPattern string) ([]store.Column, error) {
	tablePattern = normalizePattern(tablePattern)
	columnPattern = normalizePattern(columnPattern)

	if s.dialect == database.DialectSQLite {
		return s.listColumnsSQLite(ctx, tablePattern, columnPattern)
	}

	var query string
	switch s.dialect {
	case database.DialectPostgres:
		query = `SELECT table_name, column_name, data_type, ordinal_position, is_nullable
			FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name LIKE ? AND column_name LIKE ?
			ORDER BY table_name, ordinal_position`
	case database.DialectMySQL:
		query = `SELECT table_name, column_name, data_type, ordinal_position, is_nullable
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name LIKE ? AND column_name LIKE ?
			ORDER BY table_name, ordinal_position`
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", s.dialect)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), tablePattern, columnPattern)
	if err != nil {
		return nil, fmt.Errorf("listing columns: %w", err)
	}
	defer rows.Close()

	columns := []store.Column{}
	for rows.Next() {
		var c store.Column
		var nullable string
		if err := rows.Scan(&c.TableName, &c.Name, &c.DataType, &c.Position, &nullable); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		c.Nullable = nullable == "YES"
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}
	return columns, nil
}

// listColumnsSQLite walks matching tables and reads each one's table_info
// pragma, since SQLite has no information_schema.
func (s *MetadataStore) listColumnsSQLite(ctx context.Context, tablePattern, columnPattern string) ([]store.Column, error) {
	tables, err := s.ListTables(ctx, tablePattern)
	if err != nil {
		return nil, err
	}

	columns := []store.Column{}
	for _, t := range tables {
		rows, err := s.db.QueryxContext(ctx,
			fmt.Sprintf(`SELECT name, type, cid, "notnull" FROM pragma_table_info(%s) WHERE name LIKE ? ORDER BY cid`, quoteSQLiteString(t.Name)),
			columnPattern)
		if err != nil {
			return nil, fmt.Errorf("reading table info for %s: %w", t.Name, err)
		}

		for rows.Next() {
			var c store.Column
			var cid, notNull int
			if err := rows.Scan(&c.Name, &c.DataType, &cid, &notNull); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning table info row: %w", err)
			}
			c.TableName = t.Name
			c.Position = cid + 1
			c.Nullable = notNull == 0
			columns = append(columns, c)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterating table info: %w", err)
		}
		rows.Close()
	}
	return columns, nil
}

// quoteSQLiteString quotes a string literal for interpolation into a
// pragma call, where placeholders are not accepted for the table name.
func quoteSQLiteString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}

// ListProcedures returns the stored procedures matching the pattern. None of
// the supported backends are used with stored procedures, so the listing is
// an empty, non-nil slice on every dialect. The surface exists only so
// schema inspection tooling gets a uniform answer.
func (s *MetadataStore) ListProcedures(ctx context.Context, pattern string) ([]store.Procedure, error) {
	return []store.Procedure{}, nil
}
