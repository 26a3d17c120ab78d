// Package relational binds resources to SQL tables. It introspects primary
// keys (PostgreSQL through information_schema, SQLite through PRAGMA
// table_info) and ships a provider and a processor reading and writing
// rows through database/sql.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lib/pq"

	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/persistence"
)

// BackendName is the persistence backend name of this package
const BackendName = "relational"

// Dialect selects the SQL flavour
type Dialect string

const (
	// Postgres is PostgreSQL through pgx or lib/pq
	Postgres Dialect = "postgres"
	// SQLite is SQLite through go-sqlite3
	SQLite Dialect = "sqlite"
)

// Placeholder returns the n-th (1-based) bind parameter
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Column is one primary key column
type Column struct {
	Name string
	// Auto is set when the database generates values (serial, identity,
	// uuid defaults, SQLite rowid aliases)
	Auto bool
}

// Introspector reads table metadata from a database
type Introspector struct {
	db      *sql.DB
	dialect Dialect
	schema  string
	decls   persistence.Declarations

	mu     sync.RWMutex
	tables map[metadata.ResourceClass]string

	keys sync.Map // table -> []Column
}

// Option configures an Introspector
type Option func(*Introspector)

// WithSchema sets the PostgreSQL schema (default "public")
func WithSchema(schema string) Option {
	return func(i *Introspector) {
		if schema != "" {
			i.schema = schema
		}
	}
}

// WithDeclarations binds classes declaring the relational backend
func WithDeclarations(decls persistence.Declarations) Option {
	return func(i *Introspector) {
		i.decls = decls
	}
}

// NewIntrospector creates an introspector over db
func NewIntrospector(db *sql.DB, dialect Dialect, opts ...Option) *Introspector {
	i := &Introspector{
		db:      db,
		dialect: dialect,
		schema:  "public",
		tables:  make(map[metadata.ResourceClass]string),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// DB returns the database handle
func (i *Introspector) DB() *sql.DB {
	return i.db
}

// Dialect returns the SQL flavour
func (i *Introspector) Dialect() Dialect {
	return i.dialect
}

// QualifiedTable quotes table for use in a query. PostgreSQL tables are
// qualified with the schema their keys are introspected from.
func (i *Introspector) QualifiedTable(table string) string {
	if i.dialect == Postgres {
		return pq.QuoteIdentifier(i.schema) + "." + pq.QuoteIdentifier(table)
	}
	return pq.QuoteIdentifier(table)
}

// Map binds class to table explicitly
func (i *Introspector) Map(class metadata.ResourceClass, table string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tables[class] = table
}

// Name implements persistence.Introspector
func (i *Introspector) Name() string {
	return BackendName
}

// ManagerFor implements persistence.Introspector. Explicit mappings win
// over declarations; a declaration without a target uses the snake_case
// plural of the class name.
func (i *Introspector) ManagerFor(_ context.Context, class metadata.ResourceClass) (persistence.Handle, bool, error) {
	i.mu.RLock()
	table, ok := i.tables[class]
	i.mu.RUnlock()
	if ok {
		return persistence.Handle{Backend: BackendName, Class: class, Target: table}, true, nil
	}

	opts, ok := persistence.Declared(i.decls, class, BackendName)
	if !ok {
		return persistence.Handle{}, false, nil
	}
	if opts.Target == "" {
		opts.Target = inflect.ToSnakeCase(inflect.Pluralize(class.LocalName()))
	}
	return persistence.Handle{Backend: BackendName, Class: class, Target: opts.Target, Options: opts.Options}, true, nil
}

// IdentifierFields implements persistence.Introspector
func (i *Introspector) IdentifierFields(ctx context.Context, h persistence.Handle) ([]string, error) {
	cols, err := i.PrimaryKey(ctx, h.Target)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for n, c := range cols {
		names[n] = c.Name
	}
	return names, nil
}

// IsIdentifierAutoGenerated implements persistence.Introspector
func (i *Introspector) IsIdentifierAutoGenerated(ctx context.Context, h persistence.Handle, field string) (bool, error) {
	cols, err := i.PrimaryKey(ctx, h.Target)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if c.Name == field {
			return c.Auto, nil
		}
	}
	return false, nil
}

// PrimaryKey returns the primary key columns of table in key order. Results
// are cached for the life of the introspector; a table without primary key
// has no columns.
func (i *Introspector) PrimaryKey(ctx context.Context, table string) ([]Column, error) {
	if cached, ok := i.keys.Load(table); ok {
		return cached.([]Column), nil
	}

	var (
		cols []Column
		err  error
	)
	switch i.dialect {
	case Postgres:
		cols, err = i.postgresPrimaryKey(ctx, table)
	case SQLite:
		cols, err = i.sqlitePrimaryKey(ctx, table)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", i.dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", table, ConvertDBError(err))
	}

	i.keys.Store(table, cols)
	return cols, nil
}

const postgresPrimaryKeyQuery = `
	SELECT
		kcu.column_name,
		COALESCE(c.column_default, '') AS column_default,
		c.is_identity
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON tc.constraint_name = kcu.constraint_name
		AND tc.table_schema = kcu.table_schema
		AND tc.table_name = kcu.table_name
	JOIN information_schema.columns c
		ON c.table_schema = kcu.table_schema
		AND c.table_name = kcu.table_name
		AND c.column_name = kcu.column_name
	WHERE tc.constraint_type = 'PRIMARY KEY'
		AND tc.table_schema = $1
		AND tc.table_name = $2
	ORDER BY kcu.ordinal_position
`

func (i *Introspector) postgresPrimaryKey(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.db.QueryContext(ctx, postgresPrimaryKeyQuery, i.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, def, identity string
		if err := rows.Scan(&name, &def, &identity); err != nil {
			return nil, err
		}
		cols = append(cols, Column{Name: name, Auto: identity == "YES" || generatedDefault(def)})
	}
	return cols, rows.Err()
}

func generatedDefault(def string) bool {
	def = strings.ToLower(def)
	return strings.HasPrefix(def, "nextval(") ||
		strings.Contains(def, "gen_random_uuid(") ||
		strings.Contains(def, "uuid_generate_")
}

func (i *Introspector) sqlitePrimaryKey(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.db.QueryContext(ctx, "PRAGMA table_info("+pq.QuoteIdentifier(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type keyColumn struct {
		Column
		typ string
		pos int
	}
	var keys []keyColumn
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			def     sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &def, &pk); err != nil {
			return nil, err
		}
		if pk > 0 {
			keys = append(keys, keyColumn{Column: Column{Name: name}, typ: typ, pos: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(keys, func(a, b int) bool { return keys[a].pos < keys[b].pos })

	cols := make([]Column, len(keys))
	for n, k := range keys {
		cols[n] = k.Column
	}
	// A lone INTEGER PRIMARY KEY aliases the rowid
	if len(keys) == 1 && strings.EqualFold(keys[0].typ, "INTEGER") {
		cols[0].Auto = true
	}
	return cols, nil
}
