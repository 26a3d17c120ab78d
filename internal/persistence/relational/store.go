package relational

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/conduit-lang/apimeta/internal/inflect"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
	"github.com/conduit-lang/apimeta/internal/state"
)

// Row is one table row keyed by column name
type Row map[string]any

// Store is a state provider and processor over the tables of an
// Introspector. Items are rows keyed by column name; writes accept rows,
// maps keyed by property name, and structs.
type Store struct {
	intro  *Introspector
	logger *zap.Logger
}

// NewStore creates a store
func NewStore(intro *Introspector, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{intro: intro, logger: logger}
}

// Supports implements state.Provider and state.Processor
func (s *Store) Supports(ctx context.Context, op metadata.Operation, _ state.Context) bool {
	if op.Persistence.Backend != BackendName &&
		op.Provider != BackendName+".provider" &&
		op.Processor != BackendName+".processor" {
		return false
	}
	_, ok, err := s.intro.ManagerFor(ctx, op.Class)
	return err == nil && ok
}

// Provide implements state.Provider. Item operations return a Row or nil,
// collections return []Row ordered by primary key.
func (s *Store) Provide(ctx context.Context, op metadata.Operation, uriVariables map[string]any, _ state.Context) (any, error) {
	table, keys, err := s.table(ctx, op.Class)
	if err != nil {
		return nil, err
	}

	where, args, err := s.conditions(op, uriVariables, 1)
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM " + s.intro.QualifiedTable(table) + where
	if len(keys) > 0 {
		query += " ORDER BY " + quoteAll(keys)
	}
	if !op.IsCollection() {
		query += " LIMIT 1"
	}

	s.logger.Debug("relational provide", zap.String("query", query))

	rows, err := s.intro.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, ConvertDBError(err)
	}

	if op.IsCollection() {
		return result, nil
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result[0], nil
}

// Process implements state.Processor
func (s *Store) Process(ctx context.Context, data any, op metadata.Operation, uriVariables map[string]any, _ state.Context) (any, error) {
	table, keys, err := s.table(ctx, op.Class)
	if err != nil {
		return nil, err
	}
	quoted := s.intro.QualifiedTable(table)

	if op.IsDelete() {
		where, args, err := s.conditions(op, uriVariables, 1)
		if err != nil {
			return nil, err
		}
		res, err := s.intro.DB().ExecContext(ctx, "DELETE FROM "+quoted+where, args...)
		if err != nil {
			return nil, ConvertDBError(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, ErrNotFound
		}
		return nil, nil
	}

	values, err := columnsOf(data)
	if err != nil {
		return nil, err
	}

	auto, err := s.autoColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	var query string
	var args []any
	if op.Method == http.MethodPost {
		cols := make([]string, 0, len(values))
		for _, col := range sortedKeys(values) {
			if auto[col] && isZero(values[col]) {
				continue
			}
			cols = append(cols, col)
			args = append(args, values[col])
		}
		if len(cols) == 0 {
			query = "INSERT INTO " + quoted + " DEFAULT VALUES RETURNING *"
		} else {
			placeholders := make([]string, len(cols))
			for n := range cols {
				placeholders[n] = s.intro.Dialect().Placeholder(n + 1)
			}
			query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
				quoted, quoteAll(cols), strings.Join(placeholders, ", "))
		}
	} else {
		var sets []string
		for _, col := range sortedKeys(values) {
			if slices.Contains(keys, col) {
				continue
			}
			args = append(args, values[col])
			sets = append(sets, pq.QuoteIdentifier(col)+" = "+s.intro.Dialect().Placeholder(len(args)))
		}
		if len(sets) == 0 {
			return nil, fmt.Errorf("nothing to update in %s", table)
		}
		where, whereArgs, err := s.conditions(op, uriVariables, len(args)+1)
		if err != nil {
			return nil, err
		}
		args = append(args, whereArgs...)
		query = "UPDATE " + quoted + " SET " + strings.Join(sets, ", ") + where + " RETURNING *"
	}

	s.logger.Debug("relational process", zap.String("query", query))

	rows, err := s.intro.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result[0], nil
}

func (s *Store) table(ctx context.Context, class metadata.ResourceClass) (string, []string, error) {
	h, ok, err := s.intro.ManagerFor(ctx, class)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, fmt.Errorf("resource %s is not bound to a table", class)
	}
	keys, err := s.intro.IdentifierFields(ctx, h)
	if err != nil {
		return "", nil, err
	}
	return h.Target, keys, nil
}

func (s *Store) autoColumns(ctx context.Context, table string) (map[string]bool, error) {
	cols, err := s.intro.PrimaryKey(ctx, table)
	if err != nil {
		return nil, err
	}
	auto := make(map[string]bool, len(cols))
	for _, c := range cols {
		auto[c.Name] = c.Auto
	}
	return auto, nil
}

// conditions builds the WHERE clause of the URI variables of op. Own
// identifiers map to their snake_case columns, relation variables to
// <relation>_<identifier> foreign key columns.
func (s *Store) conditions(op metadata.Operation, uriVariables map[string]any, first int) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(col string, value any) {
		args = append(args, value)
		clauses = append(clauses, pq.QuoteIdentifier(col)+" = "+s.intro.Dialect().Placeholder(first+len(args)-1))
	}

	for _, v := range op.URIVariables {
		value, ok := uriVariables[v.Parameter]
		if !ok {
			return "", nil, &metadata.InvalidURIVariableError{Parameter: v.Parameter, Err: fmt.Errorf("missing value")}
		}

		ids := v.Identifiers
		if len(ids) == 0 {
			ids = []string{"id"}
		}

		switch {
		case v.ToProperty != "":
			add(inflect.ToSnakeCase(v.ToProperty)+"_"+inflect.ToSnakeCase(ids[0]), value)
		case v.Composite:
			parts, ok := value.(map[string]any)
			if !ok {
				return "", nil, &metadata.InvalidURIVariableError{Parameter: v.Parameter, Value: fmt.Sprint(value), Err: fmt.Errorf("composite value expected")}
			}
			for _, id := range ids {
				add(inflect.ToSnakeCase(id), parts[id])
			}
		default:
			add(inflect.ToSnakeCase(ids[0]), value)
		}
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// columnsOf turns written data into column values
func columnsOf(data any) (map[string]any, error) {
	switch v := data.(type) {
	case Row:
		return snakeKeys(v), nil
	case map[string]any:
		return snakeKeys(v), nil
	case nil:
		return nil, fmt.Errorf("no data to write")
	}

	rv := reflect.ValueOf(data)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("no data to write")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot write %T as a row", data)
	}

	out := make(map[string]any)
	for _, f := range property.Fields(rv.Type()) {
		fv, err := rv.FieldByIndexErr(f.Index)
		if err != nil {
			continue
		}
		if f.Type.Kind() == reflect.Struct && f.Type.PkgPath() != "time" {
			continue
		}
		out[inflect.ToSnakeCase(f.Name)] = fv.Interface()
	}
	return out, nil
}

func snakeKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[inflect.ToSnakeCase(k)] = v
	}
	return out
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for n := range values {
			ptrs[n] = &values[n]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for n, col := range cols {
			if b, ok := values[n].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[n]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for n, name := range names {
		quoted[n] = pq.QuoteIdentifier(name)
	}
	return strings.Join(quoted, ", ")
}
