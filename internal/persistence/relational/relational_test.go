package relational

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/persistence"
	"github.com/conduit-lang/apimeta/internal/registry"
	"github.com/conduit-lang/apimeta/internal/state"
)

const bookClass metadata.ResourceClass = "example.Book"

func setupSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT NOT NULL, author_id INTEGER);
		CREATE TABLE editions (tenant_id TEXT, local_id INTEGER, label TEXT, PRIMARY KEY (tenant_id, local_id));
		CREATE TABLE notes (body TEXT);
		CREATE TABLE tags (id INTEGER PRIMARY KEY, label TEXT NOT NULL DEFAULT 'untitled');
	`)
	require.NoError(t, err)
	return db
}

func itemOp(method string) metadata.Operation {
	return metadata.Operation{
		Name:         "book_" + method,
		Class:        bookClass,
		Kind:         metadata.KindItem,
		Method:       method,
		URIVariables: []metadata.URIVariable{{Parameter: "id", FromClass: bookClass, Identifiers: []string{"id"}}},
		Persistence:  metadata.PersistenceOptions{Backend: BackendName},
	}
}

func collectionOp(method string) metadata.Operation {
	return metadata.Operation{
		Name:        "books_" + method,
		Class:       bookClass,
		Kind:        metadata.KindCollection,
		Method:      method,
		Persistence: metadata.PersistenceOptions{Backend: BackendName},
	}
}

func TestSQLitePrimaryKey(t *testing.T) {
	intro := NewIntrospector(setupSQLite(t), SQLite)
	ctx := context.Background()

	cols, err := intro.PrimaryKey(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, []Column{{Name: "id", Auto: true}}, cols)

	cols, err = intro.PrimaryKey(ctx, "editions")
	require.NoError(t, err)
	assert.Equal(t, []Column{{Name: "tenant_id"}, {Name: "local_id"}}, cols)

	cols, err = intro.PrimaryKey(ctx, "notes")
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestPostgresPrimaryKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("information_schema.table_constraints").
		WithArgs("library", "books").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_default", "is_identity"}).
			AddRow("id", "nextval('books_id_seq'::regclass)", "NO"))
	mock.ExpectQuery("information_schema.table_constraints").
		WithArgs("library", "tokens").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_default", "is_identity"}).
			AddRow("uuid", "gen_random_uuid()", "NO").
			AddRow("kind", "", "NO"))

	intro := NewIntrospector(db, Postgres, WithSchema("library"))
	ctx := context.Background()

	cols, err := intro.PrimaryKey(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, []Column{{Name: "id", Auto: true}}, cols)

	// Cached: no second query for books
	_, err = intro.PrimaryKey(ctx, "books")
	require.NoError(t, err)

	cols, err = intro.PrimaryKey(ctx, "tokens")
	require.NoError(t, err)
	assert.Equal(t, []Column{{Name: "uuid", Auto: true}, {Name: "kind"}}, cols)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospector_ManagerFor(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Declare(registry.Declaration{
		Class: "example.BookReview",
		Resources: []metadata.APIResource{{
			Class:       "example.BookReview",
			Persistence: metadata.PersistenceOptions{Backend: BackendName},
		}},
	}))
	require.NoError(t, reg.Declare(registry.Declaration{
		Class: "example.Shelf",
		Resources: []metadata.APIResource{{
			Class:       "example.Shelf",
			Persistence: metadata.PersistenceOptions{Backend: BackendName, Target: "library_shelves"},
		}},
	}))

	intro := NewIntrospector(nil, SQLite, WithDeclarations(reg))
	intro.Map(bookClass, "books")
	ctx := context.Background()

	h, ok, err := intro.ManagerFor(ctx, bookClass)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "books", h.Target)

	h, ok, err = intro.ManagerFor(ctx, "example.BookReview")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "book_reviews", h.Target)

	h, ok, err = intro.ManagerFor(ctx, "example.Shelf")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "library_shelves", h.Target)

	_, ok, err = intro.ManagerFor(ctx, "example.Unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	var _ persistence.Introspector = intro
}

func TestStore_SQLiteRoundTrip(t *testing.T) {
	intro := NewIntrospector(setupSQLite(t), SQLite)
	intro.Map(bookClass, "books")
	store := NewStore(intro, nil)
	ctx := context.Background()
	sc := state.Context{}

	assert.True(t, store.Supports(ctx, collectionOp("POST"), sc))

	created, err := store.Process(ctx, map[string]any{"id": 0, "title": "Dune", "authorId": 3}, collectionOp("POST"), nil, sc)
	require.NoError(t, err)
	row := created.(Row)
	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "Dune", row["title"])
	assert.Equal(t, int64(3), row["author_id"])

	_, err = store.Process(ctx, map[string]any{"title": "Emma", "authorId": 4}, collectionOp("POST"), nil, sc)
	require.NoError(t, err)

	found, err := store.Provide(ctx, itemOp("GET"), map[string]any{"id": int64(1)}, sc)
	require.NoError(t, err)
	assert.Equal(t, "Dune", found.(Row)["title"])

	missing, err := store.Provide(ctx, itemOp("GET"), map[string]any{"id": int64(99)}, sc)
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := store.Provide(ctx, collectionOp("GET"), nil, sc)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Emma", all.([]Row)[1]["title"])

	byAuthor := collectionOp("GET")
	byAuthor.URIVariables = []metadata.URIVariable{{
		Parameter:   "authorId",
		FromClass:   "example.Author",
		Identifiers: []string{"id"},
		ToProperty:  "author",
	}}
	some, err := store.Provide(ctx, byAuthor, map[string]any{"authorId": int64(4)}, sc)
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "Emma", some.([]Row)[0]["title"])

	updated, err := store.Process(ctx, map[string]any{"title": "Dune Messiah"}, itemOp("PATCH"), map[string]any{"id": int64(1)}, sc)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.(Row)["title"])

	_, err = store.Process(ctx, nil, itemOp("DELETE"), map[string]any{"id": int64(1)}, sc)
	require.NoError(t, err)

	_, err = store.Process(ctx, nil, itemOp("DELETE"), map[string]any{"id": int64(1)}, sc)
	assert.True(t, IsNotFound(err))
}

func TestStore_CompositeKey(t *testing.T) {
	intro := NewIntrospector(setupSQLite(t), SQLite)
	intro.Map("example.Edition", "editions")
	store := NewStore(intro, nil)
	ctx := context.Background()

	post := metadata.Operation{
		Class:       "example.Edition",
		Kind:        metadata.KindCollection,
		Method:      "POST",
		Persistence: metadata.PersistenceOptions{Backend: BackendName},
	}
	type edition struct {
		TenantID string `json:"tenantId"`
		LocalID  int    `json:"localId"`
		Label    string `json:"label"`
	}
	_, err := store.Process(ctx, &edition{TenantID: "acme", LocalID: 2, Label: "first"}, post, nil, state.Context{})
	require.NoError(t, err)

	get := metadata.Operation{
		Class:  "example.Edition",
		Kind:   metadata.KindItem,
		Method: "GET",
		URIVariables: []metadata.URIVariable{{
			Parameter:   "id",
			FromClass:   "example.Edition",
			Identifiers: []string{"tenantId", "localId"},
			Composite:   true,
		}},
		Persistence: metadata.PersistenceOptions{Backend: BackendName},
	}
	found, err := store.Provide(ctx, get, map[string]any{"id": map[string]any{"tenantId": "acme", "localId": 2}}, state.Context{})
	require.NoError(t, err)
	assert.Equal(t, "first", found.(Row)["label"])

	_, err = store.Provide(ctx, get, map[string]any{"id": "acme-2"}, state.Context{})
	assert.True(t, metadata.IsInvalidURIVariable(err))
}

func TestStore_Supports(t *testing.T) {
	intro := NewIntrospector(nil, SQLite)
	intro.Map(bookClass, "books")
	store := NewStore(intro, nil)
	ctx := context.Background()

	assert.True(t, store.Supports(ctx, itemOp("GET"), state.Context{}))

	viaProvider := itemOp("GET")
	viaProvider.Persistence = metadata.PersistenceOptions{}
	viaProvider.Provider = "relational.provider"
	assert.True(t, store.Supports(ctx, viaProvider, state.Context{}))

	other := itemOp("GET")
	other.Persistence.Backend = "document"
	assert.False(t, store.Supports(ctx, other, state.Context{}))

	unmapped := itemOp("GET")
	unmapped.Class = "example.Unknown"
	assert.False(t, store.Supports(ctx, unmapped, state.Context{}))
}

func TestStore_PostgresInsertAndMissingVariable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("information_schema.table_constraints").
		WithArgs("public", "books").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_default", "is_identity"}).
			AddRow("id", "", "YES"))
	mock.ExpectQuery(`INSERT INTO "public"."books" \("title"\) VALUES \(\$1\) RETURNING \*`).
		WithArgs("Dune").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(7, "Dune"))
	mock.ExpectQuery(`INSERT INTO "public"."books" \("title"\) VALUES \(\$1\) RETURNING \*`).
		WithArgs("Dune").
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (title)=(Dune) already exists."})

	intro := NewIntrospector(db, Postgres)
	intro.Map(bookClass, "books")
	store := NewStore(intro, nil)
	ctx := context.Background()

	created, err := store.Process(ctx, map[string]any{"id": 0, "title": "Dune"}, collectionOp("POST"), nil, state.Context{})
	require.NoError(t, err)
	assert.Equal(t, "Dune", created.(Row)["title"])

	_, err = store.Process(ctx, map[string]any{"title": "Dune"}, collectionOp("POST"), nil, state.Context{})
	assert.True(t, IsUniqueViolation(err))

	_, err = store.Provide(ctx, itemOp("GET"), map[string]any{}, state.Context{})
	assert.True(t, metadata.IsInvalidURIVariable(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PostgresSchemaQualifiedTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("information_schema.table_constraints").
		WithArgs("app", "books").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_default", "is_identity"}).
			AddRow("id", "", "YES"))
	mock.ExpectQuery(`INSERT INTO "app"."books" DEFAULT VALUES RETURNING \*`).
		WithoutArgs().
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(8, "untitled"))
	mock.ExpectQuery(`SELECT \* FROM "app"."books" WHERE "id" = \$1 ORDER BY "id" LIMIT 1`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(8, "untitled"))
	mock.ExpectQuery(`UPDATE "app"."books" SET "title" = \$1 WHERE "id" = \$2 RETURNING \*`).
		WithArgs("Dune", int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(8, "Dune"))
	mock.ExpectExec(`DELETE FROM "app"."books" WHERE "id" = \$1`).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	intro := NewIntrospector(db, Postgres, WithSchema("app"))
	intro.Map(bookClass, "books")
	assert.Equal(t, `"app"."books"`, intro.QualifiedTable("books"))

	store := NewStore(intro, nil)
	ctx := context.Background()
	id := map[string]any{"id": int64(8)}

	created, err := store.Process(ctx, map[string]any{"id": 0}, collectionOp("POST"), nil, state.Context{})
	require.NoError(t, err)
	assert.Equal(t, "untitled", created.(Row)["title"])

	_, err = store.Provide(ctx, itemOp("GET"), id, state.Context{})
	require.NoError(t, err)

	_, err = store.Process(ctx, map[string]any{"title": "Dune"}, itemOp("PATCH"), id, state.Context{})
	require.NoError(t, err)

	_, err = store.Process(ctx, nil, itemOp("DELETE"), id, state.Context{})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SQLiteInsertDefaultValues(t *testing.T) {
	intro := NewIntrospector(setupSQLite(t), SQLite)
	intro.Map("example.Tag", "tags")
	assert.Equal(t, `"tags"`, intro.QualifiedTable("tags"))
	store := NewStore(intro, nil)

	post := metadata.Operation{
		Class:       "example.Tag",
		Kind:        metadata.KindCollection,
		Method:      "POST",
		Persistence: metadata.PersistenceOptions{Backend: BackendName},
	}
	created, err := store.Process(context.Background(), map[string]any{"id": 0}, post, nil, state.Context{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.(Row)["id"])
	assert.Equal(t, "untitled", created.(Row)["label"])
}

func TestConvertDBError(t *testing.T) {
	assert.Nil(t, ConvertDBError(nil))
	assert.ErrorIs(t, ConvertDBError(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, ConvertDBError(&pgconn.PgError{Code: "23503"}), ErrForeignKeyViolation)
	assert.ErrorIs(t, ConvertDBError(&pgconn.PgError{Code: "23514"}), ErrCheckViolation)
	assert.ErrorIs(t, ConvertDBError(&pq.Error{Code: "23505"}), ErrUniqueViolation)

	err := ConvertDBError(&pq.Error{Code: "23502", Column: "title"})
	assert.ErrorIs(t, err, ErrNotNullViolation)
	assert.Contains(t, err.Error(), "title")

	plain := errors.New("connection reset")
	assert.Equal(t, plain, ConvertDBError(plain))
}
