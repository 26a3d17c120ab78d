package registry

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

type Book struct {
	ID    int
	Title string
}

type Author struct {
	Name string
}

func TestRegistry_Register(t *testing.T) {
	reg := New()

	class, err := reg.Register(&Book{})
	require.NoError(t, err)
	assert.Equal(t, metadata.ResourceClass("github.com/conduit-lang/apimeta/internal/registry.Book"), class)
	assert.Equal(t, "Book", class.LocalName())

	decl, ok := reg.Lookup(class)
	require.True(t, ok)
	require.Len(t, decl.Resources, 1)
	assert.Equal(t, class, decl.Resources[0].Class)
	assert.Equal(t, reflect.TypeOf(Book{}), decl.Type)

	typ, ok := reg.Type(class)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(Book{}), typ)
}

func TestRegistry_RegisterRejectsDuplicatesAndNonStructs(t *testing.T) {
	reg := New()
	reg.MustRegister(Book{})

	_, err := reg.Register(&Book{})
	assert.Error(t, err)

	_, err = reg.Register(42)
	assert.Error(t, err)

	_, err = reg.Register(nil)
	assert.Error(t, err)
}

func TestRegistry_ClassOf(t *testing.T) {
	reg := New()
	class := reg.MustRegister(Book{})

	got, ok := reg.ClassOf(&Book{ID: 1})
	require.True(t, ok)
	assert.Equal(t, class, got)

	_, ok = reg.ClassOf(Author{})
	assert.False(t, ok)

	_, ok = reg.ClassOf(nil)
	assert.False(t, ok)
}

func TestRegistry_DeclareAppendsViews(t *testing.T) {
	reg := New()
	class := reg.MustRegister(Book{}, metadata.APIResource{ShortName: "Book"})

	err := reg.Declare(Declaration{
		Class:     class,
		Resources: []metadata.APIResource{{ShortName: "Novel"}},
		Properties: []PropertyDeclaration{
			{Name: "isbn", Identifier: metadata.True},
		},
	})
	require.NoError(t, err)

	decl, ok := reg.Lookup(class)
	require.True(t, ok)
	require.Len(t, decl.Resources, 2)
	assert.Equal(t, "Book", decl.Resources[0].ShortName)
	assert.Equal(t, "Novel", decl.Resources[1].ShortName)
	assert.Equal(t, class, decl.Resources[1].Class)
	assert.Len(t, decl.Properties, 1)
}

func TestRegistry_DeclareRejectsForeignViews(t *testing.T) {
	reg := New()
	err := reg.Declare(Declaration{
		Class:     "app.Book",
		Resources: []metadata.APIResource{{Class: "app.Author"}},
	})
	assert.Error(t, err)
	assert.False(t, reg.Has("app.Book"))
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	reg := New()
	class := reg.MustRegister(Book{}, metadata.APIResource{Identifiers: []string{"id"}})

	decl, _ := reg.Lookup(class)
	decl.Resources[0].Identifiers[0] = "changed"

	again, _ := reg.Lookup(class)
	assert.Equal(t, []string{"id"}, again.Resources[0].Identifiers)
}

func TestRegistry_PropertyMergesEarliestFirst(t *testing.T) {
	reg := New()
	class := reg.MustRegister(Book{})

	require.NoError(t, reg.DeclareProperty(class, PropertyDeclaration{Name: "title", Description: "first"}))
	require.NoError(t, reg.DeclareProperty(class, PropertyDeclaration{Name: "title", Description: "second", Required: metadata.True}))

	prop, ok := reg.Property(class, "title")
	require.True(t, ok)
	assert.Equal(t, "first", prop.Description)
	assert.Equal(t, metadata.True, prop.Required)

	_, ok = reg.Property(class, "missing")
	assert.False(t, ok)

	err := reg.DeclareProperty("app.Unknown", PropertyDeclaration{Name: "x"})
	assert.True(t, metadata.IsNotFound(err))
}

func TestRegistry_NamesAreSorted(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Declare(Declaration{Class: "app.Zebra"}))
	require.NoError(t, reg.Declare(Declaration{Class: "app.Author"}))
	require.NoError(t, reg.Declare(Declaration{Class: "app.Book"}))

	assert.Equal(t, []metadata.ResourceClass{"app.Author", "app.Book", "app.Zebra"}, reg.Names())
}

func TestRegistry_Load(t *testing.T) {
	reg := New()
	err := reg.Load(strings.NewReader(`
resources:
  - class: app.Book
    short_name: Book
    persistence:
      backend: relational
      target: books
    operations:
      - method: GET
        uri_template: /books/{isbn}
        kind: item
        read: true
    properties:
      - name: isbn
        identifier: true
        types:
          - kind: string
      - name: title
        groups: [read, write]
  - class: app.Book
    short_name: BookV2
    version: "2"
`))
	require.NoError(t, err)

	decl, ok := reg.Lookup("app.Book")
	require.True(t, ok)
	assert.Nil(t, decl.Type)
	require.Len(t, decl.Resources, 2)

	first := decl.Resources[0]
	assert.Equal(t, "Book", first.ShortName)
	assert.Equal(t, "relational", first.Persistence.Backend)
	assert.Equal(t, "books", first.Persistence.Target)
	require.Len(t, first.Operations, 1)
	assert.Equal(t, "/books/{isbn}", first.Operations[0].URITemplate)
	assert.Equal(t, metadata.KindItem, first.Operations[0].Kind)
	assert.Equal(t, metadata.True, first.Operations[0].Read)
	assert.Equal(t, "2", decl.Resources[1].Version)

	isbn, ok := reg.Property("app.Book", "isbn")
	require.True(t, ok)
	assert.Equal(t, metadata.True, isbn.Identifier)
	assert.Equal(t, []metadata.Type{{Kind: metadata.KindString}}, isbn.Types)

	title, ok := reg.Property("app.Book", "title")
	require.True(t, ok)
	assert.Equal(t, []string{"read", "write"}, title.Groups)
	assert.Equal(t, metadata.Unset, title.Identifier)
}

func TestRegistry_LoadErrors(t *testing.T) {
	reg := New()

	assert.Error(t, reg.Load(strings.NewReader("resources:\n  - short_name: Book\n")))
	assert.Error(t, reg.Load(strings.NewReader("resources:\n  - class: app.Book\n    unknown_key: 1\n")))
	assert.NoError(t, reg.Load(strings.NewReader("")))

	assert.Error(t, reg.LoadFile("testdata/does-not-exist.yaml"))
}

func TestRegistry_NormalizesOperationMethods(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Load(strings.NewReader(`
resources:
  - class: app.Book
    operations:
      - method: get
        uri_template: /books/{id}
      - method: " patch "
        uri_template: /books/{id}
    graphql_operations:
      - name: book_query
      - name: books_collection
        method: get
`)))

	decl, ok := reg.Lookup("app.Book")
	require.True(t, ok)
	ops := decl.Resources[0].Operations
	require.Len(t, ops, 2)
	assert.Equal(t, "GET", ops[0].Method)
	assert.True(t, ops[0].IsSafe())
	assert.Equal(t, "PATCH", ops[1].Method)

	gql := decl.Resources[0].GraphQLOperations
	require.Len(t, gql, 2)
	assert.Empty(t, gql[0].Method)
	assert.Equal(t, "GET", gql[1].Method)
}

func TestRegistry_RejectsInvalidOperationMethods(t *testing.T) {
	for name, method := range map[string]string{"empty": "", "unknown": "fetch"} {
		t.Run(name, func(t *testing.T) {
			reg := New()
			err := reg.Declare(Declaration{
				Class: "app.Book",
				Resources: []metadata.APIResource{{
					Operations: []metadata.Operation{{Name: "show", Method: method, URITemplate: "/books/{id}"}},
				}},
			})

			var invalid *metadata.InvalidMethodError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, metadata.ResourceClass("app.Book"), invalid.Class)
			assert.Equal(t, "show", invalid.Operation)
			assert.ErrorIs(t, err, metadata.ErrInvalidMethod)

			_, ok := reg.Lookup("app.Book")
			assert.False(t, ok)
		})
	}
}

func TestRegistry_CanonicalizesOpenMaps(t *testing.T) {
	reg := New()
	class := reg.MustRegister(Book{}, metadata.APIResource{
		Extra:       map[string]any{"max_items": 30, "tags": []string{"a"}},
		Persistence: metadata.PersistenceOptions{Options: map[string]any{"shards": 3}},
		Operations: []metadata.Operation{{
			Method:        "GET",
			URITemplate:   "/books",
			Extra:         map[string]any{"page_size": int64(20)},
			Normalization: metadata.SerializationContext{Flags: map[string]any{"depth": 2}},
		}},
	})
	require.NoError(t, reg.DeclareProperty(class, PropertyDeclaration{Name: "title", Extra: map[string]any{"max_length": 255}}))

	decl, ok := reg.Lookup(class)
	require.True(t, ok)
	res := decl.Resources[0]
	assert.Equal(t, map[string]any{"max_items": float64(30), "tags": []any{"a"}}, res.Extra)
	assert.Equal(t, map[string]any{"shards": float64(3)}, res.Persistence.Options)
	assert.Equal(t, map[string]any{"page_size": float64(20)}, res.Operations[0].Extra)
	assert.Equal(t, map[string]any{"depth": float64(2)}, res.Operations[0].Normalization.Flags)
	assert.Nil(t, res.Denormalization.Flags)

	title, ok := reg.Property(class, "title")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"max_length": float64(255)}, title.Extra)

	err := reg.Declare(Declaration{
		Class:     "app.Broken",
		Resources: []metadata.APIResource{{Extra: map[string]any{"fn": func() {}}}},
	})
	assert.Error(t, err)
}

func TestRegistry_PropertyNames(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Declare(Declaration{
		Class: "app.Book",
		Properties: []PropertyDeclaration{
			{Name: "isbn"}, {Name: "title"}, {Name: "isbn", Description: "again"},
		},
	}))

	assert.Equal(t, []string{"isbn", "title"}, reg.PropertyNames("app.Book"))
	assert.Nil(t, reg.PropertyNames("app.Unknown"))
}
