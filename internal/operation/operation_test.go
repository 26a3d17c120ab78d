package operation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apimeta/internal/identifier"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
	"github.com/conduit-lang/apimeta/internal/metadata/resource"
	"github.com/conduit-lang/apimeta/internal/registry"
)

type Book struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type Edition struct {
	TenantID string `api:"tenantId,identifier"`
	LocalID  int    `api:"localId,identifier"`
}

type fixture struct {
	names     *resource.NameCollection
	props     property.Factory
	resources resource.Factory
	book      metadata.ResourceClass
	edition   metadata.ResourceClass
}

func setup(t *testing.T) fixture {
	t.Helper()
	reg := registry.New()
	book := reg.MustRegister(Book{}, metadata.APIResource{
		GraphQL: true,
		GraphQLOperations: []metadata.Operation{
			{Name: "search_books", Method: "GET", Kind: metadata.KindCollection},
		},
	})
	edition := reg.MustRegister(Edition{})

	names := property.NewNameChain(reg, property.DefaultNameResolvers(reg)...)
	props := property.NewCachedFactory(property.NewChain(names, property.DefaultResolvers(reg)))
	resources := resource.NewCachedFactory(resource.NewChain(resource.DefaultResolvers(resource.Sources{
		Declarations: reg,
		Names:        names,
		Properties:   props,
	})))

	return fixture{
		names:     resource.NewNameCollection(reg),
		props:     props,
		resources: resources,
		book:      book,
		edition:   edition,
	}
}

func TestFinder_Find(t *testing.T) {
	f := setup(t)
	finder := NewFinder(f.names, f.resources)
	ctx := context.Background()

	op, err := finder.Find(ctx, "_api_/books/{id}_get", Options{})
	require.NoError(t, err)
	assert.Equal(t, f.book, op.Class)

	op, err = finder.Find(ctx, "/editions", Options{})
	require.NoError(t, err)
	assert.Equal(t, f.edition, op.Class)
	assert.Equal(t, "GET", op.Method)

	op, err = finder.Find(ctx, "search_books", Options{GraphQL: true})
	require.NoError(t, err)
	assert.True(t, op.GraphQL)

	_, err = finder.Find(ctx, "search_books", Options{})
	assert.ErrorIs(t, err, metadata.ErrOperationExcluded)

	_, err = finder.Find(ctx, "_api_/books_post", Options{GraphQL: true})
	assert.ErrorIs(t, err, metadata.ErrOperationExcluded)

	_, err = finder.Find(ctx, "missing", Options{})
	assert.ErrorIs(t, err, metadata.ErrOperationNotFound)
}

func TestFinder_FindFor(t *testing.T) {
	f := setup(t)
	finder := NewFinder(f.names, f.resources)
	ctx := context.Background()

	op, err := finder.FindFor(ctx, f.book, "_api_/books_post", Options{})
	require.NoError(t, err)
	assert.Equal(t, "POST", op.Method)

	_, err = finder.FindFor(ctx, f.edition, "_api_/books_post", Options{})
	var notFound *metadata.OperationNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, f.edition, notFound.Class)

	_, err = finder.FindFor(ctx, "example.Unknown", "get", Options{})
	assert.ErrorIs(t, err, metadata.ErrResourceNotFound)
}

func TestChiRouter_Match(t *testing.T) {
	f := setup(t)
	router, err := NewChiRouterFor(context.Background(), f.names, f.resources)
	require.NoError(t, err)

	m, err := router.Match("GET", "/books/42")
	require.NoError(t, err)
	assert.Equal(t, f.book, m.Class)
	assert.Equal(t, "_api_/books/{id}_get", m.Operation)
	assert.Equal(t, "/books/{id}", m.Pattern)
	assert.Equal(t, map[string]string{"id": "42"}, m.Variables)

	m, err = router.Match("post", "/books")
	require.NoError(t, err)
	assert.Equal(t, "_api_/books_post", m.Operation)
	assert.Empty(t, m.Variables)

	_, err = router.Match("PUT", "/books/42")
	assert.ErrorIs(t, err, metadata.ErrOperationNotFound)

	_, err = router.Match("GET", "/authors")
	assert.ErrorIs(t, err, metadata.ErrOperationNotFound)

	assert.Len(t, router.Routes(), 10)
}

func TestChiRouter_FirstRegistrationWins(t *testing.T) {
	router := NewChiRouter()
	require.NoError(t, router.Add(metadata.Operation{Name: "first", Class: "example.A", Method: "GET", URITemplate: "/things"}))
	require.NoError(t, router.Add(metadata.Operation{Name: "second", Class: "example.B", Method: "GET", URITemplate: "/things"}))
	require.NoError(t, router.Add(metadata.Operation{Name: "query", GraphQL: true, Method: "GET"}))

	m, err := router.Match("GET", "/things")
	require.NoError(t, err)
	assert.Equal(t, "first", m.Operation)

	err = router.Add(metadata.Operation{Name: "bad", Method: "BREW", URITemplate: "/coffee"})
	assert.ErrorIs(t, err, metadata.ErrInvalidMethod)
}

func TestChiRouter_AddNormalizesMethod(t *testing.T) {
	router := NewChiRouter()
	require.NoError(t, router.Add(metadata.Operation{Name: "get", Class: "example.Book", Method: "get", URITemplate: "/books/{id}"}))

	m, err := router.Match("GET", "/books/7")
	require.NoError(t, err)
	assert.Equal(t, "get", m.Operation)
	assert.Equal(t, map[string]string{"id": "7"}, m.Variables)
	require.Len(t, router.Routes(), 1)

	var err2 error
	assert.NotPanics(t, func() {
		err2 = router.Add(metadata.Operation{Name: "blank", Class: "example.Book", URITemplate: "/books"})
	})
	var invalid *metadata.InvalidMethodError
	require.ErrorAs(t, err2, &invalid)
	assert.Equal(t, "blank", invalid.Operation)
	assert.True(t, metadata.IsInvalidMethod(err2))
}

func TestResolver_Resolve(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	router, err := NewChiRouterFor(ctx, f.names, f.resources)
	require.NoError(t, err)

	resolver := NewResolver(
		router,
		NewFinder(f.names, f.resources),
		identifier.NewURIVariablesConverter(f.props, identifier.NewTransformers(identifier.DefaultTransformers()...)),
	)

	req, err := resolver.Resolve(ctx, "GET", "/books/42")
	require.NoError(t, err)
	assert.Equal(t, "_api_/books/{id}_get", req.Operation.Name)
	assert.Equal(t, map[string]any{"id": int64(42)}, req.URIVariables)
	assert.Equal(t, map[string]string{"id": "42"}, req.Raw)

	req, err = resolver.Resolve(ctx, "DELETE", "/editions/tenantId=acme;localId=2")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": map[string]any{"tenantId": "acme", "localId": int64(2)}}, req.URIVariables)

	_, err = resolver.Resolve(ctx, "GET", "/books/abc")
	assert.True(t, metadata.IsInvalidURIVariable(err))
}
