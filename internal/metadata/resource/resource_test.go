package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apimeta/internal/cache"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
	"github.com/conduit-lang/apimeta/internal/persistence"
	"github.com/conduit-lang/apimeta/internal/persistence/search"
	"github.com/conduit-lang/apimeta/internal/registry"
)

type Author struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Book struct {
	ID     int     `json:"id"`
	Title  string  `json:"title"`
	Author *Author `json:"author"`
}

type Edition struct {
	TenantID string `api:"tenantId,identifier"`
	LocalID  int    `api:"localId,identifier"`
	Label    string `json:"label"`
}

func newChain(reg *registry.Registry, backends ...persistence.Introspector) *Chain {
	var identifiers []property.Resolver
	for _, b := range backends {
		identifiers = append(identifiers, persistence.NewIdentifierResolver(b))
	}
	names := property.NewNameChain(reg, property.DefaultNameResolvers(reg)...)
	props := property.NewChain(names, property.DefaultResolvers(reg, identifiers...))
	return NewChain(DefaultResolvers(Sources{
		Declarations: reg,
		Names:        names,
		Properties:   props,
		Backends:     backends,
	}))
}

func templates(ops []metadata.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Method + " " + op.URITemplate
	}
	return out
}

func TestChain_DefaultOperations(t *testing.T) {
	reg := registry.New()
	book := reg.MustRegister(Book{})
	reg.MustRegister(Author{})

	c, err := newChain(reg).Create(context.Background(), book)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	res := c.Resources[0]
	assert.Equal(t, "Book", res.ShortName)
	assert.Equal(t, []string{"id"}, res.Identifiers)
	assert.Equal(t, []string{
		"GET /books/{id}",
		"GET /books",
		"POST /books",
		"PATCH /books/{id}",
		"DELETE /books/{id}",
	}, templates(res.Operations))

	names := make([]string, 0, len(res.Operations))
	for _, op := range res.Operations {
		names = append(names, op.Name)
		assert.Equal(t, book, op.Class)
		assert.Equal(t, "Book", op.ShortName)
	}
	assert.Equal(t, []string{
		"_api_/books/{id}_get",
		"_api_/books_get_collection",
		"_api_/books_post",
		"_api_/books/{id}_patch",
		"_api_/books/{id}_delete",
	}, names)

	get := res.Operations[0]
	assert.Equal(t, []metadata.URIVariable{{Parameter: "id", FromClass: book, Identifiers: []string{"id"}}}, get.URIVariables)
	assert.Equal(t, metadata.True, get.Read)
	assert.Equal(t, metadata.False, get.Write)

	post := res.Operations[2]
	assert.Equal(t, metadata.KindCollection, post.Kind)
	assert.Empty(t, post.URIVariables)
	assert.Equal(t, metadata.False, post.Read)
	assert.Equal(t, metadata.True, post.Write)

	patch := res.Operations[3]
	assert.Equal(t, metadata.True, patch.Read)
	assert.Equal(t, metadata.True, patch.Write)
}

func TestChain_ReadOnlySearchIndex(t *testing.T) {
	reg := registry.New()
	book := reg.MustRegister(Book{})
	reg.MustRegister(Author{})

	index := search.NewIntrospector(reg)
	index.Map(book, search.Index{Name: "books"})

	c, err := newChain(reg, index).Create(context.Background(), book)
	require.NoError(t, err)

	res := c.Resources[0]
	assert.Equal(t, []string{"GET /books/{id}", "GET /books"}, templates(res.Operations))
	assert.Equal(t, "search", res.Persistence.Backend)
	assert.Equal(t, "books", res.Persistence.Target)
	assert.Equal(t, "search.provider", res.Provider)
	for _, op := range res.Operations {
		assert.Equal(t, "search.provider", op.Provider)
		assert.Equal(t, "search", op.Persistence.Backend)
	}
}

func TestChain_CompositeIdentifiers(t *testing.T) {
	reg := registry.New()
	edition := reg.MustRegister(Edition{})

	c, err := newChain(reg).Create(context.Background(), edition)
	require.NoError(t, err)

	res := c.Resources[0]
	assert.Equal(t, []string{"tenantId", "localId"}, res.Identifiers)

	get, err := c.Operation("")
	require.NoError(t, err)
	require.Len(t, get.URIVariables, 1)
	assert.True(t, get.URIVariables[0].Composite)
	assert.Equal(t, []string{"tenantId", "localId"}, get.URIVariables[0].Identifiers)
	assert.Equal(t, "/editions/{id}", get.URITemplate)
}

func TestChain_ReadOnlySearchIndexKeepsLowercaseMethods(t *testing.T) {
	reg := registry.New()
	book := reg.MustRegister(Book{}, metadata.APIResource{
		Operations: []metadata.Operation{
			{Method: "get", URITemplate: "/books/{id}"},
			{Method: "post", URITemplate: "/books"},
		},
	})
	reg.MustRegister(Author{})

	index := search.NewIntrospector(reg)
	index.Map(book, search.Index{Name: "books"})

	c, err := newChain(reg, index).Create(context.Background(), book)
	require.NoError(t, err)

	ops := c.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, "GET", ops[0].Method)
	assert.Equal(t, "_api_/books/{id}_get", ops[0].Name)
	assert.Equal(t, metadata.True, ops[0].Read)
	assert.Equal(t, metadata.False, ops[0].Write)
}

func TestChain_NestedCollection(t *testing.T) {
	reg := registry.New()
	author := reg.MustRegister(Author{})
	book := reg.MustRegister(Book{}, metadata.APIResource{
		Operations: []metadata.Operation{
			metadata.NewOperation("GET", "/authors/{authorId}/books"),
		},
	})

	c, err := newChain(reg).Create(context.Background(), book)
	require.NoError(t, err)

	ops := c.Operations()
	require.Len(t, ops, 1)
	op := ops[0]
	assert.Equal(t, metadata.KindCollection, op.Kind)
	assert.Equal(t, "_api_/authors/{authorId}/books_get_collection", op.Name)
	assert.Equal(t, []metadata.URIVariable{{
		Parameter:   "authorId",
		FromClass:   author,
		Identifiers: []string{"id"},
		ToProperty:  "author",
	}}, op.URIVariables)
}

func TestChain_GraphQLDefaults(t *testing.T) {
	reg := registry.New()
	book := reg.MustRegister(Book{}, metadata.APIResource{GraphQL: true})
	reg.MustRegister(Author{})

	c, err := newChain(reg).Create(context.Background(), book)
	require.NoError(t, err)

	var names []string
	for _, op := range c.GraphQLOperations() {
		assert.True(t, op.GraphQL)
		assert.Empty(t, op.URITemplate)
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{
		"item_query_book",
		"collection_query_book",
		"create_book",
		"update_book",
		"delete_book",
	}, names)
	assert.Len(t, c.Operations(), 5)

	query, err := c.GraphQLOperation("collection_query_book")
	require.NoError(t, err)
	assert.Equal(t, metadata.True, query.Read)
	assert.Equal(t, metadata.False, query.Write)
}

func TestChain_PrefixVersionAndInheritance(t *testing.T) {
	reg := registry.New()
	reg.MustRegister(Author{})
	book := reg.MustRegister(Book{}, metadata.APIResource{
		RoutePrefix:   "/v2/",
		Version:       "2",
		Description:   "Books of the library",
		Normalization: metadata.SerializationContext{Groups: []string{"book:read"}},
		Provider:      "custom.provider",
		Extra:         map[string]any{"deprecated": false},
		Operations: []metadata.Operation{
			{Method: "GET", Kind: metadata.KindCollection},
			{
				Method:        "GET",
				Kind:          metadata.KindItem,
				Normalization: metadata.SerializationContext{Groups: []string{"book:detail"}},
				Extra:         map[string]any{"version": "2.1"},
			},
		},
	})

	c, err := newChain(reg).Create(context.Background(), book)
	require.NoError(t, err)

	list, err := c.OperationFor("get", "/v2/books")
	require.NoError(t, err)
	assert.Equal(t, []string{"book:read"}, list.Normalization.Groups)
	assert.Equal(t, "custom.provider", list.Provider)
	assert.Equal(t, "Books of the library", list.Description)
	assert.Equal(t, "2", list.Extra["version"])
	assert.Equal(t, false, list.Extra["deprecated"])

	item, err := c.OperationFor("GET", "/v2/books/{id}")
	require.NoError(t, err)
	assert.Equal(t, []string{"book:detail"}, item.Normalization.Groups)
	assert.Equal(t, "2.1", item.Extra["version"])
}

func TestChain_Errors(t *testing.T) {
	reg := registry.New()
	reg.MustRegister(Author{})
	book := reg.MustRegister(Book{}, metadata.APIResource{
		Operations: []metadata.Operation{
			{Name: "list", Method: "GET", URITemplate: "/books"},
			{Name: "list", Method: "GET", URITemplate: "/library/books"},
		},
	})
	edition := reg.MustRegister(Edition{}, metadata.APIResource{Identifiers: []string{"isbn"}})
	chain := newChain(reg)
	ctx := context.Background()

	_, err := chain.Create(ctx, book)
	assert.ErrorIs(t, err, metadata.ErrDuplicateOperation)

	_, err = chain.Create(ctx, edition)
	assert.True(t, metadata.IsPropertyNotFound(err))

	_, err = chain.Create(ctx, "example.Unknown")
	assert.ErrorIs(t, err, metadata.ErrResourceNotFound)
}

func TestChain_ZeroOperationsIsNotAnError(t *testing.T) {
	reg := registry.New()
	author := reg.MustRegister(Author{})

	chain := NewChain([]Resolver{
		NewAttributeResolver(reg),
		ShortNameResolver{},
		dropAll{},
	})
	c, err := chain.Create(context.Background(), author)
	require.NoError(t, err)
	assert.Empty(t, c.Operations())
}

type dropAll struct{}

func (dropAll) Name() string { return "drop" }

func (dropAll) Resolve(_ context.Context, _ metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	return mapViews(c, func(r metadata.APIResource) (metadata.APIResource, error) {
		return r.WithOperations(), nil
	})
}

type namedResolver struct{ name string }

func (r namedResolver) Name() string { return r.name }

func (r namedResolver) Resolve(_ context.Context, _ metadata.ResourceClass, c metadata.ResourceCollection) (metadata.ResourceCollection, error) {
	return c, nil
}

func resolverNames(c *Chain) []string {
	var names []string
	for _, r := range c.Resolvers() {
		names = append(names, r.Name())
	}
	return names
}

func TestChain_Ordering(t *testing.T) {
	chain := newChain(registry.New())
	assert.Equal(t, []string{
		"attribute", "short_name", "defaults", "uri_template", "persistence",
		"identifiers", "uri_variables", "inheritance", "version",
	}, resolverNames(chain))

	before, err := chain.InsertBefore("persistence", namedResolver{"custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", resolverNames(before)[4])

	after, err := chain.InsertAfter("attribute", namedResolver{"custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", resolverNames(after)[1])

	appended := chain.Append(namedResolver{"custom"})
	assert.Equal(t, "custom", resolverNames(appended)[9])

	// The original chain is untouched
	assert.Len(t, chain.Resolvers(), 9)

	_, err = chain.InsertBefore("missing", namedResolver{"custom"})
	assert.Error(t, err)
}

type countingFactory struct {
	calls atomic.Int32
	err   error
}

func (f *countingFactory) Create(_ context.Context, class metadata.ResourceClass) (metadata.ResourceCollection, error) {
	f.calls.Add(1)
	if f.err != nil {
		return metadata.ResourceCollection{}, f.err
	}
	return metadata.NewResourceCollection(class, metadata.APIResource{
		Class:      class,
		Operations: []metadata.Operation{{Name: "get", Method: "GET"}},
	}), nil
}

func TestCachedFactory(t *testing.T) {
	inner := &countingFactory{}
	cached := NewCachedFactory(inner)
	ctx := context.Background()

	first, err := cached.Create(ctx, "example.Book")
	require.NoError(t, err)
	first.Resources[0].Operations[0].Name = "mutated"

	second, err := cached.Create(ctx, "example.Book")
	require.NoError(t, err)
	assert.Equal(t, "get", second.Resources[0].Operations[0].Name)
	assert.Equal(t, int32(1), inner.calls.Load())

	require.NoError(t, cached.Purge(ctx))
	_, err = cached.Create(ctx, "example.Book")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	failing := NewCachedFactory(&countingFactory{err: errors.New("boom")})
	_, err = failing.Create(ctx, "example.Book")
	assert.Error(t, err)
}

func TestCachedFactory_SharedPersistentTier(t *testing.T) {
	reg := registry.New()
	book := reg.MustRegister(Book{}, metadata.APIResource{
		Extra:       map[string]any{"max_items": 30},
		Persistence: metadata.PersistenceOptions{Options: map[string]any{"shards": 3}},
	})
	reg.MustRegister(Author{})

	store := cache.NewMemoryCache()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	computed, err := NewCachedFactory(newChain(reg), cache.WithStore(store, 0)).Create(ctx, book)
	require.NoError(t, err)

	// The second factory can only answer from the shared store
	loaded, err := NewCachedFactory(&countingFactory{err: errors.New("not cached")}, cache.WithStore(store, 0)).Create(ctx, book)
	require.NoError(t, err)

	if diff := cmp.Diff(computed, loaded); diff != "" {
		t.Errorf("stored collection differs (-computed +loaded):\n%s", diff)
	}
	assert.Equal(t, float64(30), loaded.Resources[0].Extra["max_items"])
}

func TestNameCollection(t *testing.T) {
	reg := registry.New()
	book := reg.MustRegister(Book{})
	author := reg.MustRegister(Author{})

	names, err := NewNameCollection(reg).Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []metadata.ResourceClass{author, book}, names)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"authorId", "id"}, placeholders("/authors/{authorId}/books/{id}"))
	assert.Empty(t, placeholders("/books"))
	assert.Empty(t, placeholders("/books/{"))
}
