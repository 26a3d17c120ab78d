package state

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

type memoBook struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// fieldIdentifier reads the ID field of memoBook items
type fieldIdentifier struct{}

func (fieldIdentifier) IdentifiersFromItem(_ context.Context, item any) (metadata.Identifier, error) {
	b := item.(*memoBook)
	return metadata.Identifier{{Property: "id", Value: b.ID}}, nil
}

func memoryOps() (item, collection, post, del metadata.Operation) {
	idVar := metadata.URIVariable{Parameter: "id", FromClass: "app.Book", Identifiers: []string{"id"}}
	base := metadata.Operation{Class: "app.Book", Persistence: metadata.PersistenceOptions{Backend: "memory"}}

	item = base.WithName("get").WithKind(metadata.KindItem).WithURIVariables(idVar)
	item.Method = "GET"
	collection = base.WithName("get_collection").WithKind(metadata.KindCollection)
	collection.Method = "GET"
	post = base.WithName("post").WithKind(metadata.KindCollection)
	post.Method = "POST"
	del = base.WithName("delete").WithKind(metadata.KindItem).WithURIVariables(idVar)
	del.Method = "DELETE"
	return
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(fieldIdentifier{})
	item, collection, post, del := memoryOps()
	ctx := context.Background()

	assert.True(t, store.Supports(ctx, item, Context{}))
	assert.False(t, store.Supports(ctx, metadata.Operation{Provider: "relational.provider"}, Context{}))

	for _, b := range []*memoBook{{ID: 2, Title: "B"}, {ID: 1, Title: "A"}} {
		_, err := store.Process(ctx, b, post, nil, Context{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Len("app.Book"))

	got, err := store.Provide(ctx, item, map[string]any{"id": 1}, Context{})
	require.NoError(t, err)
	assert.Equal(t, &memoBook{ID: 1, Title: "A"}, got)

	all, err := store.Provide(ctx, collection, nil, Context{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, all.([]any)[0].(*memoBook).ID)

	_, err = store.Process(ctx, nil, del, map[string]any{"id": 2}, Context{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len("app.Book"))

	missing, err := store.Provide(ctx, item, map[string]any{"id": 2}, Context{})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_InProcessorChain(t *testing.T) {
	store := NewMemoryStore(fieldIdentifier{})
	chain := NewProcessorChain([]ProcessorEntry{{Registration: Registration{Name: "memory", Cacheable: true}, Processor: store}})
	_, _, post, _ := memoryOps()

	result, err := chain.Process(context.Background(), &memoBook{ID: 7}, post, nil, Context{})
	require.NoError(t, err)
	assert.Equal(t, &memoBook{ID: 7}, result)
}

func TestItemKey(t *testing.T) {
	composite := metadata.Operation{
		Name:  "get",
		Class: "app.Tenant",
		URIVariables: []metadata.URIVariable{
			{Parameter: "orgId", FromClass: "app.Org", ToProperty: "org", Identifiers: []string{"id"}},
			{Parameter: "id", FromClass: "app.Tenant", Identifiers: []string{"tenantId", "localId"}, Composite: true},
		},
	}

	key, err := ItemKey(composite, map[string]any{
		"orgId": 9,
		"id":    map[string]any{"localId": 2, "tenantId": "acme"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tenantId=acme;localId=2", key)

	_, err = ItemKey(composite, map[string]any{"orgId": 9})
	assert.True(t, metadata.IsInvalidURIVariable(err))

	_, err = ItemKey(composite, map[string]any{"id": "flat"})
	assert.True(t, metadata.IsInvalidURIVariable(err))

	_, err = ItemKey(metadata.Operation{Name: "get_collection"}, nil)
	assert.True(t, metadata.IsInvalidURIVariable(err))
}

func TestStreamPublisher(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	publisher := NewStreamPublisher(client, "apimeta:events", WithItemIdentifier(fieldIdentifier{}))
	_, _, post, del := memoryOps()
	ctx := context.Background()

	assert.True(t, publisher.Supports(ctx, post, Context{}))
	assert.False(t, publisher.Supports(ctx, metadata.Operation{Method: "GET"}, Context{}))

	result, err := publisher.Process(ctx, &memoBook{ID: 3, Title: "C"}, post, nil, Context{})
	require.NoError(t, err)
	assert.Nil(t, result)

	_, err = publisher.Process(ctx, nil, del, map[string]any{"id": 3}, Context{})
	require.NoError(t, err)

	events, err := client.XRange(ctx, "apimeta:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, events, 2)

	created := events[0].Values
	assert.Equal(t, "app.Book", created["class"])
	assert.Equal(t, "post", created["operation"])
	assert.Equal(t, "3", created["identifier"])

	var payload memoBook
	require.NoError(t, json.Unmarshal([]byte(created["payload"].(string)), &payload))
	assert.Equal(t, "C", payload.Title)

	assert.Equal(t, "delete", events[1].Values["operation"])
	assert.Equal(t, "3", events[1].Values["identifier"])
}

func TestStreamPublisher_AfterResumablePersist(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewMemoryStore(fieldIdentifier{})
	chain := NewProcessorChain([]ProcessorEntry{
		{Registration: Registration{Name: "memory", Resumable: true}, Processor: store},
		{Registration: Registration{Name: "stream"}, Processor: NewStreamPublisher(client, "events", WithItemIdentifier(fieldIdentifier{}))},
	})
	_, _, post, _ := memoryOps()

	out, err := chain.Dispatch(context.Background(), &memoBook{ID: 5}, post, nil, Context{})
	require.NoError(t, err)
	assert.Equal(t, []string{"memory", "stream"}, out.Executed)
	assert.Equal(t, &memoBook{ID: 5}, out.Result)
	assert.Equal(t, 1, store.Len("app.Book"))

	length, err := client.XLen(context.Background(), "events").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}
