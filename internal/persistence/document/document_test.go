package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
	"github.com/conduit-lang/apimeta/internal/persistence"
	"github.com/conduit-lang/apimeta/internal/registry"
)

func TestIntrospector_ExplicitMapping(t *testing.T) {
	intro := NewIntrospector(nil)
	intro.Map("example.Order", Mapping{Collection: "orders", IDField: "reference"})
	ctx := context.Background()

	h, ok, err := intro.ManagerFor(ctx, "example.Order")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "orders", h.Target)

	fields, err := intro.IdentifierFields(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []string{"reference"}, fields)

	auto, err := intro.IsIdentifierAutoGenerated(ctx, h, "reference")
	require.NoError(t, err)
	assert.False(t, auto)
}

func TestIntrospector_Declared(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Declare(registry.Declaration{
		Class: "example.LogEntry",
		Resources: []metadata.APIResource{{
			Persistence: metadata.PersistenceOptions{Backend: BackendName},
		}},
	}))

	intro := NewIntrospector(reg)
	ctx := context.Background()

	h, ok, err := intro.ManagerFor(ctx, "example.LogEntry")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "log_entries", h.Target)

	fields, err := intro.IdentifierFields(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, fields)

	auto, err := intro.IsIdentifierAutoGenerated(ctx, h, "id")
	require.NoError(t, err)
	assert.True(t, auto)

	auto, err = intro.IsIdentifierAutoGenerated(ctx, h, "message")
	require.NoError(t, err)
	assert.False(t, auto)

	_, ok, err = intro.ManagerFor(ctx, "example.Unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentifierResolver_Document(t *testing.T) {
	intro := NewIntrospector(nil)
	intro.Map("example.Order", Mapping{Collection: "orders", Generated: true})
	resolver := persistence.NewIdentifierResolver(intro)

	prop, err := resolver.Resolve(context.Background(), "example.Order", "id", property.Options{}, metadata.APIProperty{Name: "id"})
	require.NoError(t, err)
	assert.Equal(t, metadata.True, prop.Identifier)
	assert.Equal(t, metadata.False, prop.Writable)
}
