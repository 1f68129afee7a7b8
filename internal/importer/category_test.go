package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadcraft/leadflow/internal/lead"
)

func TestFormationResolverMatchesCaseInsensitive(t *testing.T) {
	existing := lead.Formation{ID: uuid.New(), Name: "Excel Avancé", Position: 0}
	store := &fakeFormationStore{formations: []lead.Formation{existing}}

	resolver, err := NewFormationResolver(context.Background(), store, false)
	require.NoError(t, err)

	records := []*Record{
		{FormationName: "excel avancé"},
		{FormationName: "  Excel Avancé  "},
		{FormationName: "Unknown Course"},
		{},
	}
	require.NoError(t, resolver.ResolveAll(context.Background(), records))

	require.NotNil(t, records[0].FormationID)
	assert.Equal(t, existing.ID, *records[0].FormationID)
	assert.Equal(t, existing.ID, *records[1].FormationID)
	assert.Nil(t, records[2].FormationID, "unmatched names are left unset, not rejected")
	assert.Nil(t, records[3].FormationID)
	assert.Zero(t, resolver.Created())
}

func TestFormationResolverCreatesMissing(t *testing.T) {
	existing := lead.Formation{ID: uuid.New(), Name: "Bureautique", ColorHex: formationColors[0], Position: 2}
	store := &fakeFormationStore{formations: []lead.Formation{existing}}

	resolver, err := NewFormationResolver(context.Background(), store, true)
	require.NoError(t, err)

	records := []*Record{
		{FormationName: "Python"},
		{FormationName: "python"}, // same name, different case: one creation
		{FormationName: "Gestion de projet"},
		{FormationName: "Bureautique"},
	}
	require.NoError(t, resolver.ResolveAll(context.Background(), records))

	assert.Equal(t, 2, resolver.Created())
	require.Len(t, store.formations, 3)

	python := store.formations[1]
	gestion := store.formations[2]

	// First-seen spelling is kept; positions append after existing entries.
	assert.Equal(t, "Python", python.Name)
	assert.Equal(t, 3, python.Position)
	assert.Equal(t, 4, gestion.Position)
	assert.True(t, python.Active)

	// Colors cycle from the count of pre-existing formations.
	assert.Equal(t, formationColors[1], python.ColorHex)
	assert.Equal(t, formationColors[2], gestion.ColorHex)

	// Every record referencing a created formation resolves to its id.
	assert.Equal(t, python.ID, *records[0].FormationID)
	assert.Equal(t, python.ID, *records[1].FormationID)
	assert.Equal(t, gestion.ID, *records[2].FormationID)
	assert.Equal(t, existing.ID, *records[3].FormationID)
}

func TestFormationResolverColorCycleWrapsPalette(t *testing.T) {
	store := &fakeFormationStore{}
	resolver, err := NewFormationResolver(context.Background(), store, true)
	require.NoError(t, err)

	n := len(formationColors) + 2
	records := make([]*Record, n)
	for i := range records {
		records[i] = &Record{FormationName: "Course " + strings.Repeat("x", i+1)}
	}
	require.NoError(t, resolver.ResolveAll(context.Background(), records))

	require.Len(t, store.formations, n)
	assert.Equal(t, formationColors[0], store.formations[0].ColorHex)
	assert.Equal(t, formationColors[0], store.formations[len(formationColors)].ColorHex)
	assert.Equal(t, formationColors[1], store.formations[len(formationColors)+1].ColorHex)
}

func TestFormationResolverCreationDisabled(t *testing.T) {
	store := &fakeFormationStore{}
	resolver, err := NewFormationResolver(context.Background(), store, false)
	require.NoError(t, err)

	records := []*Record{{FormationName: "Python"}}
	require.NoError(t, resolver.ResolveAll(context.Background(), records))

	assert.Nil(t, records[0].FormationID)
	assert.Empty(t, store.formations)
}

func TestFormationResolverCreateError(t *testing.T) {
	store := &fakeFormationStore{createErr: assert.AnError}
	resolver, err := NewFormationResolver(context.Background(), store, true)
	require.NoError(t, err)

	err = resolver.ResolveAll(context.Background(), []*Record{{FormationName: "Python"}})
	assert.Error(t, err)
}
