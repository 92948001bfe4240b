package team

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linusjb/boedekassen/internal/database"
	"github.com/linusjb/boedekassen/internal/spond"
)

func setupTestStore(t *testing.T) Store {
	t.Helper()
	db, teardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(teardown)
	return New(db)
}

func TestUpsertMembers(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.UpsertMembers([]spond.Member{
		{ID: "p1", Name: "Jonas Holm", ProfilePicture: "https://cdn.example.com/p1.jpg"},
		{ID: "p2", Name: "Mads Krogh"},
	}))

	members, err := store.GetAllMembers()
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Jonas Holm", members[0].Name)

	// Re-upserting refreshes the display fields.
	require.NoError(t, store.UpsertMembers([]spond.Member{
		{ID: "p2", Name: "Mads B. Krogh"},
	}))
	m, err := store.GetMember("p2")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Mads B. Krogh", m.Name)

	members, err = store.GetAllMembers()
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestFindMemberByName(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.UpsertMembers([]spond.Member{
		{ID: "p1", Name: "Jonas Holm"},
	}))

	m, err := store.FindMemberByName("jonas holm")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "p1", m.ID)

	m, err = store.FindMemberByName("Nobody")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestUpsertEvents(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.UpsertEvents([]spond.Event{
		{ID: "e1", Heading: "Tirsdagstræning", Kind: spond.EventKindTraining, Start: 2000, InvitedAt: 1000, GroupID: "g1"},
		{ID: "e2", Heading: "Kamp mod AB", Kind: spond.EventKindMatch, Start: 3000, InvitedAt: 1500, GroupID: "g1"},
	}))

	events, err := store.GetAllEvents()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID, "newest first")

	e, err := store.GetEvent("e1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, spond.EventKindTraining, e.Kind)
	assert.Equal(t, int64(1000), e.InvitedAt)

	e, err = store.GetEvent("missing")
	require.NoError(t, err)
	assert.Nil(t, e)
}
