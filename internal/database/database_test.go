package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDB_RunsMigrations(t *testing.T) {
	db, teardown, err := InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err, "InitDB should not return an error")
	defer teardown()

	for _, table := range []string{"players", "events", "fine_policies", "fines", "sync_runs"} {
		var name string
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "querying for %s table should not produce an error", table)
		assert.Equal(t, table, name)
	}

	// The uniqueness index on fines must exist, it backs the ledger invariant.
	var idx string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_fines_player_event_violation'").Scan(&idx)
	require.NoError(t, err)
	assert.Equal(t, "idx_fines_player_event_violation", idx)
}
