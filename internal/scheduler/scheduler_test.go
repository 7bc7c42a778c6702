package scheduler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolworks/cycletimed/internal/batch"
	"github.com/toolworks/cycletimed/internal/db"
)

type fakeEnqueuer struct {
	ids  []int
	full bool
}

func (f *fakeEnqueuer) Enqueue(batchID int) bool {
	if f.full {
		return false
	}
	f.ids = append(f.ids, batchID)
	return true
}

func testSetup(t *testing.T) (*db.DB, *batch.Store) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "sched.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	return database, batch.NewStore(database)
}

func addSchedule(t *testing.T, database *db.DB, name, expr, batchName string, enabled int) int {
	t.Helper()
	res, err := database.Exec(
		`INSERT INTO schedules (name, cron_expr, batch_name, enabled) VALUES (?,?,?,?)`,
		name, expr, batchName, enabled)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func TestLoadSchedules(t *testing.T) {
	database, store := testSetup(t)
	e := New(database, store, &fakeEnqueuer{})
	ctx := context.Background()

	okID := addSchedule(t, database, "nightly", "0 0 2 * * *", "nightly-batch", 1)
	addSchedule(t, database, "off", "0 0 3 * * *", "off-batch", 0)
	addSchedule(t, database, "broken", "not a cron expr", "x", 1)

	require.NoError(t, e.LoadSchedules(ctx))
	assert.Len(t, e.entries, 1)
	assert.Contains(t, e.entries, okID)

	// A registered job gets its next_run stamped.
	var next string
	require.NoError(t, database.QueryRow(
		`SELECT COALESCE(next_run, '') FROM schedules WHERE id=?`, okID).Scan(&next))
	assert.NotEmpty(t, next)
}

func TestAddRemoveJob(t *testing.T) {
	database, store := testSetup(t)
	e := New(database, store, &fakeEnqueuer{})
	ctx := context.Background()

	id := addSchedule(t, database, "hourly", "0 0 * * * *", "hourly-batch", 1)
	require.NoError(t, e.AddJob(ctx, id))
	assert.Len(t, e.entries, 1)

	e.RemoveJob(id)
	assert.Empty(t, e.entries)

	// Removing twice is harmless.
	e.RemoveJob(id)

	assert.Error(t, e.AddJob(ctx, 9999))
}

func TestRerun(t *testing.T) {
	database, store := testSetup(t)
	runner := &fakeEnqueuer{}
	e := New(database, store, runner)
	ctx := context.Background()

	reqs := []string{`{"Description":"A"}`, `{"Description":"B"}`}
	srcID, err := store.Create(ctx, "nightly-batch", reqs)
	require.NoError(t, err)

	require.NoError(t, e.rerun(ctx, "nightly-batch"))
	require.Len(t, runner.ids, 1)
	cloneID := runner.ids[0]
	assert.NotEqual(t, srcID, cloneID)

	// The clone carries the source rows verbatim.
	cloned, err := store.Requests(ctx, cloneID)
	require.NoError(t, err)
	assert.Equal(t, reqs, cloned)

	// No batch with that name yet.
	assert.Error(t, e.rerun(ctx, "missing-batch"))

	// Queue full leaves the clone pending but reports the failure.
	runner.full = true
	assert.Error(t, e.rerun(ctx, "nightly-batch"))
}
