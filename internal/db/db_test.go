package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestMigrate(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.Migrate())

	// Second run is a no-op.
	require.NoError(t, d.Migrate())

	assert.Equal(t, "1", d.GetSetting("schema_version", ""))
	assert.Equal(t, "2", d.GetSetting("batch_workers", ""))

	// Every table from the DDL exists.
	for _, table := range []string{
		"settings", "batches", "batch_rows", "schedules",
		"logs", "webhooks", "rates", "prep_rates", "live_times",
	} {
		var name string
		err := d.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestMigrate_KeepsEditedSettings(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.Migrate())
	require.NoError(t, d.SetSetting("batch_workers", "8"))
	require.NoError(t, d.Migrate())
	assert.Equal(t, "8", d.GetSetting("batch_workers", ""))
}

func TestGetSetSetting(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.Migrate())

	assert.Equal(t, "fallback", d.GetSetting("nope", "fallback"))
	require.NoError(t, d.SetSetting("telegram_token", "123:abc"))
	assert.Equal(t, "123:abc", d.GetSetting("telegram_token", ""))

	// Overwrite.
	require.NoError(t, d.SetSetting("telegram_token", "456:def"))
	assert.Equal(t, "456:def", d.GetSetting("telegram_token", ""))
}

func TestSeedReferenceData(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.Migrate())
	require.NoError(t, d.SeedReferenceData())

	var rates, prep int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM rates`).Scan(&rates))
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM prep_rates`).Scan(&prep))
	assert.Greater(t, rates, 0)
	assert.Greater(t, prep, 0)

	// Re-seeding must not duplicate rows.
	require.NoError(t, d.SeedReferenceData())
	var again int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM rates`).Scan(&again))
	assert.Equal(t, rates, again)
}

func TestWriteLog(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.Migrate())

	id := 7
	d.WriteLog(&id, nil, "info", "batch started")
	d.WriteLog(nil, nil, "error", "something broke")

	var total, scoped int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM logs`).Scan(&total))
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM logs WHERE batch_id=7`).Scan(&scoped))
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, scoped)
}
