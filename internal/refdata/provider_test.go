package refdata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/status"
)

func testDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	require.NoError(t, database.SeedReferenceData())
	return database
}

func TestProvider_Load(t *testing.T) {
	p := NewProvider(testDB(t), "")

	tax, err := p.Taxonomy()
	require.NoError(t, err)
	assert.True(t, tax.ToolTypes["SQ EM"])

	tab, err := p.Tables()
	require.NoError(t, err)
	assert.NotEmpty(t, tab.Rates[db.FamilySqEM])
	assert.NotEmpty(t, tab.Rates[db.FamilyBur])
	assert.NotEmpty(t, tab.PrepSheets[db.SheetNeck].Rows)
	assert.False(t, tab.PrepSheets[db.SheetNeck].HasNull)
}

func TestProvider_Invalidate(t *testing.T) {
	database := testDB(t)
	p := NewProvider(database, "")

	tab, err := p.Tables()
	require.NoError(t, err)
	assert.Empty(t, tab.LiveTimes)

	_, err = database.Exec(`INSERT INTO live_times (part_number, cycle_seconds) VALUES ('AC123-FM', 95)`)
	require.NoError(t, err)

	// Cached view does not see the new row until invalidated.
	tab, err = p.Tables()
	require.NoError(t, err)
	assert.Empty(t, tab.LiveTimes)

	p.Invalidate()
	tab, err = p.Tables()
	require.NoError(t, err)
	assert.Equal(t, 95, tab.LiveTimes["AC123-FM"])
}

func TestProvider_EmptyRates(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	p := NewProvider(database, "")
	_, err = p.Tables()
	assert.Equal(t, status.RateTablesMissing, status.CodeOf(err))
}

func TestProvider_MissingTaxonomyFile(t *testing.T) {
	p := NewProvider(testDB(t), filepath.Join(t.TempDir(), "nope.json"))
	_, err := p.Taxonomy()
	assert.Equal(t, status.TaxonomyMissing, status.CodeOf(err))
}
