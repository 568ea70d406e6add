package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jgoulah/dukescraper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(d int) time.Time {
	return time.Date(2025, time.June, d, 0, 0, 0, 0, time.UTC)
}

func TestUsage(t *testing.T) {
	db := openTestDB(t)

	for _, u := range []models.UsageData{
		{Meter: "ELECTRIC - 1", Date: day(1), KWh: 10},
		{Meter: "ELECTRIC - 1", Date: day(2), KWh: 11},
		{Meter: "ELECTRIC - 2", Date: day(1), KWh: 5},
	} {
		inserted, err := db.InsertUsage(&u)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	inserted, err := db.InsertUsage(&models.UsageData{Meter: "ELECTRIC - 1", Date: day(1), KWh: 99})
	require.NoError(t, err)
	assert.False(t, inserted, "duplicates are ignored")

	all, err := db.ListUsage("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day(2), all[0].Date, "newest first")

	first, err := db.ListUsage("ELECTRIC - 1")
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.InDelta(t, 10.0, first[1].KWh, 0.001, "first value for a day is kept")

	one, err := db.ListUsage("ELECTRIC - 2")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "ELECTRIC - 2", one[0].Meter)

	require.NoError(t, db.MarkPublished(all[0].ID))
	unpublished, err := db.ListUnpublishedUsage("ELECTRIC - 1")
	require.NoError(t, err)
	require.Len(t, unpublished, 1)
	assert.Equal(t, day(1), unpublished[0].Date)
}

func TestMeters(t *testing.T) {
	db := openTestDB(t)
	ts := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.UpsertMeter(models.MeterRecord{Number: "ELECTRIC - 2", Type: "ELECTRIC", MeterID: "2", StartDate: "01/01/2020", UpdatedAt: ts}))
	require.NoError(t, db.UpsertMeter(models.MeterRecord{Number: "ELECTRIC - 1", Type: "ELECTRIC", MeterID: "1", UpdatedAt: ts}))
	require.NoError(t, db.UpsertMeter(models.MeterRecord{Number: "ELECTRIC - 2", Type: "ELECTRIC", MeterID: "2", StartDate: "02/02/2022", UpdatedAt: ts.Add(time.Hour)}))

	meters, err := db.ListMeters()
	require.NoError(t, err)
	require.Len(t, meters, 2)
	assert.Equal(t, "ELECTRIC - 1", meters[0].Number)
	assert.Equal(t, "02/02/2022", meters[1].StartDate)
	assert.Equal(t, ts.Add(time.Hour), meters[1].UpdatedAt)
}

func TestBilling(t *testing.T) {
	db := openTestDB(t)

	snap, err := db.LatestBilling("ELECTRIC - 1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	t0 := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertBilling("ELECTRIC - 1", t0, map[string]any{"amt": 10}))
	require.NoError(t, db.InsertBilling("ELECTRIC - 1", t0.Add(time.Hour), map[string]any{"amt": 20}))
	require.NoError(t, db.InsertBilling("ELECTRIC - 2", t0.Add(2*time.Hour), map[string]any{"amt": 30}))

	snap, err = db.LatestBilling("ELECTRIC - 1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, t0.Add(time.Hour), snap.FetchedAt)
	assert.Equal(t, map[string]any{"amt": float64(20)}, snap.Payload)
}
