package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/dukescraper/pkg/models"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2025, time.June, 10, 15, 30, 0, 0, time.UTC)

	got, err := parseDate("2025-01-02", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("7d", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 3, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("yesterday", now)
	assert.ErrorContains(t, err, "invalid date format")
}

func TestFilterUsage(t *testing.T) {
	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	data := []models.UsageData{
		{Meter: "ELECTRIC - 1", Date: time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC)},
		{Meter: "ELECTRIC - 1", Date: time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC)},
		{Meter: "ELECTRIC - 1", Date: time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)},
	}

	all, err := filterUsage(data, "", "", now)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	recent, err := filterUsage(data, "7d", "", now)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	window, err := filterUsage(data, "2025-05-01", "2025-06-05", now)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, time.June, window[0].Date.Month())

	_, err = filterUsage(data, "", "soon", now)
	assert.ErrorContains(t, err, "--until")
}
