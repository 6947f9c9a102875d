package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catchsmart/catchsmart/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }
