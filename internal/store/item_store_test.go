package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catchsmart/catchsmart/internal/domain"
)

func seedItems(t *testing.T, uploads *UploadStore, userID string, names ...string) *domain.Upload {
	t.Helper()
	items := make([]domain.ExtractedItem, 0, len(names))
	for _, n := range names {
		items = append(items, domain.ExtractedItem{Name: n, Confidence: 0.8})
	}
	upload, err := uploads.Create(context.Background(), &domain.Upload{
		UserID:      userID,
		StoragePath: userID + "/1-receipt.jpg",
		ImageURL:    "http://x/" + userID,
		Type:        domain.DocumentReceipt,
		Items:       items,
	})
	require.NoError(t, err)
	return upload
}

func TestItemStoreListByUploadID(t *testing.T) {
	d := openTestDB(t)
	uploads := NewUploadStore(d)
	items := NewItemStore(d)

	upload := seedItems(t, uploads, "user-1", "Rapala Wobbler", "Mepps Aglia")

	list, err := items.ListByUploadID(context.Background(), upload.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Extraction order is preserved
	assert.Equal(t, "Rapala Wobbler", list[0].Name)
	assert.Equal(t, "Mepps Aglia", list[1].Name)
	assert.Equal(t, upload.ID, list[0].UploadID)
}

func TestItemStoreSearch(t *testing.T) {
	d := openTestDB(t)
	uploads := NewUploadStore(d)
	items := NewItemStore(d)
	ctx := context.Background()

	seedItems(t, uploads, "user-1", "Rapala Wobbler", "Mepps Aglia Spinner", "Savage Gear Spinner")
	seedItems(t, uploads, "user-2", "Spinner Deluxe")

	results, err := items.Search(ctx, "user-1", "SPINNER")
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Results should be alphabetical
	assert.Equal(t, "Mepps Aglia Spinner", results[0].Name)
	assert.Equal(t, "Savage Gear Spinner", results[1].Name)
}

func TestItemStoreSearch_NoResults(t *testing.T) {
	d := openTestDB(t)
	uploads := NewUploadStore(d)
	items := NewItemStore(d)

	seedItems(t, uploads, "user-1", "Rapala Wobbler")

	results, err := items.Search(context.Background(), "user-1", "jig")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestItemStoreSearch_WildcardsMatchLiterally(t *testing.T) {
	d := openTestDB(t)
	uploads := NewUploadStore(d)
	items := NewItemStore(d)
	ctx := context.Background()

	seedItems(t, uploads, "user-1", "Rapala Wobbler", "Jig_Head 10g", "Rabatt 50%", `Line 0.25\0.30`)

	tests := []struct {
		query string
		want  []string
	}{
		{query: "_", want: []string{"Jig_Head 10g"}},
		{query: "%", want: []string{"Rabatt 50%"}},
		{query: `\`, want: []string{`Line 0.25\0.30`}},
		{query: "rapala_wobbler", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := items.Search(ctx, "user-1", tt.query)
			require.NoError(t, err)
			var names []string
			for _, r := range results {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
