package search_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grabarr/grabarr/internal/search"
)

func gb(f float64) *int64 {
	v := int64(f * (1 << 30))
	return &v
}

func intp(v int) *int {
	return &v
}

func TestRank(t *testing.T) {
	t.Run("EmptyInput", func(t *testing.T) {
		assert.Empty(t, search.Rank(nil, search.RankOptions{}))
		assert.Empty(t, search.Rank([]search.RawResult{}, search.RankOptions{}))
	})

	t.Run("SizeBand", func(t *testing.T) {
		raw := []search.RawResult{
			{Title: "Huge.Remux.2160p", Size: gb(66.3)},
			{Title: "Good.1080p.BluRay", Size: gb(2.55), Seeders: intp(599)},
			{Title: "Other.1080p.WEB", Size: gb(5), Seeders: intp(10)},
		}

		results := search.Rank(raw, search.RankOptions{})
		require.Len(t, results, 2)
		assert.Equal(t, "Good.1080p.BluRay", results[0].Title)
		assert.Equal(t, "Other.1080p.WEB", results[1].Title)
	})

	t.Run("DropsMissingAndUndersized", func(t *testing.T) {
		raw := []search.RawResult{
			{Title: "no size"},
			{Title: "too small", Size: gb(0.7)},
			{Title: "too big", Size: gb(20)},
		}

		assert.Empty(t, search.Rank(raw, search.RankOptions{}))
	})

	t.Run("TruncatesToTopTen", func(t *testing.T) {
		var raw []search.RawResult
		for i := range 25 {
			raw = append(raw, search.RawResult{
				Title:   fmt.Sprintf("Release %d", i),
				Size:    gb(4),
				Seeders: intp(i),
			})
		}

		results := search.Rank(raw, search.RankOptions{})
		require.Len(t, results, 10)
		assert.Equal(t, 24, results[0].Seeders)
		assert.Equal(t, 15, results[9].Seeders)
	})

	t.Run("StableOnEqualSeeders", func(t *testing.T) {
		raw := []search.RawResult{
			{Title: "first", Size: gb(3), Seeders: intp(50)},
			{Title: "second", Size: gb(4), Seeders: intp(50)},
			{Title: "third", Size: gb(5), Seeders: intp(50)},
			{Title: "winner", Size: gb(6), Seeders: intp(99)},
		}

		results := search.Rank(raw, search.RankOptions{})
		require.Len(t, results, 4)
		assert.Equal(t, "winner", results[0].Title)
		assert.Equal(t, "first", results[1].Title)
		assert.Equal(t, "second", results[2].Title)
		assert.Equal(t, "third", results[3].Title)
	})

	t.Run("SizesWithinBand", func(t *testing.T) {
		raw := []search.RawResult{
			{Title: "a", Size: gb(2.0)},
			{Title: "b", Size: gb(15.0)},
			{Title: "c", Size: gb(1.99)},
			{Title: "d", Size: gb(15.01)},
		}

		results := search.Rank(raw, search.RankOptions{})
		require.Len(t, results, 2)
		for _, r := range results {
			sizeGB := float64(r.Size) / (1 << 30)
			assert.GreaterOrEqual(t, sizeGB, 2.0)
			assert.LessOrEqual(t, sizeGB, 15.0)
		}
	})

	t.Run("DefaultsMissingOptionalFields", func(t *testing.T) {
		raw := []search.RawResult{
			{Title: "bare", Size: gb(5), Tracker: "rarbg"},
		}

		results := search.Rank(raw, search.RankOptions{})
		require.Len(t, results, 1)
		assert.Equal(t, 0, results[0].Seeders)
		assert.Equal(t, 0, results[0].Peers)
		assert.Equal(t, "rarbg", results[0].Indexer)
	})

	t.Run("PrefersMagnetOverLink", func(t *testing.T) {
		raw := []search.RawResult{
			{Title: "both", Size: gb(5), MagnetURI: "magnet:?xt=urn:btih:aa", Link: "https://idx/dl/1"},
			{Title: "link only", Size: gb(5), Link: "https://idx/dl/2"},
		}

		results := search.Rank(raw, search.RankOptions{})
		require.Len(t, results, 2)
		assert.Equal(t, "magnet:?xt=urn:btih:aa", results[0].Source)
		assert.Equal(t, "https://idx/dl/2", results[1].Source)
	})

	t.Run("ParsesReleaseMetadata", func(t *testing.T) {
		raw := []search.RawResult{
			{Title: "Inception.2010.1080p.BluRay.x264-GROUP", Size: gb(8), Seeders: intp(120)},
		}

		results := search.Rank(raw, search.RankOptions{})
		require.Len(t, results, 1)
		assert.Equal(t, "1080p", results[0].Resolution)
		assert.Equal(t, 2010, results[0].Year)
	})

	t.Run("CustomBounds", func(t *testing.T) {
		raw := []search.RawResult{
			{Title: "small", Size: gb(1)},
			{Title: "big", Size: gb(40)},
		}

		results := search.Rank(raw, search.RankOptions{MinSizeGB: 0.5, MaxSizeGB: 50})
		assert.Len(t, results, 2)
	})
}
