package events_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grabarr/grabarr/internal/events"
)

func TestRecord(t *testing.T) {
	t.Run("AssignsIDAndTimestamp", func(t *testing.T) {
		r := events.NewRecorder()

		r.Record(events.Event{Type: events.TorrentAdded, Message: "added"})

		all := r.GetAll()
		require.Len(t, all, 1)
		assert.NotEmpty(t, all[0].ID)
		assert.False(t, all[0].Timestamp.IsZero())
	})

	t.Run("PreservesCallerFields", func(t *testing.T) {
		r := events.NewRecorder()
		ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

		r.Record(events.Event{ID: "fixed-id", Type: events.RescanTriggered, Timestamp: ts})

		all := r.GetAll()
		require.Len(t, all, 1)
		assert.Equal(t, "fixed-id", all[0].ID)
		assert.Equal(t, ts, all[0].Timestamp)
	})

	t.Run("NewestFirst", func(t *testing.T) {
		r := events.NewRecorder()
		r.Record(events.Event{Type: events.TorrentAdded, Message: "first"})
		r.Record(events.Event{Type: events.TorrentCompleted, Message: "second"})

		all := r.GetAll()
		require.Len(t, all, 2)
		assert.Equal(t, "second", all[0].Message)
		assert.Equal(t, "first", all[1].Message)
	})

	t.Run("RetentionCap", func(t *testing.T) {
		r := events.NewRecorder(events.WithMaxEvents(5))

		for i := range 12 {
			r.Record(events.Event{Type: events.ReconcileCycle, Message: fmt.Sprintf("cycle %d", i)})
		}

		all := r.GetAll()
		require.Len(t, all, 5)
		assert.Equal(t, "cycle 11", all[0].Message)
		assert.Equal(t, "cycle 7", all[4].Message)
	})

	t.Run("UniqueSortableIDs", func(t *testing.T) {
		r := events.NewRecorder()
		for range 100 {
			r.Record(events.Event{Type: events.ReconcileCycle})
		}

		seen := make(map[string]bool)
		for _, e := range r.GetAll() {
			assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
			seen[e.ID] = true
		}
	})
}

func TestGetByType(t *testing.T) {
	r := events.NewRecorder()
	r.Record(events.Event{Type: events.TorrentAdded, Message: "a"})
	r.Record(events.Event{Type: events.RescanFailed, Message: "b"})
	r.Record(events.Event{Type: events.TorrentAdded, Message: "c"})

	added := r.GetByType(events.TorrentAdded)
	require.Len(t, added, 2)
	assert.Equal(t, "c", added[0].Message)
	assert.Equal(t, "a", added[1].Message)

	assert.Empty(t, r.GetByType(events.OrganizeComplete))
}
