package store

import (
	"testing"

	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertIsMonotonicAndNeverReused(t *testing.T) {
	s := New(0)
	id1 := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"a": factmodel.Int(1)}})
	id2 := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"a": factmodel.Int(2)}})
	require.Less(t, id1, id2)

	require.True(t, s.Remove(id1))
	id3 := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"a": factmodel.Int(3)}})
	assert.NotEqual(t, id1, id3)
	assert.Greater(t, id3, id2)
}

func TestRemoveClearsIndexes(t *testing.T) {
	s := New(0)
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"status": factmodel.String("active")}})
	assert.Equal(t, []factmodel.FactID{id}, s.FindByField("status", factmodel.String("active")))

	s.Remove(id)
	assert.Empty(t, s.FindByField("status", factmodel.String("active")))

	_, ok := s.Get(id)
	assert.False(t, ok)
}

func TestUpdateReindexesDelta(t *testing.T) {
	s := New(0)
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"status": factmodel.String("pending")}})

	s.Update(id, factmodel.Fact{Fields: map[string]factmodel.Value{"status": factmodel.String("active")}})

	assert.Empty(t, s.FindByField("status", factmodel.String("pending")))
	assert.Equal(t, []factmodel.FactID{id}, s.FindByField("status", factmodel.String("active")))
}

func TestFindByCriteriaThroughStore(t *testing.T) {
	s := New(0)
	id1 := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{
		"id": factmodel.Int(12345), "description": factmodel.String("weekly search report"),
	}})
	s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{
		"id": factmodel.Int(99), "description": factmodel.String("search index"),
	}})

	got := s.FindByCriteria([]indexer.Criterion{
		{Field: "id", Value: factmodel.Int(12345)},
	})
	assert.Equal(t, []factmodel.FactID{id1}, got)
}

func TestSnapshotCountsCacheActivity(t *testing.T) {
	s := New(0)
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"a": factmodel.Int(1)}})
	s.Get(id)
	s.Get(factmodel.FactID(999999))

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.FactCount)
	assert.GreaterOrEqual(t, snap.CacheHits, uint64(1))
	assert.GreaterOrEqual(t, snap.CacheMisses, uint64(1))
}
