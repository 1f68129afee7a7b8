package importer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributorNone(t *testing.T) {
	d := NewDistributor(AssignNone, uuid.Nil, roster(3))
	for i := 0; i < 5; i++ {
		assert.Nil(t, d.Next())
	}
}

func TestDistributorFixed(t *testing.T) {
	owner := uuid.New()
	d := NewDistributor(AssignFixed, owner, nil)

	for i := 0; i < 4; i++ {
		got := d.Next()
		require.NotNil(t, got)
		assert.Equal(t, owner, *got)
	}
}

func TestDistributorRoundRobinFairness(t *testing.T) {
	members := roster(3)
	d := NewDistributor(AssignRoundRobin, uuid.Nil, members)

	// 10 records across 3 members: each gets floor(10/3) or ceil(10/3).
	counts := make(map[uuid.UUID]int)
	for i := 0; i < 10; i++ {
		got := d.Next()
		require.NotNil(t, got)
		counts[*got]++
	}

	require.Len(t, counts, 3)
	for _, m := range members {
		assert.GreaterOrEqual(t, counts[m.ID], 3)
		assert.LessOrEqual(t, counts[m.ID], 4)
	}
}

func TestDistributorRoundRobinOrder(t *testing.T) {
	members := roster(2)
	d := NewDistributor(AssignRoundRobin, uuid.Nil, members)

	assert.Equal(t, members[0].ID, *d.Next())
	assert.Equal(t, members[1].ID, *d.Next())
	assert.Equal(t, members[0].ID, *d.Next())
}

func TestDistributorEmptyRosterDegrades(t *testing.T) {
	d := NewDistributor(AssignRoundRobin, uuid.Nil, nil)
	assert.Nil(t, d.Next(), "round-robin over an empty roster assigns nobody")
}

func TestDistributorStateIsRunLocal(t *testing.T) {
	members := roster(3)

	first := NewDistributor(AssignRoundRobin, uuid.Nil, members)
	first.Next()
	first.Next()

	second := NewDistributor(AssignRoundRobin, uuid.Nil, members)
	assert.Equal(t, members[0].ID, *second.Next(), "a new run starts the rotation from the top")
}
