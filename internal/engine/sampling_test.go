package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleBucket_Deterministic(t *testing.T) {
	first := SampleBucket("acme", "f-001")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, SampleBucket("acme", "f-001"))
	}
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 100)
}

func TestInSample_Bounds(t *testing.T) {
	assert.False(t, InSample("acme", "f-001", 0))
	assert.True(t, InSample("acme", "f-001", 100))
}

func TestInSample_RoughlyProportional(t *testing.T) {
	sampled := 0
	total := 1000
	for i := 0; i < total; i++ {
		if InSample("acme", fmt.Sprintf("finding-%d", i), 20) {
			sampled++
		}
	}

	// FNV spreads well enough that a 20% sample of 1000 IDs lands near 200
	assert.Greater(t, sampled, 120)
	assert.Less(t, sampled, 280)
}

func TestPartitionFor_StablePerTenant(t *testing.T) {
	first := PartitionFor("acme", 8)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, PartitionFor("acme", 8))
	}
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 8)
}

func TestPartitionFor_SinglePartition(t *testing.T) {
	assert.Equal(t, 0, PartitionFor("any-tenant", 1))
	assert.Equal(t, 0, PartitionFor("any-tenant", 0))
}
