package engine

import "hash/fnv"

// SampleBucket maps a finding reference to a stable bucket in [0,100).
// Sampling decisions must be reproducible, so the bucket is derived from an
// FNV-1a hash of the finding reference rather than a random source.
func SampleBucket(tenantID, findingID string) int {
	h := fnv.New32a()
	h.Write([]byte(tenantID))
	h.Write([]byte("/"))
	h.Write([]byte(findingID))
	return int(h.Sum32() % 100)
}

// InSample reports whether a finding falls into a percent-sized
// deterministic sample.
func InSample(tenantID, findingID string, percent int) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	return SampleBucket(tenantID, findingID) < percent
}

// PartitionFor maps a tenant to a worker partition. All of a tenant's
// findings land on the same partition, preserving per-tenant FIFO.
func PartitionFor(tenantID string, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(tenantID))
	return int(h.Sum32() % uint32(partitions))
}
