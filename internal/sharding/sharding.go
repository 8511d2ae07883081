package sharding

import (
	"fmt"
	"hash/crc32"
)

// ShardCount is the fixed number of event-subject partitions.
const ShardCount = 256

// GetShardID calculates the deterministic shard ID for a container ID.
func GetShardID(containerID string) int {
	checksum := crc32.ChecksumIEEE([]byte(containerID))
	return int(checksum % ShardCount)
}

// EventSubject returns the JetStream subject committed events for a
// container are published on. Keeping the container ID as the final token
// gives per-container ordering to every consumer.
// Format: container.event.{shard_id}.{container_id}
func EventSubject(containerID string) string {
	return fmt.Sprintf("container.event.%d.%s", GetShardID(containerID), containerID)
}
