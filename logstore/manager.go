package logstore

import (
	"context"
	"time"

	"github.com/cloudhut/lagtracker/position"
)

// NoOffset marks a partition without committed offset or without a record matching a timestamp.
const NoOffset int64 = -1

// Manager gives access to named, partitioned logs and the committed offsets of their consumer groups.
// Offset slices are indexed by partition.
type Manager interface {
	Exists(ctx context.Context, name string) (bool, error)
	ListAll(ctx context.Context) ([]string, error)
	Size(ctx context.Context, name string) (int, error)
	ListConsumerGroups(ctx context.Context, name string) ([]string, error)

	// Append writes a message to a partition and returns its offset.
	Append(ctx context.Context, name string, partition int, msg Message) (position.LogOffset, error)

	// EndOffsets returns the offset following the last appended record of each partition.
	EndOffsets(ctx context.Context, name string) ([]int64, error)
	// StartOffsets returns the offset of the earliest retained record of each partition.
	StartOffsets(ctx context.Context, name string) ([]int64, error)
	// CommittedOffsets returns the committed offset of a group per partition, NoOffset if never committed.
	CommittedOffsets(ctx context.Context, name, group string) ([]int64, error)
	// OffsetsForTimestamp returns the earliest offset whose record timestamp is >= t, NoOffset when there is none.
	OffsetsForTimestamp(ctx context.Context, name string, t time.Time) ([]int64, error)

	// Commit persists the offset of one partition for a group.
	Commit(ctx context.Context, group string, offset position.LogOffset) error

	// CreateTailer creates a reader on the given partitions. Reading never commits.
	CreateTailer(ctx context.Context, group string, partitions ...position.LogPartition) (Tailer, error)

	Close() error
}

// Tailer reads records sequentially from a set of partitions.
type Tailer interface {
	// Seek moves the read position of the offset's partition.
	Seek(offset position.LogOffset) error
	// Read returns the next record, or nil when no record is available within the timeout.
	Read(ctx context.Context, timeout time.Duration) (*LogRecord, error)
	Close() error
}
