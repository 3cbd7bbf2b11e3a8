package position

import "fmt"

// LogPartition identifies one partition of a named log.
type LogPartition struct {
	Name      string
	Partition int
}

func (p LogPartition) String() string {
	return fmt.Sprintf("%s-%02d", p.Name, p.Partition)
}

// LogOffset is a position within a partition.
type LogOffset struct {
	Partition LogPartition
	Offset    int64
}

// Next returns the offset of the record following this one.
func (o LogOffset) Next() LogOffset {
	return LogOffset{Partition: o.Partition, Offset: o.Offset + 1}
}

func (o LogOffset) String() string {
	return fmt.Sprintf("%v:+%d", o.Partition, o.Offset)
}

// LogPartitionGroup is a single partition of a log as seen by one consumer group.
type LogPartitionGroup struct {
	Group     string
	Name      string
	Partition int
}

func (g LogPartitionGroup) LogPartition() LogPartition {
	return LogPartition{Name: g.Name, Partition: g.Partition}
}

// Key returns the escaped "group:name:partition" key, see EncodeKey.
func (g LogPartitionGroup) Key() string {
	return EncodeKey(g.Group, g.Name, g.Partition)
}
