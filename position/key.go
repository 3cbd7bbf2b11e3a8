package position

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	keyDelimiter = ':'
	keyEscape    = '\\'
)

// EncodeKey builds the "group:name:partition" key of a partition group. Delimiters and escape characters inside
// names are prefixed with a backslash so that DecodeKey can always split the key again.
func EncodeKey(group, name string, partition int) string {
	var sb strings.Builder
	sb.Grow(len(group) + len(name) + 8)
	escapeKeyPart(&sb, group)
	sb.WriteByte(keyDelimiter)
	escapeKeyPart(&sb, name)
	sb.WriteByte(keyDelimiter)
	sb.WriteString(strconv.Itoa(partition))
	return sb.String()
}

// DecodeKey splits a key created by EncodeKey.
func DecodeKey(key string) (LogPartitionGroup, error) {
	parts := make([]string, 0, 3)
	var sb strings.Builder
	escaped := false
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case escaped:
			sb.WriteByte(c)
			escaped = false
		case c == keyEscape:
			escaped = true
		case c == keyDelimiter:
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	if escaped {
		return LogPartitionGroup{}, fmt.Errorf("invalid key '%v': dangling escape character", key)
	}
	parts = append(parts, sb.String())
	if len(parts) != 3 {
		return LogPartitionGroup{}, fmt.Errorf("invalid key '%v': expected 3 parts but got %d", key, len(parts))
	}

	partition, err := strconv.Atoi(parts[2])
	if err != nil || partition < 0 {
		return LogPartitionGroup{}, fmt.Errorf("invalid key '%v': partition is not a valid number", key)
	}

	return LogPartitionGroup{Group: parts[0], Name: parts[1], Partition: partition}, nil
}

func escapeKeyPart(sb *strings.Builder, part string) {
	for i := 0; i < len(part); i++ {
		c := part[i]
		if c == keyDelimiter || c == keyEscape {
			sb.WriteByte(keyEscape)
		}
		sb.WriteByte(c)
	}
}
