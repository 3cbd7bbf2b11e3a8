package controller

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloudhut/lagtracker/logstore"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseTimestamp parses an ISO-8601 timestamp. Timestamps without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: '%v' is not an ISO-8601 timestamp", logstore.ErrInvalidArgument, s)
}
