package logstore

import (
	"time"

	"github.com/cloudhut/lagtracker/position"
)

// Header is a single record header.
type Header struct {
	Key   string
	Value []byte
}

// Message is a record as it is stored in a log: raw key, value and headers.
type Message struct {
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
}

// Header returns the value of the last header with the given key.
func (m Message) Header(key string) ([]byte, bool) {
	for i := len(m.Headers) - 1; i >= 0; i-- {
		if m.Headers[i].Key == key {
			return m.Headers[i].Value, true
		}
	}
	return nil, false
}

// LogRecord is a message read from a log together with its offset.
type LogRecord struct {
	Message Message
	Offset  position.LogOffset
}
