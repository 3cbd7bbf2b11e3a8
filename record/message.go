package record

import (
	"strconv"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

const (
	HeaderWatermark   = "watermark"
	HeaderContentType = "content-type"
)

// Record is a watermark bearing record.
type Record struct {
	Key         string
	Value       []byte
	Watermark   position.Watermark
	ContentType string
}

// Message encodes the record into its stored form. The message timestamp is the watermark time so that offsets can
// be looked up by timestamp.
func (r Record) Message() logstore.Message {
	headers := []logstore.Header{{Key: HeaderWatermark, Value: []byte(strconv.FormatInt(r.Watermark.Value(), 10))}}
	if r.ContentType != "" {
		headers = append(headers, logstore.Header{Key: HeaderContentType, Value: []byte(r.ContentType)})
	}
	return logstore.Message{
		Key:       []byte(r.Key),
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Watermark.Time(),
	}
}
