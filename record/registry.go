package record

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeLatency = "application/vnd.lagtracker.latency+json"
)

// Decoder turns a stored message into a Decoded value.
type Decoder interface {
	Decode(msg logstore.Message) Decoded
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(msg logstore.Message) Decoded

func (f DecoderFunc) Decode(msg logstore.Message) Decoded {
	return f(msg)
}

// Registry selects a decoder by the content type header of a message. Messages without content type, or with an
// unknown one, are decoded by the fallback decoder.
type Registry struct {
	decoders map[string]Decoder
	fallback Decoder
}

// NewRegistry creates a registry with the watermark header decoder as fallback and the JSON decoders registered.
func NewRegistry() *Registry {
	r := &Registry{
		decoders: make(map[string]Decoder),
		fallback: DecoderFunc(decodeWatermarkHeader),
	}
	r.Register(ContentTypeJSON, DecoderFunc(decodeJSONWatermark))
	r.Register(ContentTypeLatency, DecoderFunc(decodeWatermarkHeader))
	return r
}

func (r *Registry) Register(contentType string, decoder Decoder) {
	r.decoders[contentType] = decoder
}

func (r *Registry) SetFallback(decoder Decoder) {
	r.fallback = decoder
}

func (r *Registry) Decode(msg logstore.Message) Decoded {
	if ct, ok := msg.Header(HeaderContentType); ok {
		if decoder, exists := r.decoders[string(ct)]; exists {
			return decoder.Decode(msg)
		}
	}
	return r.fallback.Decode(msg)
}

// WatermarkOf returns the watermark timestamp in ms of a message. Messages that don't decode into a typed record
// return logstore.ErrUnsupportedRecordType.
func (r *Registry) WatermarkOf(msg logstore.Message) (int64, error) {
	switch d := r.Decode(msg).(type) {
	case Typed:
		return d.Record.Watermark.Timestamp(), nil
	case DecodeError:
		return 0, fmt.Errorf("%w: %v", logstore.ErrUnsupportedRecordType, d.Err)
	default:
		return 0, fmt.Errorf("%w: record has no watermark", logstore.ErrUnsupportedRecordType)
	}
}

func decodeWatermarkHeader(msg logstore.Message) Decoded {
	raw, ok := msg.Header(HeaderWatermark)
	if !ok {
		return Opaque{Key: msg.Key, Bytes: msg.Value}
	}
	value, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return DecodeError{Key: msg.Key, Bytes: msg.Value, Err: fmt.Errorf("invalid watermark header '%s': %w", raw, err)}
	}
	ct, _ := msg.Header(HeaderContentType)
	return Typed{Record: Record{
		Key:         string(msg.Key),
		Value:       msg.Value,
		Watermark:   position.WatermarkOfValue(value),
		ContentType: string(ct),
	}}
}

// decodeJSONWatermark reads the watermark from a numeric "watermark" field of a JSON object value.
func decodeJSONWatermark(msg logstore.Message) Decoded {
	var envelope struct {
		Watermark *int64 `json:"watermark"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return DecodeError{Key: msg.Key, Bytes: msg.Value, Err: fmt.Errorf("invalid json value: %w", err)}
	}
	if envelope.Watermark == nil {
		return DecodeError{Key: msg.Key, Bytes: msg.Value, Err: fmt.Errorf("json value has no watermark field")}
	}
	return Typed{Record: Record{
		Key:         string(msg.Key),
		Value:       msg.Value,
		Watermark:   position.WatermarkOfValue(*envelope.Watermark),
		ContentType: ContentTypeJSON,
	}}
}
