package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudhut/lagtracker/logstore"
	"github.com/cloudhut/lagtracker/position"
)

func TestRegistry_Decode(t *testing.T) {
	registry := NewRegistry()
	wm := position.WatermarkOf(1_700_000_000_000, 7)

	tests := []struct {
		name  string
		msg   logstore.Message
		check func(t *testing.T, d Decoded)
	}{
		{
			name: "watermark header",
			msg:  Record{Key: "doc-1", Value: []byte("v"), Watermark: wm}.Message(),
			check: func(t *testing.T, d Decoded) {
				typed, ok := d.(Typed)
				require.True(t, ok)
				assert.Equal(t, "doc-1", typed.Record.Key)
				assert.Equal(t, wm.Value(), typed.Record.Watermark.Value())
			},
		},
		{
			name: "no watermark",
			msg:  logstore.Message{Key: []byte("k"), Value: []byte("plain")},
			check: func(t *testing.T, d Decoded) {
				opaque, ok := d.(Opaque)
				require.True(t, ok)
				assert.Equal(t, []byte("plain"), opaque.Bytes)
			},
		},
		{
			name: "malformed watermark header",
			msg: logstore.Message{Headers: []logstore.Header{
				{Key: HeaderWatermark, Value: []byte("yesterday")},
			}},
			check: func(t *testing.T, d Decoded) {
				_, ok := d.(DecodeError)
				assert.True(t, ok)
			},
		},
		{
			name: "json watermark field",
			msg: logstore.Message{
				Value:   []byte(`{"id": 3, "watermark": 111411200000000}`),
				Headers: []logstore.Header{{Key: HeaderContentType, Value: []byte(ContentTypeJSON)}},
			},
			check: func(t *testing.T, d Decoded) {
				typed, ok := d.(Typed)
				require.True(t, ok)
				assert.Equal(t, int64(111411200000000)>>16, typed.Record.Watermark.Timestamp())
			},
		},
		{
			name: "json without watermark",
			msg: logstore.Message{
				Value:   []byte(`{"id": 3}`),
				Headers: []logstore.Header{{Key: HeaderContentType, Value: []byte(ContentTypeJSON)}},
			},
			check: func(t *testing.T, d Decoded) {
				_, ok := d.(DecodeError)
				assert.True(t, ok)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, registry.Decode(tt.msg))
		})
	}
}

func TestRegistry_WatermarkOf(t *testing.T) {
	registry := NewRegistry()

	ts, err := registry.WatermarkOf(Record{Watermark: position.WatermarkOfTimestamp(42_000)}.Message())
	require.NoError(t, err)
	assert.Equal(t, int64(42_000), ts)

	_, err = registry.WatermarkOf(logstore.Message{Value: []byte("no watermark")})
	assert.ErrorIs(t, err, logstore.ErrUnsupportedRecordType)
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	registry.Register("application/x-fixed", DecoderFunc(func(msg logstore.Message) Decoded {
		return Typed{Record: Record{Key: string(msg.Key), Watermark: position.WatermarkOfTimestamp(5)}}
	}))

	ts, err := registry.WatermarkOf(logstore.Message{
		Key:     []byte("k"),
		Headers: []logstore.Header{{Key: HeaderContentType, Value: []byte("application/x-fixed")}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), ts)

	// registries are independent
	_, err = NewRegistry().WatermarkOf(logstore.Message{
		Headers: []logstore.Header{{Key: HeaderContentType, Value: []byte("application/x-fixed")}},
	})
	assert.ErrorIs(t, err, logstore.ErrUnsupportedRecordType)
}
