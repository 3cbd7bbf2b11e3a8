package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "lagtracker", cfg.ClientID)
	assert.Equal(t, 10*time.Second, cfg.MetadataCacheTTL)
	assert.False(t, cfg.SASL.Enabled)
	assert.Equal(t, SASLMechanismPlain, cfg.SASL.Mechanism)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(cfg *Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			modify:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:    "no brokers",
			modify:  func(cfg *Config) { cfg.Brokers = nil },
			wantErr: true,
		},
		{
			name:    "zero request timeout",
			modify:  func(cfg *Config) { cfg.RequestTimeout = 0 },
			wantErr: true,
		},
		{
			name: "invalid sasl mechanism",
			modify: func(cfg *Config) {
				cfg.SASL.Enabled = true
				cfg.SASL.Mechanism = "MAGIC"
			},
			wantErr: true,
		},
		{
			name: "scram with username",
			modify: func(cfg *Config) {
				cfg.SASL.Enabled = true
				cfg.SASL.Mechanism = SASLMechanismScramSHA512
				cfg.SASL.Username = "admin"
				cfg.SASL.Password = "secret"
			},
			wantErr: false,
		},
		{
			name: "gssapi without auth type",
			modify: func(cfg *Config) {
				cfg.SASL.Enabled = true
				cfg.SASL.Mechanism = SASLMechanismGSSAPI
			},
			wantErr: true,
		},
		{
			name: "oauth without endpoint",
			modify: func(cfg *Config) {
				cfg.SASL.Enabled = true
				cfg.SASL.Mechanism = SASLMechanismOAuthBearer
			},
			wantErr: true,
		},
		{
			name: "ca set twice",
			modify: func(cfg *Config) {
				cfg.TLS.Enabled = true
				cfg.TLS.Ca = "pem"
				cfg.TLS.CaFilepath = "/etc/ca.pem"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.SetDefaults()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMessageFromRecord(t *testing.T) {
	ts := time.UnixMilli(1_700_000_000_000)
	msg := messageFromRecord(&kgo.Record{
		Key:       []byte("k"),
		Value:     []byte("v"),
		Timestamp: ts,
		Headers:   []kgo.RecordHeader{{Key: "watermark", Value: []byte("42")}},
	})

	assert.Equal(t, []byte("k"), msg.Key)
	assert.Equal(t, []byte("v"), msg.Value)
	assert.Equal(t, ts, msg.Timestamp)
	wm, ok := msg.Header("watermark")
	assert.True(t, ok)
	assert.Equal(t, []byte("42"), wm)
}
