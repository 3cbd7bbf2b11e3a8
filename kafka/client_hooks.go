package kafka

import (
	"net"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// clientHooks log broker connects and disconnects of every client created by the service.
type clientHooks struct {
	logger *zap.Logger
}

var (
	_ kgo.HookBrokerConnect    = (*clientHooks)(nil)
	_ kgo.HookBrokerDisconnect = (*clientHooks)(nil)
)

func newClientHooks(logger *zap.Logger) *clientHooks {
	return &clientHooks{logger: logger}
}

func (c *clientHooks) OnBrokerConnect(meta kgo.BrokerMetadata, dialDur time.Duration, _ net.Conn, err error) {
	if err != nil {
		c.logger.Debug("kafka connection failed",
			zap.String("broker_host", meta.Host),
			zap.Int32("broker_id", meta.NodeID),
			zap.Error(err))
		return
	}
	c.logger.Debug("kafka connection succeeded",
		zap.String("host", meta.Host),
		zap.Int32("broker_id", meta.NodeID),
		zap.Duration("dial_duration", dialDur))
}

func (c *clientHooks) OnBrokerDisconnect(meta kgo.BrokerMetadata, _ net.Conn) {
	c.logger.Debug("kafka broker disconnected",
		zap.String("host", meta.Host),
		zap.Int32("broker_id", meta.NodeID))
}
