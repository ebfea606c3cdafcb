package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edirooss/ptz-server/internal/infrastructure/tourmgr"
)

type publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes each event to <prefix>/<device>/tours/<token>/events.
// The device key is made topic-safe: MQTT wildcards and separators become '_'.
type MQTTSink struct {
	client publisher
	prefix string
	qos    byte
}

func NewMQTTSink(client publisher, prefix string, qos byte) *MQTTSink {
	return &MQTTSink{
		client: client,
		prefix: strings.TrimRight(prefix, "/"),
		qos:    qos,
	}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Handle(ctx context.Context, ev tourmgr.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.client.Publish(s.Topic(ev), payload, s.qos, false)
}

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", ":", "_")

func (s *MQTTSink) Topic(ev tourmgr.Event) string {
	return s.prefix + "/" + topicReplacer.Replace(ev.Device) + "/tours/" + topicReplacer.Replace(ev.Tour) + "/events"
}
