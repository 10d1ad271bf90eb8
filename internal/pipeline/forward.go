package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/snarg/lecture-pipeline/internal/events"
)

// BrokerPublisher sends raw payloads to a topic. *mqttclient.Client satisfies it.
type BrokerPublisher interface {
	Publish(topic string, payload []byte) error
}

// ForwardEvents republishes bus events to {prefix}/videos/{video_id}/{type}
// until ctx is done. Events without a video go to {prefix}/pipeline/{type}.
func ForwardEvents(ctx context.Context, bus *events.Bus, pub BrokerPublisher, prefix string, log zerolog.Logger) {
	ch, cancel := bus.Subscribe(events.Filter{})
	defer cancel()

	prefix = strings.TrimSuffix(prefix, "/")
	log = log.With().Str("component", "forwarder").Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			topic := prefix + "/pipeline/" + e.Type
			if e.VideoID != "" {
				topic = prefix + "/videos/" + e.VideoID + "/" + e.Type
			}
			body, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if err := pub.Publish(topic, body); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("event forward failed")
			}
		}
	}
}
