package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edirooss/ptz-server/internal/infrastructure/tourmgr"
	"go.uber.org/zap"
)

func tourEventKey(device, tour string) string { return "ptz:" + device + ":tour:" + tour + ":last_event" }

// TourRepository mirrors tour run events into Redis:
//   - ptz:<device>:tour:<token>:last_event  JSON of the latest event, with TTL
//   - <channel>                             PUBLISH of every event
type TourRepository struct {
	client  *Client
	log     *zap.Logger
	channel string
	ttl     time.Duration
}

func NewTourRepository(log *zap.Logger, client *Client, channel string, ttl time.Duration) *TourRepository {
	return &TourRepository{
		client:  client,
		log:     log.Named("tour_repo"),
		channel: channel,
		ttl:     ttl,
	}
}

// SaveEvent stores ev as the latest event of its tour and publishes it, in one pipeline.
func (r *TourRepository) SaveEvent(ctx context.Context, ev tourmgr.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, tourEventKey(ev.Device, ev.Tour), raw, r.ttl)
	if r.channel != "" {
		pipe.Publish(ctx, r.channel, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("tour event pipeline failed",
			zap.String("device", ev.Device),
			zap.String("tour", ev.Tour),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
		return fmt.Errorf("save event %s/%s: %w", ev.Device, ev.Tour, err)
	}
	return nil
}
