package events

import (
	"context"

	"github.com/edirooss/ptz-server/internal/infrastructure/tourmgr"
)

type eventSaver interface {
	SaveEvent(ctx context.Context, ev tourmgr.Event) error
}

// RedisSink stores the latest event per tour and publishes every event.
type RedisSink struct {
	repo eventSaver
}

func NewRedisSink(repo eventSaver) *RedisSink {
	return &RedisSink{repo: repo}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Handle(ctx context.Context, ev tourmgr.Event) error {
	return s.repo.SaveEvent(ctx, ev)
}
