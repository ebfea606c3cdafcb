package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/edirooss/ptz-server/internal/infrastructure/tourmgr"
	"go.uber.org/zap"
)

// Sink delivers tour events to an external system.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev tourmgr.Event) error
}

const (
	defaultQueueSize   = 1024
	defaultSinkTimeout = 2 * time.Second
	flushTimeout       = 3 * time.Second
)

// Dispatcher fans tour events out to sinks from a single goroutine.
//
// Contract:
//   - Notify never blocks. When the queue is full the event is dropped and counted.
//   - Sink errors are logged and never reach the tour loop.
//   - Run drains the queue until ctx is done, then flushes what is left.
type Dispatcher struct {
	log         *zap.Logger
	sinks       []Sink
	queue       chan tourmgr.Event
	sinkTimeout time.Duration

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

func NewDispatcher(log *zap.Logger, queueSize int, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		log:         log.Named("events"),
		sinks:       sinks,
		queue:       make(chan tourmgr.Event, queueSize),
		sinkTimeout: defaultSinkTimeout,
	}
}

// Notify implements tourmgr.Notifier.
func (d *Dispatcher) Notify(ev tourmgr.Event) {
	if len(d.sinks) == 0 {
		return
	}
	select {
	case d.queue <- ev:
	default:
		if n := d.dropped.Add(1); n == 1 || n%100 == 0 {
			d.log.Warn("event queue full; dropping", zap.Uint64("dropped", n))
		}
	}
}

func (d *Dispatcher) Dropped() uint64   { return d.dropped.Load() }
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("dispatcher started", zap.Int("sinks", len(d.sinks)))
	for {
		select {
		case ev := <-d.queue:
			d.deliver(context.Background(), ev)
		case <-ctx.Done():
			d.flush()
			d.log.Info("dispatcher stopped",
				zap.Uint64("delivered", d.delivered.Load()),
				zap.Uint64("dropped", d.dropped.Load()))
			return nil
		}
	}
}

func (d *Dispatcher) flush() {
	deadline := time.NewTimer(flushTimeout)
	defer deadline.Stop()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(context.Background(), ev)
		case <-deadline.C:
			d.log.Warn("flush timeout; events left in queue", zap.Int("pending", len(d.queue)))
			return
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(parent context.Context, ev tourmgr.Event) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(parent, d.sinkTimeout)
		err := s.Handle(ctx, ev)
		cancel()
		if err != nil {
			d.log.Warn("sink failed",
				zap.String("sink", s.Name()),
				zap.String("device", ev.Device),
				zap.String("tour", ev.Tour),
				zap.String("type", string(ev.Type)),
				zap.Error(err))
		}
	}
	d.delivered.Add(1)
}
