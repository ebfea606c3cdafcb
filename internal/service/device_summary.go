package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/edirooss/ptz-server/internal/device"
	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"go.uber.org/zap"
)

type SummaryOptions struct {
	// TTL controls how long we serve the in-memory snapshot; default 250ms.
	TTL time.Duration
	// RefreshTimeout bounds a single refresh; default 300ms.
	RefreshTimeout time.Duration
	// Allow serving stale on refresh error (graceful degrade).
	AllowStaleOnError bool
}

func (o *SummaryOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = 250 * time.Millisecond
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = 300 * time.Millisecond
	}
}

type TourSummary struct {
	Token string        `json:"token"`
	Name  string        `json:"name"`
	Steps int           `json:"steps"`
	State ptz.TourState `json:"state"`
}

type DeviceSummary struct {
	Key       string           `json:"key"`
	Info      ptz.DeviceInfo   `json:"info"`
	Status    ptz.DeviceStatus `json:"status"`
	Presets   int              `json:"presets"`
	Tours     []TourSummary    `json:"tours"`
	CreatedAt time.Time        `json:"created_at"`
}

// SummaryResult lets the handler set headers/telemetry.
type SummaryResult struct {
	Data        []DeviceSummary
	CacheHit    bool
	GeneratedAt time.Time // snapshot timestamp
}

// SummaryService serves a fleet-wide snapshot of every device.
type SummaryService struct {
	log      *zap.Logger
	registry *device.Registry

	mu      sync.RWMutex
	cache   []DeviceSummary
	expires time.Time
	genAt   time.Time

	opts SummaryOptions
	now  func() time.Time

	sg singleflight.Group
}

// NewSummaryService wires the registry and cache policy.
// Reuse a single instance per process (handlers call Get()).
func NewSummaryService(log *zap.Logger, registry *device.Registry, opts SummaryOptions) *SummaryService {
	opts.setDefaults()
	return &SummaryService{
		log:      log.Named("summary_service"),
		registry: registry,
		opts:     opts,
		now:      time.Now,
	}
}

// Get returns the cached snapshot or refreshes it when expired.
// Multiple concurrent refreshes are coalesced.
func (s *SummaryService) Get(ctx context.Context) (SummaryResult, error) {
	if res, ok := s.fresh(); ok {
		return res, nil
	}

	v, err, _ := s.sg.Do("summary-refresh", func() (any, error) {
		// Double-check freshness after we won the flight
		if res, ok := s.fresh(); ok {
			return res, nil
		}

		ctx, cancel := context.WithTimeout(ctx, s.opts.RefreshTimeout)
		defer cancel()

		start := s.now()
		data, err := s.refresh(ctx)
		if err != nil {
			if s.opts.AllowStaleOnError {
				if res, ok := s.stale(); ok {
					s.log.Warn("summary refresh failed; serving stale", zap.Error(err))
					return res, nil
				}
			}
			return nil, err
		}

		s.mu.Lock()
		s.cache = data
		s.expires = s.now().Add(s.opts.TTL)
		s.genAt = start
		s.mu.Unlock()

		return SummaryResult{Data: cloneSummaries(data), CacheHit: false, GeneratedAt: start}, nil
	})
	if err != nil {
		return SummaryResult{}, err
	}
	return v.(SummaryResult), nil
}

func (s *SummaryService) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.expires = time.Time{}
	s.genAt = time.Time{}
	s.mu.Unlock()
}

func (s *SummaryService) fresh() (SummaryResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil || !s.now().Before(s.expires) {
		return SummaryResult{}, false
	}
	return SummaryResult{Data: cloneSummaries(s.cache), CacheHit: true, GeneratedAt: s.genAt}, true
}

func (s *SummaryService) stale() (SummaryResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil {
		return SummaryResult{}, false
	}
	return SummaryResult{Data: cloneSummaries(s.cache), CacheHit: true, GeneratedAt: s.genAt}, true
}

// refresh walks the registry: devices -> status -> tours -> run states.
func (s *SummaryService) refresh(ctx context.Context) ([]DeviceSummary, error) {
	devs := s.registry.Devices()
	out := make([]DeviceSummary, 0, len(devs))

	for _, d := range devs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		states := d.TourStates()
		tours := d.ListTours()
		ts := make([]TourSummary, 0, len(tours))
		for _, t := range tours {
			state, ok := states[t.Token]
			if !ok {
				state = ptz.TourIdle
			}
			ts = append(ts, TourSummary{Token: t.Token, Name: t.Name, Steps: len(t.Steps), State: state})
		}

		out = append(out, DeviceSummary{
			Key:       string(d.Key()),
			Info:      d.Info(),
			Status:    d.Status(),
			Presets:   len(d.ListPresets()),
			Tours:     ts,
			CreatedAt: d.CreatedAt(),
		})
	}
	return out, nil
}

func cloneSummaries(in []DeviceSummary) []DeviceSummary {
	out := make([]DeviceSummary, len(in))
	for i, d := range in {
		d.Tours = append([]TourSummary(nil), d.Tours...)
		out[i] = d
	}
	return out
}
