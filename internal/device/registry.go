package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"github.com/edirooss/ptz-server/internal/infrastructure/tourmgr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Info  ptz.DeviceInfo  // manufacturer/model/firmware for new devices; serials are generated
	Tours tourmgr.Options // per-device tour manager options; Device is filled in per key
}

// Registry owns every Device. Devices are created on first access and live
// for the lifetime of the process.
//
// The registry lock only covers the lookup/creation of a Device. All further
// state belongs to the Device and is guarded by the Device's own lock.
type Registry struct {
	log  *zap.Logger
	opts Options

	mu      sync.RWMutex
	devices map[Key]*Device

	seq atomic.Int64 // serial / hardware id counter
}

func NewRegistry(log *zap.Logger, opts Options) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Info.Manufacturer == "" {
		opts.Info.Manufacturer = "Dummy ONVIF Camera"
	}
	if opts.Info.Model == "" {
		opts.Info.Model = "Mock PTZ Camera V2"
	}
	if opts.Info.FirmwareVersion == "" {
		opts.Info.FirmwareVersion = "2.0.0"
	}
	return &Registry{
		log:     log.Named("registry"),
		opts:    opts,
		devices: make(map[Key]*Device),
	}
}

// GetOrCreate returns the Device for key, creating it on first access.
// Concurrent first accesses for the same key get the same instance.
func (r *Registry) GetOrCreate(key Key, address string) *Device {
	r.mu.RLock()
	d, ok := r.devices[key]
	r.mu.RUnlock()
	if ok {
		return d
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if d, ok := r.devices[key]; ok {
		return d
	}

	n := r.seq.Add(1)
	info := r.opts.Info
	info.SerialNumber = fmt.Sprintf("SN-%04d", n)
	info.HardwareID = fmt.Sprintf("HW-%04d", n)

	tours := r.opts.Tours
	tours.Device = string(key)

	d = newDevice(r.log, key, address, info, tours)
	r.devices[key] = d
	r.log.Info("device created", zap.String("device", string(key)), zap.String("serial", info.SerialNumber))
	return d
}

// Devices returns all devices ordered by key.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// StopAll stops every tour on every device and waits for the loops to exit.
func (r *Registry) StopAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, d := range r.Devices() {
		g.Go(func() error {
			if err := d.runner.StopAll(ctx); err != nil {
				return fmt.Errorf("stop tours of %s: %w", d.key, err)
			}
			return nil
		})
	}
	return g.Wait()
}
