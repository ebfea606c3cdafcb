package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"github.com/edirooss/ptz-server/internal/infrastructure/objectstore"
	"github.com/edirooss/ptz-server/internal/infrastructure/tourmgr"
	"go.uber.org/zap"
)

// Device is the in-memory state of one camera.
//
// Runtime model:
//   - info is assigned at creation and never changes.
//   - mu guards the PTZ fields (position, motion, velocity, home) and the
//     token counters. Collection mutations also take mu so validation and
//     write happen as one step.
//   - Concurrent moves are not ordered: the last writer wins, but readers
//     never see a partially written position.
//   - runner is never called with mu held.
type Device struct {
	log       *zap.Logger
	key       Key
	address   string
	info      ptz.DeviceInfo
	createdAt time.Time

	mu        sync.RWMutex
	position  ptz.Vector
	velocity  ptz.Vector
	motion    ptz.MotionState
	home      ptz.Vector
	presetSeq int
	tourSeq   int

	presets *objectstore.ObjectStore[ptz.Preset]
	tours   *objectstore.ObjectStore[ptz.Tour]
	runner  *tourmgr.Manager
}

func newDevice(log *zap.Logger, key Key, address string, info ptz.DeviceInfo, tours tourmgr.Options) *Device {
	log = log.With(zap.String("device", string(key)))
	d := &Device{
		log:       log,
		key:       key,
		address:   address,
		info:      info,
		createdAt: time.Now(),
		motion:    ptz.MotionIdle,
		presets:   objectstore.NewObjectStore[ptz.Preset](log),
		tours:     objectstore.NewObjectStore[ptz.Tour](log),
	}
	d.runner = tourmgr.NewManager(log, tourTarget{d}, tours)
	return d
}

func (d *Device) Key() Key { return d.key }
func (d *Device) Info() ptz.DeviceInfo { return d.info }
func (d *Device) CreatedAt() time.Time { return d.createdAt }
func (d *Device) Capabilities() ptz.Capabilities {
	return ptz.Capabilities{PTZ: true, Imaging: true, Media: true, Events: true, PresetTour: true}
}

var profiles = []ptz.Profile{
	{Token: "profile_1", Name: "Main Stream"},
	{Token: "profile_2", Name: "Sub Stream"},
}

func (d *Device) Profiles() []ptz.Profile {
	return append([]ptz.Profile(nil), profiles...)
}

// StreamURI derives a placeholder RTSP URI for profile. An empty profile
// selects the first one.
func (d *Device) StreamURI(profile string) (ptz.StreamURI, error) {
	if profile == "" {
		profile = profiles[0].Token
	}
	for _, p := range profiles {
		if p.Token == profile {
			return ptz.StreamURI{
				URI:     fmt.Sprintf("rtsp://%s/stream/%s", hostOf(d.address), p.Token),
				Timeout: "PT60S",
			}, nil
		}
	}
	return ptz.StreamURI{}, ptz.NotFound("media.stream_uri", "profile %q not found", profile)
}

// tourTarget exposes the device to its tour manager.
type tourTarget struct{ d *Device }

func (t tourTarget) Tour(token string) (ptz.Tour, bool) {
	tour, ok := t.d.tours.GetOne(token)
	if !ok {
		return ptz.Tour{}, false
	}
	return tour.Clone(), true
}

func (t tourTarget) Preset(token string) (ptz.Preset, bool) {
	return t.d.presets.GetOne(token)
}

func (t tourTarget) TourMove(pos ptz.Vector, _ float64) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	t.d.position = pos.Clamp()
	t.d.velocity = ptz.Vector{}
	t.d.motion = ptz.MotionMoving
}

func (t tourTarget) TourSettle() {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	// A continuous move issued since the tour move owns the motion state now.
	if t.d.velocity == (ptz.Vector{}) {
		t.d.motion = ptz.MotionIdle
	}
}
