package service

import (
	"github.com/edirooss/ptz-server/internal/device"
	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"github.com/edirooss/ptz-server/internal/infrastructure/tourmgr"
	"go.uber.org/zap"
)

// PTZService is the synchronous entry point used by transports.
//
// Runtime model:
//   - Every call resolves the caller's identity to a device key and fetches
//     (or lazily creates) that device from the registry.
//   - Calls return immediately. Only tour start/stop arm or tear down a
//     background loop; no call waits on a tour.
//
// Contract:
//   - Failures are *ptz.Error values carrying a Kind
//     (not_found, invalid_transition, invalid_argument, conflict).
type PTZService struct {
	log      *zap.Logger
	registry *device.Registry
}

func NewPTZService(log *zap.Logger, registry *device.Registry) *PTZService {
	return &PTZService{
		log:      log.Named("ptz_service"),
		registry: registry,
	}
}

func (s *PTZService) device(id device.Identity) (*device.Device, error) {
	key, err := device.Resolve(id)
	if err != nil {
		return nil, err
	}
	return s.registry.GetOrCreate(key, id.Address), nil
}

// ---- Device queries ----

func (s *PTZService) GetDeviceInformation(id device.Identity) (ptz.DeviceInfo, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.DeviceInfo{}, err
	}
	return d.Info(), nil
}

func (s *PTZService) GetCapabilities(id device.Identity) (ptz.Capabilities, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.Capabilities{}, err
	}
	return d.Capabilities(), nil
}

func (s *PTZService) GetProfiles(id device.Identity) ([]ptz.Profile, error) {
	d, err := s.device(id)
	if err != nil {
		return nil, err
	}
	return d.Profiles(), nil
}

func (s *PTZService) GetStreamURI(id device.Identity, profile string) (ptz.StreamURI, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.StreamURI{}, err
	}
	return d.StreamURI(profile)
}

// ---- PTZ control ----

func (s *PTZService) GetStatus(id device.Identity) (ptz.DeviceStatus, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.DeviceStatus{}, err
	}
	return d.Status(), nil
}

func (s *PTZService) AbsoluteMove(id device.Identity, pos ptz.Vector, speed float64) (ptz.DeviceStatus, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.DeviceStatus{}, err
	}
	return d.AbsoluteMove(pos, speed)
}

func (s *PTZService) RelativeMove(id device.Identity, delta ptz.Vector, speed float64) (ptz.DeviceStatus, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.DeviceStatus{}, err
	}
	return d.RelativeMove(delta, speed)
}

func (s *PTZService) ContinuousMove(id device.Identity, velocity ptz.Vector) (ptz.DeviceStatus, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.DeviceStatus{}, err
	}
	return d.ContinuousMove(velocity)
}

func (s *PTZService) Stop(id device.Identity) (ptz.DeviceStatus, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.DeviceStatus{}, err
	}
	return d.Stop(), nil
}

func (s *PTZService) SetHome(id device.Identity) (ptz.Vector, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.Vector{}, err
	}
	return d.SetHome(), nil
}

func (s *PTZService) GotoHome(id device.Identity, speed float64) (ptz.DeviceStatus, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.DeviceStatus{}, err
	}
	return d.GotoHome(speed)
}

// ---- Presets ----

func (s *PTZService) ListPresets(id device.Identity) ([]ptz.Preset, error) {
	d, err := s.device(id)
	if err != nil {
		return nil, err
	}
	return d.ListPresets(), nil
}

func (s *PTZService) SetPreset(id device.Identity, token, name string, pos *ptz.Vector) (ptz.Preset, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.Preset{}, err
	}
	return d.SetPreset(token, name, pos)
}

func (s *PTZService) CreatePreset(id device.Identity, token, name string, pos *ptz.Vector) (ptz.Preset, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.Preset{}, err
	}
	return d.CreatePreset(token, name, pos)
}

func (s *PTZService) UpdatePreset(id device.Identity, token string, name *string, pos *ptz.Vector) (ptz.Preset, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.Preset{}, err
	}
	return d.UpdatePreset(token, name, pos)
}

func (s *PTZService) RemovePreset(id device.Identity, token string) error {
	d, err := s.device(id)
	if err != nil {
		return err
	}
	return d.RemovePreset(token)
}

func (s *PTZService) GotoPreset(id device.Identity, token string, speed float64) (ptz.DeviceStatus, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.DeviceStatus{}, err
	}
	return d.GotoPreset(token, speed)
}

// ---- Tours ----

func (s *PTZService) ListTours(id device.Identity) ([]ptz.Tour, error) {
	d, err := s.device(id)
	if err != nil {
		return nil, err
	}
	return d.ListTours(), nil
}

func (s *PTZService) GetTour(id device.Identity, token string) (ptz.Tour, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.Tour{}, err
	}
	return d.GetTour(token)
}

func (s *PTZService) CreateTour(id device.Identity, spec device.TourSpec) (ptz.Tour, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.Tour{}, err
	}
	return d.CreateTour(spec)
}

func (s *PTZService) ModifyTour(id device.Identity, token string, patch device.TourPatch) (ptz.Tour, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.Tour{}, err
	}
	return d.ModifyTour(token, patch)
}

func (s *PTZService) DeleteTour(id device.Identity, token string) error {
	d, err := s.device(id)
	if err != nil {
		return err
	}
	return d.DeleteTour(token)
}

func (s *PTZService) OperateTour(id device.Identity, token string, action ptz.TourAction) (ptz.TourStatus, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.TourStatus{}, err
	}
	return d.OperateTour(token, action)
}

func (s *PTZService) TourStatus(id device.Identity, token string) (ptz.TourStatus, error) {
	d, err := s.device(id)
	if err != nil {
		return ptz.TourStatus{}, err
	}
	return d.TourStatus(token)
}

func (s *PTZService) TourEvents(id device.Identity, token string, n int) ([]tourmgr.Event, error) {
	d, err := s.device(id)
	if err != nil {
		return nil, err
	}
	return d.TourEvents(token, n)
}
