package device

import (
	"fmt"
	"strings"

	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"go.uber.org/zap"
)

// ListPresets returns presets in creation order.
func (d *Device) ListPresets() []ptz.Preset {
	_, vals := d.presets.GetList()
	return vals
}

func (d *Device) GetPreset(token string) (ptz.Preset, error) {
	p, ok := d.presets.GetOne(token)
	if !ok {
		return ptz.Preset{}, ptz.NotFound("preset.get", "preset %q not found", token)
	}
	return p, nil
}

// SetPreset upserts a preset. An empty token generates a fresh one; a nil
// position captures the current position.
func (d *Device) SetPreset(token, name string, pos *ptz.Vector) (ptz.Preset, error) {
	return d.putPreset("preset.set", token, name, pos, false)
}

// CreatePreset is SetPreset that refuses to overwrite an existing token.
func (d *Device) CreatePreset(token, name string, pos *ptz.Vector) (ptz.Preset, error) {
	return d.putPreset("preset.create", token, name, pos, true)
}

func (d *Device) putPreset(op, token, name string, pos *ptz.Vector, unique bool) (ptz.Preset, error) {
	if pos != nil {
		if err := ptz.ValidatePosition(op, *pos); err != nil {
			return ptz.Preset{}, err
		}
	}
	token = strings.TrimSpace(token)

	d.mu.Lock()
	defer d.mu.Unlock()

	if token == "" {
		token = d.nextTokenLocked(&d.presetSeq, "preset", d.presets.Has)
	} else if unique && d.presets.Has(token) {
		return ptz.Preset{}, ptz.Conflict(op, "preset %q already exists", token)
	}

	p := ptz.Preset{Token: token, Name: name, Position: d.position}
	if pos != nil {
		p.Position = *pos
	}
	if p.Name == "" {
		p.Name = token
	}

	created := d.presets.Upsert(token, p)
	d.log.Info("preset saved", zap.String("token", token), zap.Bool("created", created))
	return p, nil
}

// UpdatePreset renames and/or moves an existing preset.
func (d *Device) UpdatePreset(token string, name *string, pos *ptz.Vector) (ptz.Preset, error) {
	const op = "preset.update"
	if pos != nil {
		if err := ptz.ValidatePosition(op, *pos); err != nil {
			return ptz.Preset{}, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.presets.GetOne(token)
	if !ok {
		return ptz.Preset{}, ptz.NotFound(op, "preset %q not found", token)
	}
	if name != nil && *name != "" {
		p.Name = *name
	}
	if pos != nil {
		p.Position = *pos
	}
	d.presets.Update(token, p)
	return p, nil
}

// RemovePreset deletes a preset. Tours referencing it are left untouched;
// their runs skip the missing step.
func (d *Device) RemovePreset(token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.presets.Delete(token) {
		return ptz.NotFound("preset.remove", "preset %q not found", token)
	}
	d.log.Info("preset removed", zap.String("token", token))
	return nil
}

// GotoPreset moves to the preset's position.
func (d *Device) GotoPreset(token string, speed float64) (ptz.DeviceStatus, error) {
	const op = "preset.goto"
	if err := ptz.ValidateSpeed(op, speed); err != nil {
		return ptz.DeviceStatus{}, err
	}
	p, ok := d.presets.GetOne(token)
	if !ok {
		return ptz.DeviceStatus{}, ptz.NotFound(op, "preset %q not found", token)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.moveLocked(p.Position)
	return d.statusLocked(), nil
}

// nextTokenLocked returns "<prefix>_<n>" for the next n not already taken.
func (d *Device) nextTokenLocked(seq *int, prefix string, taken func(string) bool) string {
	for {
		*seq++
		token := fmt.Sprintf("%s_%d", prefix, *seq)
		if !taken(token) {
			return token
		}
	}
}
