package device

import (
	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"go.uber.org/zap"
)

// AbsoluteMove moves to pos. Moves are instantaneous: the device is idle at
// the target when the call returns.
func (d *Device) AbsoluteMove(pos ptz.Vector, speed float64) (ptz.DeviceStatus, error) {
	const op = "ptz.absolute_move"
	if err := ptz.ValidatePosition(op, pos); err != nil {
		return ptz.DeviceStatus{}, err
	}
	if err := ptz.ValidateSpeed(op, speed); err != nil {
		return ptz.DeviceStatus{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.moveLocked(pos)
	d.log.Debug("absolute move", zap.Any("position", pos), zap.Float64("speed", speed))
	return d.statusLocked(), nil
}

// RelativeMove offsets the current position by delta. The result is clamped
// into range rather than rejected.
func (d *Device) RelativeMove(delta ptz.Vector, speed float64) (ptz.DeviceStatus, error) {
	const op = "ptz.relative_move"
	if err := ptz.ValidateFinite(op, delta); err != nil {
		return ptz.DeviceStatus{}, err
	}
	if err := ptz.ValidateSpeed(op, speed); err != nil {
		return ptz.DeviceStatus{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.moveLocked(d.position.Add(delta).Clamp())
	d.log.Debug("relative move", zap.Any("delta", delta), zap.Any("position", d.position))
	return d.statusLocked(), nil
}

// ContinuousMove starts moving at velocity until Stop. It never times out and
// leaves the position unchanged.
func (d *Device) ContinuousMove(velocity ptz.Vector) (ptz.DeviceStatus, error) {
	if err := ptz.ValidateVelocity("ptz.continuous_move", velocity); err != nil {
		return ptz.DeviceStatus{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.velocity = velocity
	d.motion = ptz.MotionMoving
	return d.statusLocked(), nil
}

// Stop halts any motion. Idempotent.
func (d *Device) Stop() ptz.DeviceStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.velocity = ptz.Vector{}
	d.motion = ptz.MotionIdle
	return d.statusLocked()
}

func (d *Device) Status() ptz.DeviceStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.statusLocked()
}

// SetHome stores the current position as home.
func (d *Device) SetHome() ptz.Vector {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.home = d.position
	return d.home
}

// GotoHome moves to the home position (origin until SetHome is called).
func (d *Device) GotoHome(speed float64) (ptz.DeviceStatus, error) {
	if err := ptz.ValidateSpeed("ptz.goto_home", speed); err != nil {
		return ptz.DeviceStatus{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.moveLocked(d.home)
	return d.statusLocked(), nil
}

func (d *Device) moveLocked(pos ptz.Vector) {
	d.position = pos
	d.velocity = ptz.Vector{}
	d.motion = ptz.MotionIdle
}

func (d *Device) statusLocked() ptz.DeviceStatus {
	return ptz.DeviceStatus{Position: d.position, Motion: d.motion, Velocity: d.velocity}
}
