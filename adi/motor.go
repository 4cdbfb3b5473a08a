package adi

import "github.com/pkg/errors"

// Legacy motor speed bounds. -127 is full reverse, 127 full forward.
const (
	MotorMaxSpeed = 127
	MotorMinSpeed = -127
)

func (a *ADI) motorSlot(port Port) (*slot, error) {
	if !port.valid() {
		return nil, errors.Wrapf(ErrInvalidPort, "port %d", port)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &a.slots[port]
	if s.config != LegacyPWM && s.config != LegacyServo {
		return nil, errors.Wrapf(ErrWrongConfig, "port %d is %s, not a motor output", port, s.config)
	}
	return s, nil
}

// MotorSet commands a signed speed on a legacy PWM or servo port, clamped to
// -127..127. Translation of the signed range into the output's native pulse
// width is the hardware layer's concern.
func (a *ADI) MotorSet(port Port, speed int) error {
	s, err := a.motorSlot(port)
	if err != nil {
		return err
	}
	if speed > MotorMaxSpeed {
		speed = MotorMaxSpeed
	} else if speed < MotorMinSpeed {
		speed = MotorMinSpeed
	}
	if err := a.h.SetPinValue(port.pin(), speed); err != nil {
		return errors.Wrapf(err, "writing motor port %d", port)
	}
	s.motorSpeed.Store(int32(speed))
	return nil
}

// MotorGet returns the last commanded speed, 0 if never set.
func (a *ADI) MotorGet(port Port) (int, error) {
	s, err := a.motorSlot(port)
	if err != nil {
		return 0, err
	}
	return int(s.motorSpeed.Load()), nil
}

// MotorStop is MotorSet with speed 0.
func (a *ADI) MotorStop(port Port) error {
	return a.MotorSet(port, 0)
}
