package adi

import (
	"time"

	"github.com/pkg/errors"
)

// Calibration window: the mean of 512 samples taken 1 ms apart, about half a
// second of blocking. The baseline is retained at 16x the ADC's 12-bit
// precision so the high-resolution calibrated read does not accumulate
// round-off when integrated.
const (
	calibrationSamples  = 512
	calibrationInterval = time.Millisecond

	// AnalogMax is the largest raw reading the 12-bit ADC produces.
	AnalogMax = 4095
)

// rawAnalog reads the ADC without a role check. Callers have already
// validated the configuration.
func (a *ADI) rawAnalog(port Port) (int, error) {
	v, err := a.h.PinValue(port.pin())
	if err != nil {
		return 0, errors.Wrapf(err, "reading analog port %d", port)
	}
	return v, nil
}

func (a *ADI) analogInput(port Port) (Config, error) {
	cfg, err := a.configSnapshot(port)
	if err != nil {
		return Undefined, err
	}
	if !cfg.readsAnalog() {
		return Undefined, errors.Wrapf(ErrWrongConfig, "port %d is %s, not an analog input", port, cfg)
	}
	return cfg, nil
}

// AnalogRead returns the raw 12-bit reading of an analog input port, 0-4095.
func (a *ADI) AnalogRead(port Port) (int, error) {
	if _, err := a.analogInput(port); err != nil {
		return 0, err
	}
	return a.rawAnalog(port)
}

// AnalogCalibrate samples the port for roughly half a second and stores the
// arithmetic mean as the port's baseline, returning it. The measured quantity
// must be stable for the whole window (do not calibrate a gyro that is
// rotating); that precondition is the caller's, not checked here. The call
// blocks for the full window and must not be invoked on the same port
// concurrently with itself. The baseline survives until the port is
// reconfigured. If the port is reconfigured while the window is in progress
// the result is discarded and wrong-configuration is returned, so a
// calibration started under one role can never store a baseline into the
// port's next role.
func (a *ADI) AnalogCalibrate(port Port) (int, error) {
	cfg, err := a.analogInput(port)
	if err != nil {
		return 0, err
	}
	total := 0
	for i := 0; i < a.calibrationSamples; i++ {
		v, err := a.rawAnalog(port)
		if err != nil {
			return 0, err
		}
		total += v
		if a.calibrationInterval > 0 {
			a.clock.Sleep(a.calibrationInterval)
		}
	}
	baselineHR := int32((total * 16) / a.calibrationSamples)

	a.mu.Lock()
	if a.slots[port].config != cfg {
		stale := a.slots[port].config
		a.mu.Unlock()
		return 0, errors.Wrapf(ErrWrongConfig,
			"port %d reconfigured to %s during calibration", port, stale)
	}
	a.slots[port].baselineHR = baselineHR
	a.mu.Unlock()

	a.logger.Debugw("analog port calibrated", "port", port, "baseline", baselineHR/16)
	return int(baselineHR / 16), nil
}

// AnalogReadCalibrated returns the difference between the current reading and
// the port's baseline, in the ADC's native 12-bit units (-4095..4095). Before
// the first AnalogCalibrate the baseline is zero, so the raw reading comes
// back unchanged. Values from this function are inappropriate for numeric
// integration over time; round-off accumulates. Use AnalogReadCalibratedHR
// for integrated quantities.
func (a *ADI) AnalogReadCalibrated(port Port) (int, error) {
	if _, err := a.analogInput(port); err != nil {
		return 0, err
	}
	raw, err := a.rawAnalog(port)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	baselineHR := a.slots[port].baselineHR
	a.mu.Unlock()
	return raw - int(baselineHR/16), nil
}

// AnalogReadCalibratedHR returns the calibrated reading scaled 16x
// (-16384..16384). The baseline is kept at this precision, so the error from
// the true mean sitting between two ADC steps stays below one HR unit when
// the value is integrated. This is the variant to feed into gyro and
// accelerometer integration. Before the first AnalogCalibrate the baseline is
// zero and the result is just the raw reading times 16.
func (a *ADI) AnalogReadCalibratedHR(port Port) (int, error) {
	if _, err := a.analogInput(port); err != nil {
		return 0, err
	}
	raw, err := a.rawAnalog(port)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	baselineHR := a.slots[port].baselineHR
	a.mu.Unlock()
	return raw*16 - int(baselineHR), nil
}
