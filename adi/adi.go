// Package adi multiplexes the controller's 8 generic analog/digital ports.
// Each port is assigned a role (Config) and raw electrical readings are
// interpreted according to that role. Raw register access is delegated to a
// hal.HAL; this package owns the per-port configuration state machine, the
// analog calibration engine, digital edge detection, and the legacy motor
// driver. Two-port virtual devices live in the encoder and ultrasonic
// subpackages.
package adi

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/SizzinSeal/pros/hal"
)

type slot struct {
	config Config
	// pairedWith is the partner port when this slot is half of a two-port
	// device, 0 otherwise.
	pairedWith Port

	// Calibration baseline at 16x the ADC's 12-bit precision. Valid only
	// while the slot stays an analog input; reset on reconfiguration.
	baselineHR int32

	// Outstanding edge-detector token, nil if none.
	edge *EdgeDetector

	// Last commanded motor speed for legacy PWM/servo roles.
	motorSpeed atomic.Int32
}

// ADI owns the configuration slots for the 8 ports. One mutex serializes
// configuration changes and pair claims; value reads snapshot the slot under
// the lock and then do HAL I/O outside it.
type ADI struct {
	h      hal.HAL
	logger golog.Logger
	clock  clock.Clock

	calibrationSamples  int
	calibrationInterval time.Duration

	mu    sync.Mutex
	slots [NumPorts + 1]slot // 1-based, slot 0 unused
}

// Option configures an ADI at construction.
type Option func(*ADI)

// WithClock substitutes the time source used for the calibration cadence.
func WithClock(c clock.Clock) Option {
	return func(a *ADI) { a.clock = c }
}

// WithCalibrationWindow overrides the calibration sample count and cadence.
// The defaults match the sensor spec; this exists for tests.
func WithCalibrationWindow(samples int, interval time.Duration) Option {
	return func(a *ADI) {
		a.calibrationSamples = samples
		a.calibrationInterval = interval
	}
}

// New returns the port table with every port Undefined.
func New(h hal.HAL, logger golog.Logger, opts ...Option) *ADI {
	a := &ADI{
		h:                   h,
		logger:              logger,
		clock:               clock.New(),
		calibrationSamples:  calibrationSamples,
		calibrationInterval: calibrationInterval,
	}
	for p := Port(1); p <= NumPorts; p++ {
		a.slots[p].config = Undefined
	}
	return a
}

// Config returns the role currently assigned to the port.
func (a *ADI) Config(port Port) (Config, error) {
	if !port.valid() {
		return Undefined, errors.Wrapf(ErrInvalidPort, "port %d", port)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slots[port].config, nil
}

// SetConfig assigns a role to the port and applies the matching electrical
// mode. Any state tied to the previous role (calibration baseline, edge
// detector token, motor speed) is discarded, and if the port was half of an
// active device pair the partner port is released with it, so stale device
// handles fail their next revalidation.
func (a *ADI) SetConfig(port Port, cfg Config) error {
	if !port.valid() {
		return errors.Wrapf(ErrInvalidPort, "port %d", port)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	// Electrical modes are applied before the slots are rewritten so a HAL
	// failure leaves the registry describing the modes actually in effect.
	partner := a.slots[port].pairedWith
	if partner != 0 && partner != port {
		a.logger.Debugw("reconfiguring port releases its device pair",
			"port", port, "partner", partner)
		if err := a.h.SetPinMode(partner.pin(), Undefined.pinMode()); err != nil {
			return errors.Wrapf(err, "resetting partner port %d", partner)
		}
	}
	if err := a.h.SetPinMode(port.pin(), cfg.pinMode()); err != nil {
		return errors.Wrapf(err, "configuring port %d", port)
	}
	if partner != 0 && partner != port {
		a.resetSlotLocked(partner, Undefined)
	}
	a.resetSlotLocked(port, cfg)
	return nil
}

// resetSlotLocked rewrites a slot for a new role, dropping all role-specific
// state. Caller holds a.mu.
func (a *ADI) resetSlotLocked(port Port, cfg Config) {
	s := &a.slots[port]
	s.config = cfg
	s.pairedWith = 0
	s.baselineHR = 0
	if s.edge != nil {
		s.edge.revoked = true
		s.edge = nil
	}
	s.motorSpeed.Store(0)
}

// ClaimPair atomically configures two physically adjacent ports for a
// two-port device. Both ports must be Undefined, unless they already hold
// exactly this pair in the requested role (re-initialization of the same
// device). Partial claims are never observable: validation happens under the
// registry lock before either slot is touched.
func (a *ADI) ClaimPair(lower, upper Port, cfg Config) error {
	if !lower.valid() || !upper.valid() {
		return errors.Wrapf(ErrInvalidPort, "ports %d,%d", lower, upper)
	}
	if !cfg.paired() {
		return errors.Wrapf(ErrWrongConfig, "%s is not a paired role", cfg)
	}
	if upper != lower+1 {
		return errors.Wrapf(ErrWrongConfig, "ports %d,%d are not adjacent", lower, upper)
	}
	if cfg == LegacyUltrasonic && lower%2 == 0 {
		return errors.Wrapf(ErrWrongConfig, "echo port %d must be odd (1, 3, 5 or 7)", lower)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	lo, hi := &a.slots[lower], &a.slots[upper]
	samePair := lo.config == cfg && hi.config == cfg &&
		lo.pairedWith == upper && hi.pairedWith == lower
	if !samePair {
		if lo.config != Undefined {
			return errors.Wrapf(ErrWrongConfig, "port %d already configured as %s", lower, lo.config)
		}
		if hi.config != Undefined {
			return errors.Wrapf(ErrWrongConfig, "port %d already configured as %s", upper, hi.config)
		}
	}

	loMode, hiMode := cfg.pinMode(), cfg.pinMode()
	if cfg == LegacyUltrasonic {
		// echo listens, ping drives
		loMode, hiMode = hal.ModeDigitalIn, hal.ModeDigitalOut
	}
	if err := a.h.SetPinMode(lower.pin(), loMode); err != nil {
		return errors.Wrapf(err, "claiming port %d", lower)
	}
	if err := a.h.SetPinMode(upper.pin(), hiMode); err != nil {
		return errors.Wrapf(err, "claiming port %d", upper)
	}

	a.resetSlotLocked(lower, cfg)
	a.resetSlotLocked(upper, cfg)
	lo.pairedWith = upper
	hi.pairedWith = lower
	return nil
}

// ReleasePair returns both ports of a device pair to Undefined atomically.
// It fails with wrong-configuration if the pair is no longer intact.
func (a *ADI) ReleasePair(lower Port, cfg Config) error {
	if !lower.valid() {
		return errors.Wrapf(ErrInvalidPort, "port %d", lower)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	upper := a.slots[lower].pairedWith
	if a.slots[lower].config != cfg || upper != lower+1 {
		return errors.Wrapf(ErrWrongConfig, "port %d does not hold an intact %s pair", lower, cfg)
	}
	if err := a.h.SetPinMode(lower.pin(), Undefined.pinMode()); err != nil {
		return errors.Wrapf(err, "releasing port %d", lower)
	}
	if err := a.h.SetPinMode(upper.pin(), Undefined.pinMode()); err != nil {
		return errors.Wrapf(err, "releasing port %d", upper)
	}
	a.resetSlotLocked(lower, Undefined)
	a.resetSlotLocked(upper, Undefined)
	return nil
}

// PairIntact reports whether lower and lower+1 still hold each other in the
// given paired role. Device handles call this before every operation to
// detect that some other caller reconfigured the underlying ports.
func (a *ADI) PairIntact(lower Port, cfg Config) bool {
	if !lower.valid() || lower == NumPorts {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slots[lower].config == cfg &&
		a.slots[lower+1].config == cfg &&
		a.slots[lower].pairedWith == lower+1 &&
		a.slots[lower+1].pairedWith == lower
}

// PinLevel returns the instantaneous electrical level (0 or 1) of a port
// claimed by a two-port device. Device handles use it to seed their decoding
// state; generic reads of device roles stay refused, use Value for
// single-port roles.
func (a *ADI) PinLevel(port Port) (int, error) {
	cfg, err := a.configSnapshot(port)
	if err != nil {
		return 0, err
	}
	if !cfg.paired() {
		return 0, errors.Wrapf(ErrWrongConfig, "port %d is %s, not part of a device pair", port, cfg)
	}
	v, err := a.h.PinValue(port.pin())
	if err != nil {
		return 0, errors.Wrapf(err, "reading port %d", port)
	}
	if v != 0 {
		return 1, nil
	}
	return 0, nil
}

// Interrupt returns the HAL edge source for a port.
func (a *ADI) Interrupt(port Port) (hal.Interrupt, error) {
	if !port.valid() {
		return nil, errors.Wrapf(ErrInvalidPort, "port %d", port)
	}
	return a.h.Interrupt(port.pin())
}

// configSnapshot reads the port's current role under the registry lock.
func (a *ADI) configSnapshot(port Port) (Config, error) {
	if !port.valid() {
		return Undefined, errors.Wrapf(ErrInvalidPort, "port %d", port)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slots[port].config, nil
}

// Value reads the port according to its configured role: digital roles return
// 0 or 1, analog roles return the raw 12-bit reading. Two-port device roles
// are owned by their handle and cannot be read generically.
func (a *ADI) Value(port Port) (int, error) {
	cfg, err := a.configSnapshot(port)
	if err != nil {
		return 0, err
	}
	switch {
	case cfg.readsDigital():
		v, err := a.h.PinValue(port.pin())
		if err != nil {
			return 0, errors.Wrapf(err, "reading port %d", port)
		}
		if v != 0 {
			return 1, nil
		}
		return 0, nil
	case cfg.readsAnalog():
		return a.rawAnalog(port)
	default:
		return 0, errors.Wrapf(ErrWrongConfig, "port %d is %s, not a readable input", port, cfg)
	}
}

// SetValue drives an output port according to its configured role. For a
// legacy ultrasonic pair only the ping (upper) port is writable; that path is
// used by the device handle to emit the trigger pulse.
func (a *ADI) SetValue(port Port, value int) error {
	if !port.valid() {
		return errors.Wrapf(ErrInvalidPort, "port %d", port)
	}
	a.mu.Lock()
	cfg := a.slots[port].config
	partner := a.slots[port].pairedWith
	a.mu.Unlock()

	switch cfg {
	case DigitalOut, AnalogOut, LegacyServo, LegacyPWM:
		return errors.Wrapf(a.h.SetPinValue(port.pin(), value), "writing port %d", port)
	case LegacyUltrasonic:
		if partner != 0 && partner < port {
			return errors.Wrapf(a.h.SetPinValue(port.pin(), value), "writing port %d", port)
		}
		return errors.Wrapf(ErrWrongConfig, "port %d is the ultrasonic echo input", port)
	default:
		return errors.Wrapf(ErrWrongConfig, "port %d is %s, not an output", port, cfg)
	}
}
