package adi

import "github.com/pkg/errors"

// adi_pin_mode compatibility codes.
const (
	PinModeInput        uint8 = 0x00
	PinModeOutput       uint8 = 0x01
	PinModeInputAnalog  uint8 = 0x02
	PinModeOutputAnalog uint8 = 0x03
)

// DigitalRead returns the logical level of a digital input port. Button
// roles read as digital inputs too.
func (a *ADI) DigitalRead(port Port) (bool, error) {
	cfg, err := a.configSnapshot(port)
	if err != nil {
		return false, err
	}
	if !cfg.readsDigital() {
		return false, errors.Wrapf(ErrWrongConfig, "port %d is %s, not a digital input", port, cfg)
	}
	v, err := a.h.PinValue(port.pin())
	if err != nil {
		return false, errors.Wrapf(err, "reading port %d", port)
	}
	return v != 0, nil
}

// DigitalWrite drives a digital output port high or low. Writing to a port
// in any other role fails with wrong-configuration.
func (a *ADI) DigitalWrite(port Port, high bool) error {
	cfg, err := a.configSnapshot(port)
	if err != nil {
		return err
	}
	if cfg != DigitalOut {
		return errors.Wrapf(ErrWrongConfig, "port %d is %s, not a digital output", port, cfg)
	}
	v := 0
	if high {
		v = 1
	}
	return errors.Wrapf(a.h.SetPinValue(port.pin(), v), "writing port %d", port)
}

// PinMode maps a Wiring-style mode code onto a port role and delegates to
// SetConfig.
func (a *ADI) PinMode(port Port, mode uint8) error {
	var cfg Config
	switch mode {
	case PinModeInput:
		cfg = DigitalIn
	case PinModeOutput:
		cfg = DigitalOut
	case PinModeInputAnalog:
		cfg = AnalogIn
	case PinModeOutputAnalog:
		cfg = AnalogOut
	default:
		return errors.Wrapf(ErrWrongConfig, "unknown pin mode %#x", mode)
	}
	return a.SetConfig(port, cfg)
}

// EdgeDetector is the single-owner capability for rising-edge detection on
// one digital input port. At most one detector is outstanding per port:
// holding the token is what makes the stored previous level coherent, so the
// token itself is deliberately unsynchronized. Do not share one across
// goroutines.
type EdgeDetector struct {
	a    *ADI
	port Port

	// wasPressed is the level observed by the previous NewPress call.
	// Unsynchronized per the single-owner contract.
	wasPressed bool

	// revoked is set under a.mu when the port is reconfigured or the token
	// is released.
	revoked bool
}

// AcquireEdgeDetector hands out the edge-detection token for a digital input
// port. A second acquisition fails until the first token is released or the
// port is reconfigured.
func (a *ADI) AcquireEdgeDetector(port Port) (*EdgeDetector, error) {
	if !port.valid() {
		return nil, errors.Wrapf(ErrInvalidPort, "port %d", port)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &a.slots[port]
	if !s.config.readsDigital() {
		return nil, errors.Wrapf(ErrWrongConfig, "port %d is %s, not a digital input", port, s.config)
	}
	if s.edge != nil {
		return nil, errors.Wrapf(ErrWrongConfig, "port %d already has an edge detector", port)
	}
	d := &EdgeDetector{a: a, port: port}
	s.edge = d
	return d, nil
}

// Port returns the port this detector watches.
func (d *EdgeDetector) Port() Port { return d.port }

// NewPress polls the port and reports true exactly once per low-to-high
// transition: the first call that observes the level high after it was last
// observed low. Repeated calls while the level stays high return false. The
// stored previous level is updated unconditionally on every call.
func (d *EdgeDetector) NewPress() (bool, error) {
	d.a.mu.Lock()
	revoked := d.revoked
	d.a.mu.Unlock()
	if revoked {
		return false, errors.Wrapf(ErrWrongConfig, "edge detector for port %d is no longer valid", d.port)
	}
	pressed, err := d.a.DigitalRead(d.port)
	if err != nil {
		return false, err
	}
	fresh := pressed && !d.wasPressed
	d.wasPressed = pressed
	return fresh, nil
}

// Release returns the token so the port can be acquired again.
func (d *EdgeDetector) Release() {
	d.a.mu.Lock()
	defer d.a.mu.Unlock()
	d.revoked = true
	if d.a.slots[d.port].edge == d {
		d.a.slots[d.port].edge = nil
	}
}
