// Package hal describes the register-level hardware abstraction layer the ADI
// engines are built on. Implementations own the raw ADC/GPIO access; nothing
// above this package touches registers directly.
package hal

// PinMode is the electrical mode applied to a pin.
type PinMode int

// The modes a pin can be driven in.
const (
	ModeAnalogIn PinMode = iota
	ModeAnalogOut
	ModeDigitalIn
	ModeDigitalInPullUp
	ModeDigitalOut
	ModePWMOut
)

func (m PinMode) String() string {
	switch m {
	case ModeAnalogIn:
		return "analog_in"
	case ModeAnalogOut:
		return "analog_out"
	case ModeDigitalIn:
		return "digital_in"
	case ModeDigitalInPullUp:
		return "digital_in_pullup"
	case ModeDigitalOut:
		return "digital_out"
	case ModePWMOut:
		return "pwm_out"
	}
	return "unknown"
}

// Tick is a single pulse-edge notification from the interrupt source.
// TimestampMicros comes from the interrupt source's own timer, not the Go
// runtime clock, so edge-to-edge intervals are meaningful at the microsecond
// level.
type Tick struct {
	High            bool
	TimestampMicros uint64
}

// Interrupt delivers edge notifications for one pin to subscribed channels.
type Interrupt interface {
	AddCallback(ch chan<- Tick)
	RemoveCallback(ch chan<- Tick)
}

// HAL is the raw per-pin access the ADI layer multiplexes. Pins are 0-based
// electrical indices; the ADI layer maps its 1-based ports down before
// calling in.
type HAL interface {
	// SetPinMode reconfigures the electrical mode of a pin.
	SetPinMode(pin int, mode PinMode) error
	// PinValue reads the raw value of a pin: 0..4095 for analog modes,
	// 0 or 1 for digital modes.
	PinValue(pin int) (int, error)
	// SetPinValue drives an output pin. Digital outputs treat any nonzero
	// value as high; PWM outputs take a pulse width in microseconds.
	SetPinValue(pin int, value int) error
	// Interrupt returns the edge notification source for a pin.
	Interrupt(pin int) (Interrupt, error)
}
