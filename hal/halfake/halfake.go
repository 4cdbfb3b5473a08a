// Package halfake implements an in-memory hal.HAL for tests and samples.
package halfake

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/SizzinSeal/pros/hal"
)

// HAL is a fake hardware layer. Analog levels and digital input levels are
// set by the test; output writes are latched so they can be asserted on.
type HAL struct {
	mu         sync.Mutex
	modes      map[int]hal.PinMode
	analog     map[int]int
	digital    map[int]bool
	writes     map[int][]int
	interrupts map[int]*Interrupt

	// AnalogFunc, when set, overrides stored analog levels for reads. It is
	// called with the pin and the number of reads so far on that pin, so
	// tests can model a drifting or noisy signal.
	AnalogFunc func(pin, n int) int
	reads      map[int]int

	// PinModeFunc, when set, is consulted before a mode change is recorded
	// so tests can model hardware refusing a mode.
	PinModeFunc func(pin int, mode hal.PinMode) error
}

// New returns a fake HAL with every pin unconfigured.
func New() *HAL {
	return &HAL{
		modes:      map[int]hal.PinMode{},
		analog:     map[int]int{},
		digital:    map[int]bool{},
		writes:     map[int][]int{},
		interrupts: map[int]*Interrupt{},
		reads:      map[int]int{},
	}
}

// SetPinMode records the mode for later assertions.
func (h *HAL) SetPinMode(pin int, mode hal.PinMode) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.PinModeFunc != nil {
		if err := h.PinModeFunc(pin, mode); err != nil {
			return err
		}
	}
	h.modes[pin] = mode
	return nil
}

// Mode returns the last mode applied to a pin.
func (h *HAL) Mode(pin int) hal.PinMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.modes[pin]
}

// PinValue reads the stored level for a pin.
func (h *HAL) PinValue(pin int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.modes[pin] {
	case hal.ModeDigitalIn, hal.ModeDigitalInPullUp, hal.ModeDigitalOut:
		if h.digital[pin] {
			return 1, nil
		}
		return 0, nil
	default:
		n := h.reads[pin]
		h.reads[pin]++
		if h.AnalogFunc != nil {
			return h.AnalogFunc(pin, n), nil
		}
		return h.analog[pin], nil
	}
}

// SetPinValue latches an output write.
func (h *HAL) SetPinValue(pin, value int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writes[pin] = append(h.writes[pin], value)
	h.digital[pin] = value != 0
	return nil
}

// Writes returns every value written to a pin, oldest first.
func (h *HAL) Writes(pin int) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, len(h.writes[pin]))
	copy(out, h.writes[pin])
	return out
}

// LastWrite returns the most recent value written to a pin, or 0.
func (h *HAL) LastWrite(pin int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.writes[pin]
	if len(w) == 0 {
		return 0
	}
	return w[len(w)-1]
}

// SetAnalog sets the raw level an analog read of the pin will see.
func (h *HAL) SetAnalog(pin, value int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.analog[pin] = value
}

// SetDigital sets the level a digital read of the pin will see.
func (h *HAL) SetDigital(pin int, high bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.digital[pin] = high
}

// Interrupt returns the fake edge source for a pin, creating it on first use.
func (h *HAL) Interrupt(pin int) (hal.Interrupt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if pin < 0 {
		return nil, errors.Errorf("no interrupt for pin %d", pin)
	}
	i, ok := h.interrupts[pin]
	if !ok {
		i = &Interrupt{}
		h.interrupts[pin] = i
	}
	return i, nil
}

// Inject delivers an edge on the given pin to every subscriber and updates
// the pin's digital level to match.
func (h *HAL) Inject(pin int, high bool, tsMicros uint64) {
	h.mu.Lock()
	i, ok := h.interrupts[pin]
	h.digital[pin] = high
	h.mu.Unlock()
	if !ok {
		return
	}
	i.tick(hal.Tick{High: high, TimestampMicros: tsMicros})
}

// Interrupt is a fake edge source fed by (*HAL).Inject.
type Interrupt struct {
	mu        sync.Mutex
	callbacks []chan<- hal.Tick
}

// AddCallback subscribes a channel to edges on this pin.
func (i *Interrupt) AddCallback(ch chan<- hal.Tick) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.callbacks = append(i.callbacks, ch)
}

// RemoveCallback unsubscribes a channel.
func (i *Interrupt) RemoveCallback(ch chan<- hal.Tick) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx, c := range i.callbacks {
		if c == ch {
			i.callbacks = append(i.callbacks[:idx], i.callbacks[idx+1:]...)
			break
		}
	}
}

func (i *Interrupt) tick(t hal.Tick) {
	i.mu.Lock()
	callbacks := make([]chan<- hal.Tick, len(i.callbacks))
	copy(callbacks, i.callbacks)
	i.mu.Unlock()
	for _, ch := range callbacks {
		ch <- t
	}
}
