// Package halperiph adapts host GPIO exposed through periph.io to the hal.HAL
// interface, for running the ADI layer against real pins on a Linux SBC. The
// adapter is digital-only: host GPIO has no ADC, so analog modes fail with an
// error instead of returning misleading values.
package halperiph

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/SizzinSeal/pros/hal"
)

const pwmFrequency = 50 * physic.Hertz

// HAL drives a fixed bank of named host pins through periph.io.
type HAL struct {
	mu         sync.Mutex
	pins       []gpio.PinIO
	modes      []hal.PinMode
	interrupts []*interrupt
}

// New resolves the named pins (index order matches the electrical pin
// indices the ADI layer uses) and initializes the periph host drivers.
func New(pinNames []string) (*HAL, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing periph host")
	}
	h := &HAL{
		pins:       make([]gpio.PinIO, len(pinNames)),
		modes:      make([]hal.PinMode, len(pinNames)),
		interrupts: make([]*interrupt, len(pinNames)),
	}
	for i, name := range pinNames {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, errors.Errorf("no GPIO pin named %q", name)
		}
		h.pins[i] = p
	}
	return h, nil
}

func (h *HAL) pin(n int) (gpio.PinIO, error) {
	if n < 0 || n >= len(h.pins) {
		return nil, errors.Errorf("pin %d out of range", n)
	}
	return h.pins[n], nil
}

// SetPinMode applies the electrical mode. Analog modes are unsupported on
// bare host GPIO.
func (h *HAL) SetPinMode(n int, mode hal.PinMode) error {
	p, err := h.pin(n)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	switch mode {
	case hal.ModeDigitalIn:
		err = p.In(gpio.PullNoChange, gpio.BothEdges)
	case hal.ModeDigitalInPullUp:
		err = p.In(gpio.PullUp, gpio.BothEdges)
	case hal.ModeDigitalOut, hal.ModePWMOut:
		err = p.Out(gpio.Low)
	case hal.ModeAnalogIn, hal.ModeAnalogOut:
		return errors.Errorf("pin %d: periph host GPIO has no ADC/DAC", n)
	}
	if err != nil {
		return errors.Wrapf(err, "configuring pin %d", n)
	}
	h.modes[n] = mode
	return nil
}

// PinValue reads the digital level of the pin.
func (h *HAL) PinValue(n int) (int, error) {
	p, err := h.pin(n)
	if err != nil {
		return 0, err
	}
	if p.Read() == gpio.High {
		return 1, nil
	}
	return 0, nil
}

// SetPinValue drives the pin. In PWM mode the value is interpreted as a
// signed speed and mapped onto the duty-cycle range.
func (h *HAL) SetPinValue(n, value int) error {
	p, err := h.pin(n)
	if err != nil {
		return err
	}
	h.mu.Lock()
	mode := h.modes[n]
	h.mu.Unlock()
	if mode == hal.ModePWMOut {
		if value < -127 {
			value = -127
		} else if value > 127 {
			value = 127
		}
		duty := gpio.Duty(int64(gpio.DutyMax) * int64(value+127) / 254)
		return errors.Wrapf(p.PWM(duty, pwmFrequency), "pwm on pin %d", n)
	}
	level := gpio.Low
	if value != 0 {
		level = gpio.High
	}
	return errors.Wrapf(p.Out(level), "writing pin %d", n)
}

// Interrupt returns the edge source for a pin, starting its watcher on first
// use.
func (h *HAL) Interrupt(n int) (hal.Interrupt, error) {
	p, err := h.pin(n)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.interrupts[n] == nil {
		i := &interrupt{pin: p, stop: make(chan struct{})}
		go i.watch()
		h.interrupts[n] = i
	}
	return h.interrupts[n], nil
}

// Close stops all edge watchers.
func (h *HAL) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, i := range h.interrupts {
		if i != nil {
			close(i.stop)
		}
	}
	return nil
}

// interrupt fans a pin's edges out to subscribed channels.
type interrupt struct {
	pin  gpio.PinIO
	stop chan struct{}

	mu        sync.Mutex
	callbacks []chan<- hal.Tick
}

func (i *interrupt) AddCallback(ch chan<- hal.Tick) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.callbacks = append(i.callbacks, ch)
}

func (i *interrupt) RemoveCallback(ch chan<- hal.Tick) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx, c := range i.callbacks {
		if c == ch {
			i.callbacks = append(i.callbacks[:idx], i.callbacks[idx+1:]...)
			break
		}
	}
}

func (i *interrupt) watch() {
	for {
		select {
		case <-i.stop:
			return
		default:
		}
		if !i.pin.WaitForEdge(100 * time.Millisecond) {
			continue
		}
		t := hal.Tick{
			High:            i.pin.Read() == gpio.High,
			TimestampMicros: uint64(time.Now().UnixMicro()),
		}
		i.mu.Lock()
		callbacks := make([]chan<- hal.Tick, len(i.callbacks))
		copy(callbacks, i.callbacks)
		i.mu.Unlock()
		for _, ch := range callbacks {
			select {
			case ch <- t:
			case <-i.stop:
				return
			}
		}
	}
}
