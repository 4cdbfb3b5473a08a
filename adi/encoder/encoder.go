// Package encoder implements the two-port quadrature encoder device. An
// encoder claims a pair of adjacent ADI ports and decodes the phase
// relationship of their pulse trains into a signed cumulative tick count.
package encoder

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/SizzinSeal/pros/adi"
	"github.com/SizzinSeal/pros/hal"
)

// TicksPerRevolution is the number of counts in one full revolution.
const TicksPerRevolution = 360

// Config holds the optional encoder settings.
type Config struct {
	// Reversed flips the counting direction.
	Reversed bool
}

// Encoder is the opaque handle for one claimed port pair. Its identity is the
// lower port number; one handle maps 1:1 to a fixed pair.
type Encoder struct {
	a        *adi.ADI
	lower    adi.Port
	reversed bool
	logger   golog.Logger

	topPort, bottomPort adi.Port

	top, bottom hal.Interrupt
	chanTop     chan hal.Tick
	chanBottom  chan hal.Tick

	// pRaw counts every quadrature transition; the exposed count is pRaw>>1
	// so a full two-phase cycle moves it by one. Reset must be an atomic
	// store racing safely against worker increments.
	pRaw     atomic.Int64
	position atomic.Int64
	pState   int64

	cancelCtx  context.Context
	cancelFunc func()
	workers    sync.WaitGroup

	mu   sync.Mutex
	down bool
}

// New claims ports top and bottom (which must be adjacent; the lower of the
// two becomes the handle's identity) as a legacy encoder pair, zeroes the
// count and starts the decoding worker. The claim is atomic: on any failure
// no port is left configured.
func New(ctx context.Context, a *adi.ADI, top, bottom adi.Port, cfg Config, logger golog.Logger) (*Encoder, error) {
	lower, upper := top, bottom
	if lower > upper {
		lower, upper = upper, lower
	}
	if err := a.ClaimPair(lower, upper, adi.LegacyEncoder); err != nil {
		return nil, errors.Wrap(err, "encoder init")
	}

	ti, err := a.Interrupt(top)
	if err != nil {
		return nil, multierr.Combine(err, a.ReleasePair(lower, adi.LegacyEncoder))
	}
	bi, err := a.Interrupt(bottom)
	if err != nil {
		return nil, multierr.Combine(err, a.ReleasePair(lower, adi.LegacyEncoder))
	}

	cancelCtx, cancelFunc := context.WithCancel(ctx)
	e := &Encoder{
		a:          a,
		lower:      lower,
		reversed:   cfg.Reversed,
		logger:     logger,
		topPort:    top,
		bottomPort: bottom,
		top:        ti,
		bottom:     bi,
		chanTop:    make(chan hal.Tick),
		chanBottom: make(chan hal.Tick),
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
	e.start()
	return e, nil
}

// start runs the quadrature decoding worker.
func (e *Encoder) start() {
	// State transition table, previous state against next state, where a
	// state is bottomLevel<<1 | topLevel:
	//     +---------------+----+----+----+----+
	//     | pState/nState | 00 | 01 | 10 | 11 |
	//     +---------------+----+----+----+----+
	//     |       00      | 0  | -1 | +1 | x  |
	//     |       01      | +1 | 0  | x  | -1 |
	//     |       10      | -1 | x  | 0  | +1 |
	//     |       11      | x  | +1 | -1 | 0  |
	//     +---------------+----+----+----+----+
	// 0 -> no movement, x -> impossible (skipped transition), dropped.

	e.top.AddCallback(e.chanTop)
	e.bottom.AddCallback(e.chanBottom)

	// Seed the decoder from the lines' current levels. The pull-up inputs
	// idle high, so starting from state 0 would drop the first transitions.
	var topLevel, bottomLevel int64
	if v, err := e.a.PinLevel(e.topPort); err != nil {
		e.logger.Errorw("error reading top level", "error", err)
	} else {
		topLevel = int64(v)
	}
	if v, err := e.a.PinLevel(e.bottomPort); err != nil {
		e.logger.Errorw("error reading bottom level", "error", err)
	} else {
		bottomLevel = int64(v)
	}
	e.pState = topLevel | (bottomLevel << 1)

	e.workers.Add(1)
	goutils.ManagedGo(func() {
		defer e.top.RemoveCallback(e.chanTop)
		defer e.bottom.RemoveCallback(e.chanBottom)

		for {
			var tick hal.Tick
			select {
			case <-e.cancelCtx.Done():
				return
			case tick = <-e.chanTop:
				topLevel = 0
				if tick.High {
					topLevel = 1
				}
			case tick = <-e.chanBottom:
				bottomLevel = 0
				if tick.High {
					bottomLevel = 1
				}
			}
			nState := topLevel | (bottomLevel << 1)
			if e.pState == nState {
				continue
			}
			switch (e.pState << 2) | nState {
			case 0b0001, 0b0111, 0b1000, 0b1110:
				e.step(-1)
				e.pState = nState
			case 0b0010, 0b0100, 0b1011, 0b1101:
				e.step(1)
				e.pState = nState
			}
		}
	}, e.workers.Done)
}

func (e *Encoder) step(delta int64) {
	if e.reversed {
		delta = -delta
	}
	e.pRaw.Add(delta)
	e.position.Store(e.pRaw.Load() >> 1)
}

// Port returns the lower port of the claimed pair, the handle's identity.
func (e *Encoder) Port() adi.Port { return e.lower }

// revalidate confirms the handle still owns its ports. Another caller
// reconfiguring either port makes the handle stale.
func (e *Encoder) revalidate() error {
	e.mu.Lock()
	down := e.down
	e.mu.Unlock()
	if down || !e.a.PairIntact(e.lower, adi.LegacyEncoder) {
		return errors.Wrapf(adi.ErrWrongConfig, "encoder on ports %d,%d is no longer configured", e.lower, e.lower+1)
	}
	return nil
}

// Get returns the signed cumulative tick count since the last start or
// reset. There are TicksPerRevolution ticks in one revolution.
func (e *Encoder) Get() (int, error) {
	if err := e.revalidate(); err != nil {
		return 0, err
	}
	return int(e.position.Load()), nil
}

// Reset zeroes the count. Safe to call while ticks are arriving; the zeroing
// is an atomic store against the worker's increments.
func (e *Encoder) Reset() error {
	if err := e.revalidate(); err != nil {
		return err
	}
	e.pRaw.Store(0)
	e.position.Store(0)
	return nil
}

// Shutdown stops the decoding worker, releases both ports back to Undefined
// and invalidates the handle. Later operations on the handle fail with
// wrong-configuration.
func (e *Encoder) Shutdown() error {
	e.mu.Lock()
	if e.down {
		e.mu.Unlock()
		return errors.Wrapf(adi.ErrWrongConfig, "encoder on port %d already shut down", e.lower)
	}
	e.down = true
	e.mu.Unlock()

	e.logger.Debugw("shutting down encoder", "port", e.lower)
	e.cancelFunc()
	e.workers.Wait()
	return e.a.ReleasePair(e.lower, adi.LegacyEncoder)
}
