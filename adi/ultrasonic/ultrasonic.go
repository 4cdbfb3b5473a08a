// Package ultrasonic implements the two-port ultrasonic ranger device. The
// ranger claims an echo/ping port pair, emits a timed trigger pulse on the
// ping port and converts the width of the echo pulse into a centimeter
// distance.
package ultrasonic

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/SizzinSeal/pros/adi"
	"github.com/SizzinSeal/pros/hal"
)

// Sensor timing constants. Both must match the physical sensor's spec: a
// shorter trigger pulse is ignored by the transducer, and a longer echo
// window than the sensor's own ranging cycle reads the next cycle's edges.
// Violating them produces silently wrong distances, not errors.
const (
	// triggerPulse is the width of the outgoing pulse on the ping port.
	triggerPulse = 10 * time.Microsecond
	// echoWindow bounds the wait for the echo pulse; past it the reading is
	// reported as "no object found".
	echoWindow = 50 * time.Millisecond

	// roundTripMicrosPerCm converts round-trip echo time to distance at the
	// speed of sound (~340 m/s, halved for the return leg).
	roundTripMicrosPerCm = 58
)

// Config holds the optional ultrasonic settings.
type Config struct {
	// Timeout overrides the echo window. Zero keeps the sensor default.
	Timeout time.Duration
	// Clock substitutes the time source for the pulse and timeout waits.
	Clock clock.Clock
}

type measurement struct {
	distanceCm int
	err        error
}

// Ultrasonic is the opaque handle for one claimed echo/ping pair.
type Ultrasonic struct {
	a      *adi.ADI
	echo   adi.Port
	ping   adi.Port
	logger golog.Logger
	clock  clock.Clock

	timeout  time.Duration
	echoInt  hal.Interrupt
	tickChan chan hal.Tick

	requestChan chan struct{}
	resultChan  chan measurement

	cancelCtx  context.Context
	cancelFunc func()
	workers    sync.WaitGroup

	mu   sync.Mutex
	down bool
}

// New claims echo and ping as a legacy ultrasonic pair and starts the
// measurement worker. echo must be one of the odd ports (1, 3, 5, 7) and
// ping the next-higher port.
func New(ctx context.Context, a *adi.ADI, echo, ping adi.Port, cfg Config, logger golog.Logger) (*Ultrasonic, error) {
	if err := a.ClaimPair(echo, ping, adi.LegacyUltrasonic); err != nil {
		return nil, errors.Wrap(err, "ultrasonic init")
	}
	echoInt, err := a.Interrupt(echo)
	if err != nil {
		return nil, multierr.Combine(err, a.ReleasePair(echo, adi.LegacyUltrasonic))
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = echoWindow
	}

	cancelCtx, cancelFunc := context.WithCancel(ctx)
	u := &Ultrasonic{
		a:           a,
		echo:        echo,
		ping:        ping,
		logger:      logger,
		clock:       clk,
		timeout:     timeout,
		echoInt:     echoInt,
		tickChan:    make(chan hal.Tick),
		requestChan: make(chan struct{}),
		resultChan:  make(chan measurement),
		cancelCtx:   cancelCtx,
		cancelFunc:  cancelFunc,
	}
	if err := a.SetValue(ping, 0); err != nil {
		cancelFunc()
		return nil, multierr.Combine(
			errors.Wrap(err, "ultrasonic: lowering ping port"),
			a.ReleasePair(echo, adi.LegacyUltrasonic),
		)
	}
	u.start()
	return u, nil
}

// start runs the worker that owns the echo interrupt subscription. Edges
// arriving outside a measurement must still be drained, otherwise the
// interrupt source would block delivering to the subscription.
func (u *Ultrasonic) start() {
	u.workers.Add(1)
	goutils.ManagedGo(func() {
		u.echoInt.AddCallback(u.tickChan)
		defer u.echoInt.RemoveCallback(u.tickChan)
		for {
			select {
			case <-u.cancelCtx.Done():
				return
			case <-u.requestChan:
				m := u.measure()
				select {
				case u.resultChan <- m:
				case <-u.cancelCtx.Done():
					return
				}
			case <-u.tickChan:
				// stray edge between measurements
			}
		}
	}, u.workers.Done)
}

// measure walks one ranging cycle: trigger pulse out, then the echo pulse's
// rising and falling edges bounded by the timeout. The distance comes from
// the interrupt timestamps, not wall-clock reads, so scheduling latency
// between the edges and this goroutine does not skew it.
func (u *Ultrasonic) measure() measurement {
	if err := u.a.SetValue(u.ping, 1); err != nil {
		return measurement{err: errors.Wrap(err, "ultrasonic: raising ping port")}
	}
	u.clock.Sleep(triggerPulse)
	if err := u.a.SetValue(u.ping, 0); err != nil {
		return measurement{err: errors.Wrap(err, "ultrasonic: lowering ping port")}
	}

	deadline := u.clock.After(u.timeout)
	var sentMicros uint64
	var echoStarted bool
	// pulse sent, waiting for the echo pulse to start
	for {
		select {
		case <-u.cancelCtx.Done():
			return measurement{err: errors.New("ultrasonic: shut down mid-measurement")}
		case <-deadline:
			return measurement{distanceCm: 0}
		case tick := <-u.tickChan:
			if tick.High {
				sentMicros = tick.TimestampMicros
				echoStarted = true
			} else if echoStarted {
				return measurement{distanceCm: int((tick.TimestampMicros - sentMicros) / roundTripMicrosPerCm)}
			}
		}
	}
}

// revalidate confirms the handle still owns its ports.
func (u *Ultrasonic) revalidate() error {
	u.mu.Lock()
	down := u.down
	u.mu.Unlock()
	if down || !u.a.PairIntact(u.echo, adi.LegacyUltrasonic) {
		return errors.Wrapf(adi.ErrWrongConfig, "ultrasonic on ports %d,%d is no longer configured", u.echo, u.ping)
	}
	return nil
}

// Get performs one ranging cycle and returns the distance to the nearest
// object in centimeters. A reading of 0 means no echo arrived within the
// window ("no object found"); it is not an error. The call blocks for at
// most the echo window plus the trigger pulse.
func (u *Ultrasonic) Get() (int, error) {
	if err := u.revalidate(); err != nil {
		return 0, err
	}
	select {
	case u.requestChan <- struct{}{}:
	case <-u.cancelCtx.Done():
		return 0, errors.Wrapf(adi.ErrWrongConfig, "ultrasonic on port %d shut down", u.echo)
	}
	select {
	case m := <-u.resultChan:
		return m.distanceCm, m.err
	case <-u.cancelCtx.Done():
		return 0, errors.Wrapf(adi.ErrWrongConfig, "ultrasonic on port %d shut down", u.echo)
	}
}

// Shutdown stops the worker, releases both ports back to Undefined and
// invalidates the handle.
func (u *Ultrasonic) Shutdown() error {
	u.mu.Lock()
	if u.down {
		u.mu.Unlock()
		return errors.Wrapf(adi.ErrWrongConfig, "ultrasonic on port %d already shut down", u.echo)
	}
	u.down = true
	u.mu.Unlock()

	u.logger.Debugw("shutting down ultrasonic", "echo", u.echo, "ping", u.ping)
	u.cancelFunc()
	u.workers.Wait()
	return u.a.ReleasePair(u.echo, adi.LegacyUltrasonic)
}
