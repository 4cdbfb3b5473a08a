package adi

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/SizzinSeal/pros/hal/halfake"
)

// fastCalibration keeps calibration tests instant.
var fastCalibration = WithCalibrationWindow(32, 0)

func TestAnalogRead(t *testing.T) {
	a, h := newTestADI(t)
	test.That(t, a.SetConfig(2, AnalogIn), test.ShouldBeNil)
	h.SetAnalog(1, 4095)

	v, err := a.AnalogRead(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 4095)

	t.Run("legacy analog roles read too", func(t *testing.T) {
		test.That(t, a.SetConfig(3, LegacyGyro), test.ShouldBeNil)
		h.SetAnalog(2, 17)
		v, err := a.AnalogRead(3)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, v, test.ShouldEqual, 17)
	})

	t.Run("wrong configuration", func(t *testing.T) {
		test.That(t, a.SetConfig(4, DigitalIn), test.ShouldBeNil)
		_, err := a.AnalogRead(4)
		test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)
	})

	t.Run("invalid port", func(t *testing.T) {
		_, err := a.AnalogRead(0)
		test.That(t, errors.Is(err, ErrInvalidPort), test.ShouldBeTrue)
	})
}

func TestAnalogCalibrate(t *testing.T) {
	a, h := newTestADI(t, fastCalibration)
	test.That(t, a.SetConfig(1, AnalogIn), test.ShouldBeNil)
	h.SetAnalog(0, 2048)

	baseline, err := a.AnalogCalibrate(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, baseline, test.ShouldEqual, 2048)

	v, err := a.AnalogReadCalibrated(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 0)

	t.Run("idempotent on a stable signal", func(t *testing.T) {
		again, err := a.AnalogCalibrate(1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, again, test.ShouldEqual, baseline)
	})

	t.Run("noisy signal averages within tolerance", func(t *testing.T) {
		h.AnalogFunc = func(pin, n int) int {
			if n%2 == 0 {
				return 1000
			}
			return 1002
		}
		defer func() { h.AnalogFunc = nil }()

		b1, err := a.AnalogCalibrate(1)
		test.That(t, err, test.ShouldBeNil)
		b2, err := a.AnalogCalibrate(1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, b1, test.ShouldAlmostEqual, 1001, 1)
		test.That(t, b2, test.ShouldAlmostEqual, b1, 1)

		v, err := a.AnalogReadCalibrated(1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, v, test.ShouldAlmostEqual, 0, 1)
	})

	t.Run("requires analog input", func(t *testing.T) {
		test.That(t, a.SetConfig(5, DigitalOut), test.ShouldBeNil)
		_, err := a.AnalogCalibrate(5)
		test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)
	})
}

func TestAnalogCalibrateCadence(t *testing.T) {
	clk := clock.NewMock()
	h := halfake.New()
	a := New(h, golog.NewTestLogger(t), WithClock(clk), WithCalibrationWindow(16, time.Millisecond))
	test.That(t, a.SetConfig(1, AnalogIn), test.ShouldBeNil)
	h.SetAnalog(0, 100)

	done := make(chan int)
	go func() {
		v, err := a.AnalogCalibrate(1)
		test.That(t, err, test.ShouldBeNil)
		done <- v
	}()

	// the sampling loop blocks on the injected clock until the full window
	// has elapsed
	for {
		select {
		case v := <-done:
			test.That(t, v, test.ShouldEqual, 100)
			return
		default:
			clk.Add(time.Millisecond)
		}
	}
}

func TestAnalogReadCalibratedHR(t *testing.T) {
	a, h := newTestADI(t, fastCalibration)
	test.That(t, a.SetConfig(1, AnalogIn), test.ShouldBeNil)
	h.SetAnalog(0, 1000)

	_, err := a.AnalogCalibrate(1)
	test.That(t, err, test.ShouldBeNil)

	for _, raw := range []int{0, 900, 1000, 1100, 4095} {
		h.SetAnalog(0, raw)
		v, err := a.AnalogReadCalibrated(1)
		test.That(t, err, test.ShouldBeNil)
		hr, err := a.AnalogReadCalibratedHR(1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, v, test.ShouldEqual, raw-1000)
		test.That(t, hr, test.ShouldAlmostEqual, v*16, 15)
	}
}

func TestCalibrationAbortedByMidWindowReconfigure(t *testing.T) {
	clk := clock.NewMock()
	h := halfake.New()
	a := New(h, golog.NewTestLogger(t), WithClock(clk), WithCalibrationWindow(16, time.Millisecond))
	test.That(t, a.SetConfig(1, AnalogIn), test.ShouldBeNil)

	// the first sample proves the calibrator is inside its window
	started := make(chan struct{})
	var once sync.Once
	h.AnalogFunc = func(pin, n int) int {
		once.Do(func() { close(started) })
		return 3000
	}

	done := make(chan error)
	go func() {
		_, err := a.AnalogCalibrate(1)
		done <- err
	}()

	<-started
	test.That(t, a.SetConfig(1, LegacyGyro), test.ShouldBeNil)

	for {
		select {
		case err := <-done:
			test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)
			// the aborted window stored nothing: the new role still reads raw
			v, err := a.AnalogReadCalibrated(1)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, v, test.ShouldEqual, 3000)
			return
		default:
			clk.Add(time.Millisecond)
		}
	}
}

func TestCalibrationDiscardedOnReconfigure(t *testing.T) {
	a, h := newTestADI(t, fastCalibration)
	test.That(t, a.SetConfig(1, AnalogIn), test.ShouldBeNil)
	h.SetAnalog(0, 3000)

	_, err := a.AnalogCalibrate(1)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, a.SetConfig(1, DigitalIn), test.ShouldBeNil)
	test.That(t, a.SetConfig(1, AnalogIn), test.ShouldBeNil)

	// zero-value baseline: the calibrated read is just the raw value
	v, err := a.AnalogReadCalibrated(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 3000)
}
