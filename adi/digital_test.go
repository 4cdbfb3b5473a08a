package adi

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestDigitalReadWrite(t *testing.T) {
	a, h := newTestADI(t)
	test.That(t, a.SetConfig(1, DigitalIn), test.ShouldBeNil)
	test.That(t, a.SetConfig(2, DigitalOut), test.ShouldBeNil)

	h.SetDigital(0, true)
	v, err := a.DigitalRead(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldBeTrue)

	h.SetDigital(0, false)
	v, err = a.DigitalRead(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldBeFalse)

	test.That(t, a.DigitalWrite(2, true), test.ShouldBeNil)
	test.That(t, h.LastWrite(1), test.ShouldEqual, 1)
	test.That(t, a.DigitalWrite(2, false), test.ShouldBeNil)
	test.That(t, h.LastWrite(1), test.ShouldEqual, 0)

	t.Run("read requires a digital input", func(t *testing.T) {
		_, err := a.DigitalRead(2)
		test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)
	})
	t.Run("write requires a digital output", func(t *testing.T) {
		err := a.DigitalWrite(1, true)
		test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)
	})
}

func TestPinModeShim(t *testing.T) {
	a, _ := newTestADI(t)

	for mode, want := range map[uint8]Config{
		PinModeInput:        DigitalIn,
		PinModeOutput:       DigitalOut,
		PinModeInputAnalog:  AnalogIn,
		PinModeOutputAnalog: AnalogOut,
	} {
		test.That(t, a.PinMode(1, mode), test.ShouldBeNil)
		cfg, err := a.Config(1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cfg, test.ShouldEqual, want)
	}

	err := a.PinMode(1, 0x7f)
	test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)
}

func TestEdgeDetector(t *testing.T) {
	a, h := newTestADI(t)
	test.That(t, a.SetConfig(1, DigitalIn), test.ShouldBeNil)

	d, err := a.AcquireEdgeDetector(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Port(), test.ShouldEqual, Port(1))

	press := func() bool {
		t.Helper()
		v, err := d.NewPress()
		test.That(t, err, test.ShouldBeNil)
		return v
	}

	// level starts low
	test.That(t, press(), test.ShouldBeFalse)

	// one press reports exactly once, however long it is held
	h.SetDigital(0, true)
	test.That(t, press(), test.ShouldBeTrue)
	test.That(t, press(), test.ShouldBeFalse)
	test.That(t, press(), test.ShouldBeFalse)

	// release and press again
	h.SetDigital(0, false)
	test.That(t, press(), test.ShouldBeFalse)
	h.SetDigital(0, true)
	test.That(t, press(), test.ShouldBeTrue)
}

func TestEdgeDetectorExclusive(t *testing.T) {
	a, _ := newTestADI(t)
	test.That(t, a.SetConfig(1, DigitalIn), test.ShouldBeNil)

	d, err := a.AcquireEdgeDetector(1)
	test.That(t, err, test.ShouldBeNil)

	_, err = a.AcquireEdgeDetector(1)
	test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)

	// a different port is its own token
	test.That(t, a.SetConfig(2, LegacyButton), test.ShouldBeNil)
	_, err = a.AcquireEdgeDetector(2)
	test.That(t, err, test.ShouldBeNil)

	d.Release()
	_, err = a.AcquireEdgeDetector(1)
	test.That(t, err, test.ShouldBeNil)
}

func TestEdgeDetectorRevokedOnReconfigure(t *testing.T) {
	a, _ := newTestADI(t)
	test.That(t, a.SetConfig(1, DigitalIn), test.ShouldBeNil)

	d, err := a.AcquireEdgeDetector(1)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, a.SetConfig(1, DigitalIn), test.ShouldBeNil)
	_, err = d.NewPress()
	test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)

	// the revoked token released its claim
	_, err = a.AcquireEdgeDetector(1)
	test.That(t, err, test.ShouldBeNil)
}

func TestEdgeDetectorRequiresDigitalInput(t *testing.T) {
	a, _ := newTestADI(t)
	test.That(t, a.SetConfig(1, AnalogIn), test.ShouldBeNil)
	_, err := a.AcquireEdgeDetector(1)
	test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)

	_, err = a.AcquireEdgeDetector(0)
	test.That(t, errors.Is(err, ErrInvalidPort), test.ShouldBeTrue)
}
