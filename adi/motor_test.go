package adi

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestMotor(t *testing.T) {
	a, h := newTestADI(t)
	test.That(t, a.SetConfig(6, LegacyPWM), test.ShouldBeNil)

	v, err := a.MotorGet(6)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 0)

	test.That(t, a.MotorSet(6, 64), test.ShouldBeNil)
	test.That(t, h.LastWrite(5), test.ShouldEqual, 64)
	v, err = a.MotorGet(6)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 64)

	t.Run("speed clamps to the signed 8-bit range", func(t *testing.T) {
		test.That(t, a.MotorSet(6, 500), test.ShouldBeNil)
		test.That(t, h.LastWrite(5), test.ShouldEqual, MotorMaxSpeed)
		test.That(t, a.MotorSet(6, -500), test.ShouldBeNil)
		test.That(t, h.LastWrite(5), test.ShouldEqual, MotorMinSpeed)
	})

	t.Run("stop is set zero", func(t *testing.T) {
		test.That(t, a.MotorStop(6), test.ShouldBeNil)
		test.That(t, h.LastWrite(5), test.ShouldEqual, 0)
		v, err := a.MotorGet(6)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, v, test.ShouldEqual, 0)
	})

	t.Run("servo role drives too", func(t *testing.T) {
		test.That(t, a.SetConfig(7, LegacyServo), test.ShouldBeNil)
		test.That(t, a.MotorSet(7, -30), test.ShouldBeNil)
		test.That(t, h.LastWrite(6), test.ShouldEqual, -30)
	})

	t.Run("wrong configuration", func(t *testing.T) {
		test.That(t, a.SetConfig(8, DigitalOut), test.ShouldBeNil)
		err := a.MotorSet(8, 10)
		test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)
		_, err = a.MotorGet(8)
		test.That(t, errors.Is(err, ErrWrongConfig), test.ShouldBeTrue)
	})

	t.Run("reconfiguring resets the stored speed", func(t *testing.T) {
		test.That(t, a.MotorSet(6, 50), test.ShouldBeNil)
		test.That(t, a.SetConfig(6, LegacyPWM), test.ShouldBeNil)
		v, err := a.MotorGet(6)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, v, test.ShouldEqual, 0)
	})
}
