// Package main exercises the ADI layer end to end against the fake hardware
// layer: a potentiometer drives a legacy motor, a bumper button is watched
// through an edge detector, and an ultrasonic ranger reports distance.
package main

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"

	"github.com/SizzinSeal/pros/adi"
	"github.com/SizzinSeal/pros/adi/ultrasonic"
	"github.com/SizzinSeal/pros/hal/halfake"
)

var logger = golog.NewDevelopmentLogger("rangerbot")

const (
	potPort    = adi.Port(1)
	buttonPort = adi.Port(3)
	motorPort  = adi.Port(4)
	echoPort   = adi.Port(5)
	pingPort   = adi.Port(6)
)

func run(ctx context.Context) error {
	h := halfake.New()
	a := adi.New(h, logger, adi.WithCalibrationWindow(64, time.Millisecond))

	if err := multierr.Combine(
		a.SetConfig(potPort, adi.LegacyPot),
		a.SetConfig(buttonPort, adi.LegacyButton),
		a.SetConfig(motorPort, adi.LegacyPWM),
	); err != nil {
		return err
	}

	h.SetAnalog(int(potPort)-1, 2048)
	baseline, err := a.AnalogCalibrate(potPort)
	if err != nil {
		return err
	}
	logger.Infow("potentiometer calibrated", "baseline", baseline)

	bumper, err := a.AcquireEdgeDetector(buttonPort)
	if err != nil {
		return err
	}
	defer bumper.Release()

	ranger, err := ultrasonic.New(ctx, a, echoPort, pingPort, ultrasonic.Config{
		Timeout: 30 * time.Millisecond,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := ranger.Shutdown(); err != nil {
			logger.Errorw("shutting down ranger", "error", err)
		}
	}()

	// pretend somebody pressed the bumper
	h.SetDigital(int(buttonPort)-1, true)

	for i := 0; i < 5; i++ {
		pressed, err := bumper.NewPress()
		if err != nil {
			return err
		}
		if pressed {
			logger.Info("bumper hit, stopping motor")
			if err := a.MotorStop(motorPort); err != nil {
				return err
			}
		} else {
			delta, err := a.AnalogReadCalibrated(potPort)
			if err != nil {
				return err
			}
			if err := a.MotorSet(motorPort, delta/32); err != nil {
				return err
			}
		}

		dist, err := ranger.Get()
		if err != nil {
			return err
		}
		if dist == 0 {
			logger.Info("no object in range")
		} else {
			logger.Infow("object in range", "cm", dist)
		}
	}
	return nil
}

func main() {
	if err := run(context.Background()); err != nil {
		logger.Fatal(err)
	}
}
