package adi

import "github.com/SizzinSeal/pros/hal"

// Config is the role assigned to an ADI port. Exactly one role is active per
// port at any time; Undefined is the reset state.
type Config uint8

// The closed set of port roles.
const (
	AnalogIn Config = iota
	AnalogOut
	DigitalIn
	DigitalOut

	SmartButton
	SmartPot

	LegacyButton
	LegacyPot
	LegacyLineSensor
	LegacyLightSensor
	LegacyGyro
	LegacyAccelerometer

	LegacyServo
	LegacyPWM

	LegacyEncoder
	LegacyUltrasonic

	Undefined Config = 255
)

func (c Config) String() string {
	switch c {
	case AnalogIn:
		return "analog_in"
	case AnalogOut:
		return "analog_out"
	case DigitalIn:
		return "digital_in"
	case DigitalOut:
		return "digital_out"
	case SmartButton:
		return "smart_button"
	case SmartPot:
		return "smart_pot"
	case LegacyButton:
		return "legacy_button"
	case LegacyPot:
		return "legacy_pot"
	case LegacyLineSensor:
		return "legacy_line_sensor"
	case LegacyLightSensor:
		return "legacy_light_sensor"
	case LegacyGyro:
		return "legacy_gyro"
	case LegacyAccelerometer:
		return "legacy_accelerometer"
	case LegacyServo:
		return "legacy_servo"
	case LegacyPWM:
		return "legacy_pwm"
	case LegacyEncoder:
		return "legacy_encoder"
	case LegacyUltrasonic:
		return "legacy_ultrasonic"
	case Undefined:
		return "undefined"
	}
	return "unknown"
}

// readsAnalog reports whether the role is electrically an analog input.
func (c Config) readsAnalog() bool {
	switch c {
	case AnalogIn, SmartPot, LegacyPot, LegacyLineSensor, LegacyLightSensor,
		LegacyGyro, LegacyAccelerometer:
		return true
	}
	return false
}

// readsDigital reports whether the role is electrically a digital input.
func (c Config) readsDigital() bool {
	switch c {
	case DigitalIn, SmartButton, LegacyButton:
		return true
	}
	return false
}

// paired reports whether the role occupies a two-port device pair.
func (c Config) paired() bool {
	return c == LegacyEncoder || c == LegacyUltrasonic
}

// pinMode is the electrical mode the HAL must apply for the role.
func (c Config) pinMode() hal.PinMode {
	switch c {
	case AnalogOut:
		return hal.ModeAnalogOut
	case DigitalIn:
		return hal.ModeDigitalIn
	case DigitalOut:
		return hal.ModeDigitalOut
	case SmartButton, LegacyButton, LegacyEncoder:
		return hal.ModeDigitalInPullUp
	case LegacyUltrasonic:
		return hal.ModeDigitalIn
	case LegacyServo, LegacyPWM:
		return hal.ModePWMOut
	case Undefined:
		return hal.ModeDigitalIn
	default:
		return hal.ModeAnalogIn
	}
}
