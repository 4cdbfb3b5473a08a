package adi

import "github.com/pkg/errors"

// NumPorts is the number of ADI ports on the controller.
const NumPorts = 8

// Port identifies one of the 8 ADI ports, numbered 1 through 8. The zero
// value is not a valid port.
type Port uint8

// NewPort returns the port for a 1-based numeric index.
func NewPort(n int) (Port, error) {
	if n < 1 || n > NumPorts {
		return 0, errors.Wrapf(ErrInvalidPort, "port %d out of range 1-%d", n, NumPorts)
	}
	return Port(n), nil
}

// PortFromLetter returns the port for a letter alias: 'a' through 'h' in
// either case map to ports 1 through 8.
func PortFromLetter(b byte) (Port, error) {
	switch {
	case b >= 'a' && b <= 'h':
		return Port(b-'a') + 1, nil
	case b >= 'A' && b <= 'H':
		return Port(b-'A') + 1, nil
	}
	return 0, errors.Wrapf(ErrInvalidPort, "letter %q is not an ADI port", b)
}

// Letter returns the lowercase letter alias for the port.
func (p Port) Letter() byte {
	return 'a' + byte(p) - 1
}

func (p Port) valid() bool {
	return p >= 1 && p <= NumPorts
}

// pin is the 0-based electrical index handed to the HAL.
func (p Port) pin() int {
	return int(p) - 1
}
