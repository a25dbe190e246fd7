package modem

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Dialer opens the byte stream to the GSM modem. It abstracts how the
// connection is made: a serial port in production, an in-memory transport
// in tests.
type Dialer interface {
	Dial() (io.ReadWriteCloser, error)
}

// SerialDialer opens the modem over a serial port.
type SerialDialer struct {
	Port string
	Baud int
}

func (d SerialDialer) Dial() (io.ReadWriteCloser, error) {
	port, err := serial.Open(d.Port, &serial.Mode{
		BaudRate: d.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", d.Port, err)
	}
	return port, nil
}
