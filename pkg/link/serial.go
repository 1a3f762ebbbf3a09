package link

import (
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// picoVID is the Raspberry Pi USB vendor ID used to auto-detect the device
// end of the link.
const picoVID = "2E8A"

// DefaultBaudRate is the serial line rate the device firmware expects.
const DefaultBaudRate = 115200

// FindPicoPort scans the USB serial ports for a Raspberry Pi device and
// returns its port name. Returns an error listing the available ports when
// no device is found, so the caller can suggest specifying one manually.
func FindPicoPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerating serial ports: %w", err)
	}

	available := make([]string, 0, len(ports))
	for _, port := range ports {
		available = append(available, port.Name)
		if port.IsUSB && strings.EqualFold(port.VID, picoVID) {
			return port.Name, nil
		}
	}

	if len(available) == 0 {
		return "", fmt.Errorf("no serial ports found")
	}
	return "", fmt.Errorf("no Raspberry Pi device found among ports: %s", strings.Join(available, ", "))
}

// OpenSerial opens a serial port as a byte stream transport. A baud of
// zero or less selects DefaultBaudRate.
func OpenSerial(portName string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", portName, err)
	}
	return port, nil
}
