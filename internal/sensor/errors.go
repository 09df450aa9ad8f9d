package sensor

import (
	"errors"
	"fmt"
)

// ErrPeripheral matches every PeripheralError via errors.Is.
var ErrPeripheral = errors.New("peripheral fault")

// PeripheralError reports a failed hardware read. Handlers turn it into a
// 503 instead of emitting a partial document.
type PeripheralError struct {
	Device string
	Op     string
	Err    error
}

func (e *PeripheralError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Device, e.Op, e.Err)
}

func (e *PeripheralError) Unwrap() error { return e.Err }

func (e *PeripheralError) Is(target error) bool { return target == ErrPeripheral }

func peripheralErr(device, op string, err error) error {
	return &PeripheralError{Device: device, Op: op, Err: err}
}
