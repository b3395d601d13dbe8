package picprog

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrDeviceNotResolved is returned by memory operations run before a
// successful ReadDeviceID.
var ErrDeviceNotResolved = errors.New("device not resolved: read the device ID first")

// DeviceNotRecognizedError indicates that the device ID read from the target
// matches no row of the descriptor table. A wrong entry sequence shows up
// the same way.
type DeviceNotRecognizedError struct {
	ID       uint16
	Revision uint16
}

func (e *DeviceNotRecognizedError) Error() string {
	return fmt.Sprintf("device not recognized: id 0x%03X rev 0x%X", e.ID, e.Revision)
}

// NotBlankError indicates that blank check found a programmed word.
// Address is a byte address (twice the word index).
type NotBlankError struct {
	Address uint32
	Value   uint16
}

func (e *NotBlankError) Error() string {
	return fmt.Sprintf("chip not blank: address 0x%04X, read 0x%04X", e.Address, e.Value)
}

// VerifyMismatchError indicates that a word read back after programming
// differs from the image. Address is a word address.
type VerifyMismatchError struct {
	Address  uint16
	Read     uint16
	Expected uint16
}

func (e *VerifyMismatchError) Error() string {
	return fmt.Sprintf("verify failed at address 0x%04X: read 0x%04X, expected 0x%04X",
		e.Address, e.Read, e.Expected)
}
