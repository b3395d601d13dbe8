// Package picprog drives Microchip PIC microcontrollers over a bit-banged
// ICSP link: program mode entry, device identification, and blank check,
// erase, read, write and verify of program memory and the configuration
// word.
package picprog

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/valerio/go-picprog/picprog/device"
	"github.com/valerio/go-picprog/picprog/gpio"
	"github.com/valerio/go-picprog/picprog/icsp"
	"github.com/valerio/go-picprog/picprog/memory"
)

// Chip is the capability set of a programmable chip family.
type Chip interface {
	EnterProgramMode() error
	ExitProgramMode() error
	// ReadDeviceID identifies the target; memory operations need it first.
	ReadDeviceID() (device.Info, error)
	// Read stores program memory from word start (count words, 0 for all)
	// plus the configuration word into a hex file.
	Read(path string, start, count int) error
	// Write erases the chip and programs the hex file, verifying it unless
	// disabled.
	Write(path string) error
	BlankCheck() error
	BulkErase() error
	DumpConfigurationRegisters() (uint16, error)
	// Image returns the working memory image, nil before ReadDeviceID.
	Image() *memory.Image
}

// Family names a group of chips sharing one programming algorithm.
type Family string

const FamilyPIC10F322 Family = "pic10f322"

// Families returns the supported family names, sorted.
func Families() []string {
	names := make([]string, 0, len(constructors))
	for family := range constructors {
		names = append(names, string(family))
	}
	sort.Strings(names)
	return names
}

type constructor func(port gpio.Port, cfg Config) Chip

var constructors = map[Family]constructor{
	FamilyPIC10F322: func(port gpio.Port, cfg Config) Chip {
		return newPIC10F322(port, cfg)
	},
}

// New creates the driver for family on port.
func New(family Family, port gpio.Port, opts ...Option) (Chip, error) {
	ctor, ok := constructors[family]
	if !ok {
		return nil, errors.Errorf("unknown chip family %q", family)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Devices != nil {
		// code memory ends where configuration space starts
		if err := cfg.Devices.Validate(int(icsp.ConfigAddress)); err != nil {
			return nil, err
		}
	}

	return ctor(port, cfg), nil
}
