package gpio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Pin identifies one of the three ICSP lines.
type Pin int

const (
	MCLR Pin = iota
	Clock
	Data
	pinCount
)

func (p Pin) String() string {
	switch p {
	case MCLR:
		return "MCLR"
	case Clock:
		return "PGC"
	case Data:
		return "PGD"
	default:
		return fmt.Sprintf("Pin(%d)", int(p))
	}
}

// Port is the line-level interface the ICSP layer drives. Operations are
// synchronous and never fail individually; a backend that can fault keeps
// the first error and reports it from Err.
type Port interface {
	ConfigureInput(pin Pin)
	ConfigureOutput(pin Pin)
	SetHigh(pin Pin)
	SetLow(pin Pin)
	// Level samples the pin, returning 0 or 1.
	Level(pin Pin) uint8
	DelayMicroseconds(us int)
	Err() error
}

// PinNames maps the ICSP lines to host GPIO names (e.g. "GPIO23").
type PinNames struct {
	Clock string
	Data  string
	MCLR  string
}

// DefaultPinNames is the usual Raspberry Pi wiring: PGC on GPIO23, PGD on
// GPIO24 and MCLR on GPIO18.
var DefaultPinNames = PinNames{Clock: "GPIO23", Data: "GPIO24", MCLR: "GPIO18"}

func (n PinNames) byPin() [pinCount]string {
	var names [pinCount]string
	names[MCLR] = n.MCLR
	names[Clock] = n.Clock
	names[Data] = n.Data
	return names
}

// ParseBCM parses a "PGC,PGD,MCLR" triple of BCM GPIO numbers, as in
// "23,24,18".
func ParseBCM(mapping string) (PinNames, error) {
	parts := strings.Split(mapping, ",")
	if len(parts) != 3 {
		return PinNames{}, errors.Errorf("gpio mapping %q: want PGC,PGD,MCLR", mapping)
	}

	var names [3]string
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return PinNames{}, errors.Errorf("gpio mapping %q: invalid pin number %q", mapping, part)
		}
		names[i] = "GPIO" + strconv.Itoa(n)
	}

	return PinNames{Clock: names[0], Data: names[1], MCLR: names[2]}, nil
}
