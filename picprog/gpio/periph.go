package gpio

import (
	"github.com/pkg/errors"
	periphgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/valerio/go-picprog/picprog/timing"
)

// Periph drives the ICSP lines through periph.io pins.
type Periph struct {
	pins   [pinCount]periphgpio.PinIO
	levels [pinCount]periphgpio.Level
	output [pinCount]bool
	delay  timing.Delayer
	err    error
}

// OpenPeriph initializes the periph.io host drivers and resolves the named
// pins through the gpio registry.
func OpenPeriph(names PinNames) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}

	var pins [pinCount]periphgpio.PinIO
	for pin, name := range names.byPin() {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, errors.Errorf("gpio %q for %s not found", name, Pin(pin))
		}
		pins[pin] = p
	}

	return NewPeriph(pins[MCLR], pins[Clock], pins[Data], timing.NewBusyWait()), nil
}

// NewPeriph wraps already resolved pins.
func NewPeriph(mclr, clock, data periphgpio.PinIO, delay timing.Delayer) *Periph {
	p := &Periph{delay: delay}
	p.pins[MCLR] = mclr
	p.pins[Clock] = clock
	p.pins[Data] = data
	return p
}

func (p *Periph) ConfigureInput(pin Pin) {
	p.output[pin] = false
	p.check(pin, p.pins[pin].In(periphgpio.PullNoChange, periphgpio.NoEdge))
}

// ConfigureOutput switches the pin to output, driving the last level set on it.
func (p *Periph) ConfigureOutput(pin Pin) {
	p.output[pin] = true
	p.check(pin, p.pins[pin].Out(p.levels[pin]))
}

func (p *Periph) SetHigh(pin Pin) {
	p.set(pin, periphgpio.High)
}

func (p *Periph) SetLow(pin Pin) {
	p.set(pin, periphgpio.Low)
}

func (p *Periph) set(pin Pin, level periphgpio.Level) {
	p.levels[pin] = level
	if p.output[pin] {
		p.check(pin, p.pins[pin].Out(level))
	}
}

func (p *Periph) Level(pin Pin) uint8 {
	if p.pins[pin].Read() == periphgpio.High {
		return 1
	}
	return 0
}

func (p *Periph) DelayMicroseconds(us int) {
	p.delay.DelayMicroseconds(us)
}

// Err returns the first pin fault, if any.
func (p *Periph) Err() error {
	return p.err
}

func (p *Periph) check(pin Pin, err error) {
	if err != nil && p.err == nil {
		p.err = errors.Wrapf(err, "%s (%s)", pin, p.pins[pin])
	}
}
