package icsp

import (
	"github.com/valerio/go-picprog/picprog/bit"
	"github.com/valerio/go-picprog/picprog/gpio"
)

// Link shifts commands and data words over the clock/data lines.
// The target samples data on the falling clock edge and drives it after
// the rising edge.
type Link struct {
	port gpio.Port
}

func NewLink(port gpio.Port) *Link {
	return &Link{port: port}
}

// SendCommand shifts a 6 bit command LSB first, then holds the lines idle
// for postDelay microseconds.
func (l *Link) SendCommand(cmd uint8, postDelay int) {
	for i := uint8(0); i < CommandBits; i++ {
		l.port.SetHigh(gpio.Clock)
		l.setData(bit.IsSet16(i, uint16(cmd)))
		l.port.DelayMicroseconds(DelayTCKH)
		l.port.SetLow(gpio.Clock)
		l.port.DelayMicroseconds(DelayTCKL)
	}
	l.port.SetLow(gpio.Data)
	l.port.DelayMicroseconds(postDelay)
}

// WriteData shifts a data frame: one start bit followed by the word, LSB
// first, 16 clocks in total.
func (l *Link) WriteData(word uint16) {
	framed := word << 1
	for i := uint8(0); i < DataBits; i++ {
		l.port.SetHigh(gpio.Clock)
		l.setData(bit.IsSet16(i, framed))
		l.port.DelayMicroseconds(DelaySetup)
		l.port.SetLow(gpio.Clock)
		l.port.DelayMicroseconds(DelayHold)
	}
	l.port.SetLow(gpio.Data)
}

// ReadData clocks in a 16 bit frame LSB first and strips the start bit.
// Callers mask the result to the bits they care about.
func (l *Link) ReadData() uint16 {
	var raw uint16

	l.port.ConfigureInput(gpio.Data)
	for i := uint8(0); i < DataBits; i++ {
		l.port.SetHigh(gpio.Clock)
		l.port.DelayMicroseconds(DelayTCKH)
		l.port.DelayMicroseconds(DelayTCO)
		if l.port.Level(gpio.Data) == 1 {
			raw = bit.Set16(i, raw)
		}
		l.port.SetLow(gpio.Clock)
		l.port.DelayMicroseconds(DelayTCKL)
	}
	l.port.ConfigureOutput(gpio.Data)

	return raw >> 1
}

// ShiftKey clocks the 32 bit program mode entry key LSB first, followed by
// one extra don't-care clock.
func (l *Link) ShiftKey(key uint32) {
	for i := uint8(0); i < KeyBits; i++ {
		l.setData(bit.IsSet32(i, key))
		l.port.DelayMicroseconds(DelayTCKL)
		l.port.SetHigh(gpio.Clock)
		l.port.DelayMicroseconds(DelayTCKH)
		l.port.SetLow(gpio.Clock)
	}
	l.port.SetLow(gpio.Data)

	l.port.DelayMicroseconds(DelayTCKL)
	l.port.SetHigh(gpio.Clock)
	l.port.DelayMicroseconds(DelayTCKH)
	l.port.SetLow(gpio.Clock)
}

func (l *Link) setData(high bool) {
	if high {
		l.port.SetHigh(gpio.Data)
	} else {
		l.port.SetLow(gpio.Data)
	}
}
