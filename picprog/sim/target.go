// Package sim implements a simulated ICSP target behind the gpio.Port
// interface. It decodes the raw line activity the way the chip does, so the
// host side protocol code runs unmodified against it.
package sim

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/valerio/go-picprog/picprog/bit"
	"github.com/valerio/go-picprog/picprog/gpio"
	"github.com/valerio/go-picprog/picprog/memory"
	"github.com/valerio/go-picprog/picprog/timing"
)

// Command codes as decoded by the target.
const (
	CmdLoadConfig        uint8 = 0x00
	CmdLoadForProgram    uint8 = 0x02
	CmdReadFromProgram   uint8 = 0x04
	CmdIncrementAddress  uint8 = 0x06
	CmdResetAddress      uint8 = 0x16
	CmdBeginTimedProgram uint8 = 0x08
	CmdBulkErase         uint8 = 0x09
)

const (
	entryKey uint32 = 0x4D434850

	memorySize = 0x8000
	rowSize    = 16
	blank      = uint16(0x3FFF)

	configBase        = 0x2000
	userIDLast        = 0x2003
	DeviceIDAddress   = 0x2006
	ConfigWordAddress = 0x2007

	lvpBit = 8

	// DefaultDeviceID is a PIC10F322 (0x14C) revision 2.
	DefaultDeviceID = uint16(0x14C<<5 | 0x02)
)

type state int

const (
	stateRun state = iota
	stateKey
	stateKeyTail
	stateLocked
	stateCommand
	stateData
	stateRead
)

// Event is one command decoded by the target.
type Event struct {
	Command uint8
	Address uint16 // pointer when the command executed
	Data    uint16 // loaded payload, or the word returned by a read
	// Hold is the idle time between the end of the command (and its data
	// frame) and the next clock edge.
	Hold time.Duration
}

func (e Event) String() string {
	return fmt.Sprintf("cmd=0x%02X addr=0x%04X data=0x%04X hold=%s", e.Command, e.Address, e.Data, e.Hold)
}

// Target is a simulated chip. It is not safe for concurrent use, the same
// as the lines it stands in for.
type Target struct {
	mem       []uint16
	codeSize  int
	protected map[int]bool

	output [3]bool
	level  [3]bool
	driven bool

	state   state
	shift   uint32
	nbits   int
	pending uint8
	pc      uint16
	latches [rowSize]uint16
	outWord uint16

	clock     timing.Virtual
	trace     []Event
	holding   bool
	holdStart time.Duration

	logger *slog.Logger
}

type Option func(*Target)

// WithDeviceID sets the raw word stored at the device ID location.
func WithDeviceID(word uint16) Option {
	return func(t *Target) { t.mem[DeviceIDAddress] = word }
}

// WithCodeMemorySize sets the number of implemented program memory words.
func WithCodeMemorySize(words int) Option {
	return func(t *Target) { t.codeSize = words }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Target) { t.logger = logger }
}

// New creates a blank, powered down target.
func New(opts ...Option) *Target {
	t := &Target{
		mem:       make([]uint16, memorySize),
		codeSize:  0x200,
		protected: make(map[int]bool),
		logger:    slog.Default(),
	}
	for i := range t.mem {
		t.mem[i] = blank
	}
	t.mem[DeviceIDAddress] = DefaultDeviceID
	for _, opt := range opts {
		opt(t)
	}
	t.resetLatches()
	return t
}

// Peek returns the stored word at addr.
func (t *Target) Peek(addr int) uint16 {
	return t.mem[addr]
}

// Poke stores word at addr, bypassing the protocol.
func (t *Target) Poke(addr int, word uint16) {
	t.mem[addr] = word & blank
}

// Flash stores every filled word of img that lies in program or
// configuration memory.
func (t *Target) Flash(img *memory.Image) {
	img.Each(func(addr int, word uint16) {
		if addr < len(t.mem) && addr != DeviceIDAddress {
			t.Poke(addr, word)
		}
	})
}

// Protect makes programming pulses skip addr, as a worn out cell would.
func (t *Target) Protect(addr int) {
	t.protected[addr] = true
}

// CodeMemorySize returns the number of implemented program words.
func (t *Target) CodeMemorySize() int {
	return t.codeSize
}

// InProgramMode reports whether the target accepted the entry key.
func (t *Target) InProgramMode() bool {
	switch t.state {
	case stateCommand, stateData, stateRead:
		return true
	}
	return false
}

// Trace returns the decoded commands so far.
func (t *Target) Trace() []Event {
	if t.holding && len(t.trace) > 0 {
		t.trace[len(t.trace)-1].Hold = t.clock.Elapsed() - t.holdStart
	}
	return t.trace
}

// Count returns how many times cmd was decoded.
func (t *Target) Count(cmd uint8) int {
	n := 0
	for _, e := range t.trace {
		if e.Command == cmd {
			n++
		}
	}
	return n
}

func (t *Target) ResetTrace() {
	t.trace = nil
	t.holding = false
}

// Elapsed returns the simulated time spent in delays.
func (t *Target) Elapsed() time.Duration {
	return t.clock.Elapsed()
}

func (t *Target) ConfigureInput(pin gpio.Pin) {
	t.output[pin] = false
	if pin == gpio.MCLR {
		t.mclrChanged()
	}
}

func (t *Target) ConfigureOutput(pin gpio.Pin) {
	t.output[pin] = true
	if pin == gpio.MCLR {
		t.mclrChanged()
	}
}

func (t *Target) SetHigh(pin gpio.Pin) {
	t.drive(pin, true)
}

func (t *Target) SetLow(pin gpio.Pin) {
	t.drive(pin, false)
}

// Level returns the target's output on PGD while the host reads it, and the
// host driven level otherwise.
func (t *Target) Level(pin gpio.Pin) uint8 {
	high := t.level[pin]
	if pin == gpio.Data && !t.output[gpio.Data] {
		high = t.driven
	}
	if high {
		return 1
	}
	return 0
}

func (t *Target) DelayMicroseconds(us int) {
	t.clock.DelayMicroseconds(us)
}

func (t *Target) Err() error {
	return nil
}

func (t *Target) drive(pin gpio.Pin, level bool) {
	prev := t.level[pin]
	t.level[pin] = level
	if !t.output[pin] || prev == level {
		return
	}

	switch pin {
	case gpio.MCLR:
		t.mclrChanged()
	case gpio.Clock:
		t.endHold()
		if level {
			t.risingEdge()
		} else {
			t.fallingEdge()
		}
	}
}

// mclrChanged handles MCLR: held low by the host it starts key capture,
// high or released it lets the chip run.
func (t *Target) mclrChanged() {
	if t.output[gpio.MCLR] && !t.level[gpio.MCLR] {
		t.state = stateKey
		t.shift = 0
		t.nbits = 0
		return
	}
	if t.state != stateRun {
		t.logger.Debug("Target running", "pc", fmt.Sprintf("0x%04X", t.pc))
	}
	t.state = stateRun
	t.driven = false
}

func (t *Target) risingEdge() {
	if t.state == stateRead && t.nbits < 16 {
		t.driven = bit.IsSet16(uint8(t.nbits), t.outWord<<1)
	}
}

func (t *Target) fallingEdge() {
	data := t.level[gpio.Data]

	switch t.state {
	case stateKey:
		if t.shiftIn(data, 32) {
			if t.shift == entryKey {
				t.state = stateKeyTail
			} else {
				t.logger.Warn("Target rejected entry key", "key", fmt.Sprintf("0x%08X", t.shift))
				t.state = stateLocked
			}
		}
	case stateKeyTail:
		t.state = stateCommand
		t.pc = 0
		t.shift = 0
		t.nbits = 0
		t.resetLatches()
	case stateCommand:
		if t.shiftIn(data, 6) {
			t.execute(uint8(t.shift))
		}
	case stateData:
		if t.shiftIn(data, 16) {
			t.load(uint16(t.shift>>1) & blank)
			if t.state == stateData {
				t.state = stateCommand
			}
		}
	case stateRead:
		t.nbits++
		if t.nbits == 16 {
			t.state = stateCommand
			t.nbits = 0
			t.driven = false
		}
	}
}

// shiftIn collects one LSB-first bit and reports whether width bits are in.
// After a completed word the shift register keeps the value and the bit
// count restarts on the next call.
func (t *Target) shiftIn(high bool, width int) bool {
	if t.nbits == 0 {
		t.shift = 0
	}
	if high {
		t.shift |= 1 << uint(t.nbits)
	}
	t.nbits++
	if t.nbits == width {
		t.nbits = 0
		return true
	}
	return false
}

func (t *Target) execute(cmd uint8) {
	switch cmd {
	case CmdLoadConfig, CmdLoadForProgram:
		t.pending = cmd
		t.state = stateData
		return
	case CmdReadFromProgram:
		t.outWord = t.mem[t.pc]
		t.record(Event{Command: cmd, Address: t.pc, Data: t.outWord})
		t.state = stateRead
		t.nbits = 0
		return
	}

	t.record(Event{Command: cmd, Address: t.pc})
	switch cmd {
	case CmdIncrementAddress:
		t.pc = (t.pc + 1) % memorySize
	case CmdResetAddress:
		t.pc = 0
	case CmdBeginTimedProgram:
		t.commitRow()
	case CmdBulkErase:
		t.bulkErase()
	default:
		t.logger.Warn("Target ignored unknown command", "cmd", fmt.Sprintf("0x%02X", cmd))
	}
}

func (t *Target) load(payload uint16) {
	switch t.pending {
	case CmdLoadConfig:
		t.pc = configBase
	case CmdLoadForProgram:
		t.latches[t.pc%rowSize] = payload
	}
	t.record(Event{Command: t.pending, Address: t.pc, Data: payload})
}

// commitRow programs the latched row containing the pointer. Programming
// only clears bits; the LVP bit of the configuration word cannot be cleared.
func (t *Target) commitRow() {
	base := int(t.pc) &^ (rowSize - 1)
	for i := 0; i < rowSize; i++ {
		addr := base + i
		if t.writable(addr) {
			old := t.mem[addr]
			word := old & t.latches[i]
			if addr == ConfigWordAddress && bit.IsSet16(lvpBit, old) {
				word = bit.Set16(lvpBit, word)
			}
			t.mem[addr] = word
		}
	}
	t.resetLatches()
}

func (t *Target) writable(addr int) bool {
	if t.protected[addr] {
		return false
	}
	return addr < t.codeSize ||
		(addr >= configBase && addr <= userIDLast) ||
		addr == ConfigWordAddress
}

// bulkErase clears program memory; with the pointer in configuration space
// the user IDs and configuration word go too.
func (t *Target) bulkErase() {
	for addr := 0; addr < t.codeSize; addr++ {
		t.mem[addr] = blank
	}
	if t.pc >= configBase {
		for addr := configBase; addr <= userIDLast; addr++ {
			t.mem[addr] = blank
		}
		t.mem[ConfigWordAddress] = blank
	}
}

func (t *Target) resetLatches() {
	for i := range t.latches {
		t.latches[i] = blank
	}
}

func (t *Target) record(e Event) {
	t.endHold()
	t.trace = append(t.trace, e)
	t.holding = true
	t.holdStart = t.clock.Elapsed()
}

func (t *Target) endHold() {
	if !t.holding {
		return
	}
	t.trace[len(t.trace)-1].Hold = t.clock.Elapsed() - t.holdStart
	t.holding = false
}
