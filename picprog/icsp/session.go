package icsp

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-picprog/picprog/gpio"
)

// Mode is the programming state of the target as driven by the session.
type Mode int

const (
	ModeUnpowered Mode = iota
	ModeEntryShift
	ModeProgram
	ModeExiting
)

func (m Mode) String() string {
	switch m {
	case ModeUnpowered:
		return "unpowered"
	case ModeEntryShift:
		return "entry-shift"
	case ModeProgram:
		return "program"
	case ModeExiting:
		return "exiting"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Session sequences program mode entry/exit and mirrors the target's
// address pointer. The pointer cannot be read back, so the session tracks
// every move; after program mode entry it is unknown until ResetAddress or
// LoadConfig sets it to an absolute position.
type Session struct {
	port   gpio.Port
	link   *Link
	logger *slog.Logger

	mode    Mode
	address uint16
	known   bool
}

func NewSession(port gpio.Port, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		port:   port,
		link:   NewLink(port),
		logger: logger,
	}
}

func (s *Session) Link() *Link {
	return s.link
}

func (s *Session) Mode() Mode {
	return s.mode
}

// Address returns the tracked pointer and whether it is known.
func (s *Session) Address() (uint16, bool) {
	return s.address, s.known
}

// EnterProgramMode pulses MCLR, holds it low and shifts the entry key.
// There is no acknowledgement: a failed entry only shows up later as a
// device ID mismatch.
func (s *Session) EnterProgramMode() {
	s.port.ConfigureOutput(gpio.Clock)
	s.port.ConfigureOutput(gpio.Data)

	s.port.ConfigureInput(gpio.MCLR)
	s.port.ConfigureOutput(gpio.MCLR)

	s.port.SetHigh(gpio.MCLR)
	s.port.DelayMicroseconds(DelayTENTS)
	s.port.SetLow(gpio.MCLR)
	s.port.SetLow(gpio.Clock)
	s.port.DelayMicroseconds(DelayTENTH)

	s.mode = ModeEntryShift
	s.link.ShiftKey(EntryKey)

	s.mode = ModeProgram
	s.known = false
	s.logger.Debug("Entered program mode")
}

// ExitProgramMode idles the clock and data lines and releases MCLR.
func (s *Session) ExitProgramMode() {
	s.mode = ModeExiting
	s.port.SetLow(gpio.Clock)
	s.port.SetLow(gpio.Data)
	s.port.ConfigureInput(gpio.MCLR)
	s.port.DelayMicroseconds(DelayTEXIT)

	s.mode = ModeUnpowered
	s.known = false
	s.logger.Debug("Exited program mode")
}

// ResetAddress moves the pointer to word 0.
func (s *Session) ResetAddress() {
	s.link.SendCommand(CmdResetAddress, DelayTDLY)
	s.address = 0
	s.known = true
}

func (s *Session) IncrementAddress() {
	s.link.SendCommand(CmdIncrementAddress, DelayTDLY)
	s.address = (s.address + 1) % ProgramMemorySize
}

// LoadConfig moves the pointer to the configuration space (0x2000) and
// latches word there.
func (s *Session) LoadConfig(word uint16) {
	s.link.SendCommand(CmdLoadConfig, DelayTDLY)
	s.link.WriteData(word)
	s.address = ConfigAddress
	s.known = true
}

// SeekConfig positions the pointer on a configuration space address.
func (s *Session) SeekConfig(address uint16) {
	s.LoadConfig(0x0000)
	for a := ConfigAddress; a < address; a++ {
		s.IncrementAddress()
	}
}

// ReadWord reads the word under the pointer, masked to 14 bits.
func (s *Session) ReadWord() uint16 {
	return s.ReadRaw() & WordMask
}

// ReadRaw reads the unmasked, unframed word under the pointer.
func (s *Session) ReadRaw() uint16 {
	s.link.SendCommand(CmdReadFromProgram, DelayTDLY)
	return s.link.ReadData()
}

// LoadWord latches word for the slot under the pointer.
func (s *Session) LoadWord(word uint16) {
	s.link.SendCommand(CmdLoadForProgram, DelayTDLY)
	s.link.WriteData(word)
}

// BeginProgramming commits the latched row and waits pulse microseconds.
func (s *Session) BeginProgramming(pulse int) {
	s.link.SendCommand(CmdBeginTimedProgram, pulse)
}

// BulkErase resets the pointer and erases program memory.
func (s *Session) BulkErase() {
	s.ResetAddress()
	s.link.SendCommand(CmdBulkErase, DelayTERAB)
}

// ReadDeviceIDWord returns the raw device ID word (ID in bits 13..5,
// revision in bits 4..0).
func (s *Session) ReadDeviceIDWord() uint16 {
	s.SeekConfig(DeviceIDAddress)
	return s.ReadRaw()
}
