package icsp

// Commands, 6 bits wide, shifted LSB first.
const (
	CmdLoadConfig        uint8 = 0x00
	CmdLoadForProgram    uint8 = 0x02
	CmdReadFromProgram   uint8 = 0x04
	CmdIncrementAddress  uint8 = 0x06
	CmdResetAddress      uint8 = 0x16
	CmdBeginTimedProgram uint8 = 0x08
	CmdBulkErase         uint8 = 0x09
)

// Delays in microseconds, from the target's AC characteristics.
const (
	DelaySetup       = 1
	DelayHold        = 1
	DelayTENTS       = 1
	DelayTENTH       = 250
	DelayTCKH        = 1
	DelayTCKL        = 1
	DelayTCO         = 1
	DelayTDLY        = 1
	DelayTERAB       = 5000
	DelayTEXIT       = 1
	DelayTPINTData   = 2500
	DelayTPINTConfig = 5000
)

// EntryKey is "MCHP", shifted LSB first after MCLR is pulled low.
const EntryKey uint32 = 0x4D434850

const (
	CommandBits = 6
	DataBits    = 16
	KeyBits     = 32
)

// Word layout and address map (word addresses).
const (
	// Blank is the erased state of a 14 bit word.
	Blank    uint16 = 0x3FFF
	WordMask uint16 = 0x3FFF

	// FuseVerifyMask drops the LVP bit, which cannot be cleared in
	// low-voltage programming mode.
	FuseVerifyMask uint16 = 0x3EFF
	Config1Mask    uint16 = 0x01FF

	ConfigAddress   uint16 = 0x2000
	DeviceIDAddress uint16 = 0x2006
	FuseAddress     uint16 = 0x2007

	// ProgramMemorySize is the word count addressable by the 15 bit PC.
	ProgramMemorySize = 0x8000

	// RowSize words are latched and committed by one programming pulse.
	RowSize = 16
)
