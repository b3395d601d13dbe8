package sim_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-picprog/picprog/gpio"
	"github.com/valerio/go-picprog/picprog/icsp"
	"github.com/valerio/go-picprog/picprog/memory"
	"github.com/valerio/go-picprog/picprog/progress"
	"github.com/valerio/go-picprog/picprog/sim"
)

func enter(t *testing.T, opts ...sim.Option) (*sim.Target, *icsp.Session) {
	t.Helper()
	target := sim.New(opts...)
	session := icsp.NewSession(target, nil)
	session.EnterProgramMode()
	require.True(t, target.InProgramMode())
	return target, session
}

func TestEntryKey(t *testing.T) {
	t.Run("accepted key enters program mode", func(t *testing.T) {
		target, session := enter(t)
		session.ExitProgramMode()
		assert.False(t, target.InProgramMode())
	})

	t.Run("wrong key locks the target out", func(t *testing.T) {
		target := sim.New()
		target.ConfigureOutput(gpio.Clock)
		target.ConfigureOutput(gpio.Data)
		target.ConfigureOutput(gpio.MCLR)

		link := icsp.NewLink(target)
		link.ShiftKey(0x12345678)
		assert.False(t, target.InProgramMode())

		link.SendCommand(icsp.CmdResetAddress, icsp.DelayTDLY)
		assert.Empty(t, target.Trace())
	})
}

func TestWarningsShowOnProgressScreen(t *testing.T) {
	display := tcell.NewSimulationScreen("UTF-8")
	screen, err := progress.NewScreenWith(display, "Writing")
	require.NoError(t, err)
	defer screen.Done()

	target := sim.New(sim.WithLogger(slog.New(screen.LogHandler(slog.LevelInfo))))
	target.ConfigureOutput(gpio.Clock)
	target.ConfigureOutput(gpio.Data)
	target.ConfigureOutput(gpio.MCLR)
	icsp.NewLink(target).ShiftKey(0x12345678)
	screen.Progress(0)

	cells, width, _ := display.GetContents()
	var row []rune
	for _, cell := range cells[4*width : 5*width] {
		row = append(row, cell.Runes...)
	}
	assert.Contains(t, string(row), "WRN Target rejected entry key key=0x12345678")
}

func TestReadDeviceID(t *testing.T) {
	_, session := enter(t, sim.WithDeviceID(0x1980))
	assert.Equal(t, uint16(0x1980), session.ReadDeviceIDWord())
}

func TestReadReturnsStoredWord(t *testing.T) {
	target, session := enter(t)
	target.Poke(0, 0x1234)
	target.Poke(1, 0x0ABC)

	session.ResetAddress()
	assert.Equal(t, uint16(0x1234), session.ReadWord())
	session.IncrementAddress()
	assert.Equal(t, uint16(0x0ABC), session.ReadWord())
	session.IncrementAddress()
	assert.Equal(t, uint16(0x3FFF), session.ReadWord())
}

func TestRowProgramming(t *testing.T) {
	target, session := enter(t)
	session.ResetAddress()
	for i := 0; i < 16; i++ {
		session.LoadWord(uint16(0x100 + i))
		if i == 15 {
			session.BeginProgramming(icsp.DelayTPINTData)
		}
		session.IncrementAddress()
	}

	for i := 0; i < 16; i++ {
		assert.Equal(t, uint16(0x100+i), target.Peek(i), "word %d", i)
	}
	assert.Equal(t, uint16(0x3FFF), target.Peek(16))
	assert.Equal(t, 1, target.Count(sim.CmdBeginTimedProgram))
	assert.Equal(t, 16, target.Count(sim.CmdLoadForProgram))
}

func TestProgrammingOnlyClearsBits(t *testing.T) {
	target, session := enter(t)
	target.Poke(0, 0x0F0F)

	session.ResetAddress()
	session.LoadWord(0x3030)
	session.BeginProgramming(icsp.DelayTPINTData)

	assert.Equal(t, uint16(0x0000), target.Peek(0))
}

func TestProtectedWordIsSkipped(t *testing.T) {
	target, session := enter(t)
	target.Protect(3)

	session.ResetAddress()
	for i := 0; i < 3; i++ {
		session.IncrementAddress()
	}
	session.LoadWord(0x0001)
	session.BeginProgramming(icsp.DelayTPINTData)

	assert.Equal(t, uint16(0x3FFF), target.Peek(3))
}

func TestConfigurationWord(t *testing.T) {
	target, session := enter(t)

	session.SeekConfig(icsp.FuseAddress)
	session.LoadWord(0x0000)
	session.BeginProgramming(icsp.DelayTPINTConfig)

	// the LVP bit stays set
	assert.Equal(t, uint16(0x0100), target.Peek(sim.ConfigWordAddress))
	assert.Equal(t, uint16(0x3FFF), target.Peek(0x2000))
}

func TestBulkErase(t *testing.T) {
	t.Run("from program memory keeps configuration", func(t *testing.T) {
		target, session := enter(t)
		target.Poke(0x10, 0)
		target.Poke(sim.ConfigWordAddress, 0x0100)

		session.BulkErase()

		assert.Equal(t, uint16(0x3FFF), target.Peek(0x10))
		assert.Equal(t, uint16(0x0100), target.Peek(sim.ConfigWordAddress))
	})

	t.Run("from configuration space erases everything", func(t *testing.T) {
		target, session := enter(t)
		target.Poke(0x10, 0)
		target.Poke(sim.ConfigWordAddress, 0x0100)

		session.LoadConfig(0)
		session.Link().SendCommand(icsp.CmdBulkErase, icsp.DelayTERAB)

		assert.Equal(t, uint16(0x3FFF), target.Peek(0x10))
		assert.Equal(t, uint16(0x3FFF), target.Peek(sim.ConfigWordAddress))
		assert.Equal(t, sim.DefaultDeviceID, target.Peek(sim.DeviceIDAddress))
	})
}

func TestCodeMemorySize(t *testing.T) {
	target, session := enter(t, sim.WithCodeMemorySize(0x100))
	assert.Equal(t, 0x100, target.CodeMemorySize())

	session.ResetAddress()
	for i := 0; i < 0x100; i++ {
		session.IncrementAddress()
	}
	session.LoadWord(0)
	session.BeginProgramming(icsp.DelayTPINTData)

	assert.Equal(t, uint16(0x3FFF), target.Peek(0x100))
}

func TestTraceHold(t *testing.T) {
	target, session := enter(t)
	target.ResetTrace()

	session.ResetAddress()
	session.LoadWord(0x0042)
	session.BeginProgramming(icsp.DelayTPINTData)
	session.IncrementAddress()

	trace := target.Trace()
	require.Len(t, trace, 4)
	assert.Equal(t, sim.CmdResetAddress, trace[0].Command)
	assert.Equal(t, sim.CmdLoadForProgram, trace[1].Command)
	assert.Equal(t, uint16(0x0042), trace[1].Data)
	assert.Equal(t, sim.CmdBeginTimedProgram, trace[2].Command)
	assert.GreaterOrEqual(t, trace[2].Hold, 2500*time.Microsecond)
	assert.Equal(t, sim.CmdIncrementAddress, trace[3].Command)
	assert.Greater(t, target.Elapsed(), 2500*time.Microsecond)
}

func TestFlash(t *testing.T) {
	img := memory.NewImage(0x8000)
	img.Set(5, 0x1234)
	img.Set(sim.ConfigWordAddress, 0x3FAB)
	img.Set(sim.DeviceIDAddress, 0)

	target := sim.New()
	target.Flash(img)

	assert.Equal(t, uint16(0x1234), target.Peek(5))
	assert.Equal(t, uint16(0x3FAB), target.Peek(sim.ConfigWordAddress))
	assert.Equal(t, sim.DefaultDeviceID, target.Peek(sim.DeviceIDAddress))

	target.Poke(6, 0xFFFF)
	assert.Equal(t, uint16(0x3FFF), target.Peek(6))
}
